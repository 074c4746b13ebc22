// Package health serves liveness, health and readiness endpoints.
//
// Readiness runs registered dependency checks concurrently under a timeout.
// A failing critical check makes the gateway unready (503); a failing
// non-critical check only degrades it. Once draining starts, readiness
// fails so load balancers stop routing new requests.
package health
