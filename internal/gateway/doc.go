// Package gateway wires the authenticate-and-forward pipeline to an HTTP
// listener.
//
// Handler runs, in order: a settings check (503 when a required value is
// missing, before any network call), bearer extraction (401), payload
// parsing, classification, token verification (401), identity projection
// and forwarding. Failures are written as {"error": "..."}. Gateway owns the
// listener lifecycle and routes every method and path to the Handler.
package gateway
