// Package oidc resolves the signing keys of an OpenID Connect issuer.
//
// Resolver.KeySet fetches {issuer}/.well-known/openid-configuration, follows
// its jwks_uri and parses the result with jwx. The raw JWKS is stored in a
// cache.Store under "{issuer}/jwk_set", so later lookups within the TTL make
// no network calls. Errors are wrapped in ResolutionError and are never
// cached; concurrent misses may fetch the same set more than once.
package oidc
