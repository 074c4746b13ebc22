// Package auth holds the authentication building blocks of the gateway.
//
// The root package extracts bearer credentials from inbound requests. The
// subpackages do the rest:
//   - oidc: discovery and cached JWKS resolution per issuer
//   - jwt: token verification against resolved keys
package auth
