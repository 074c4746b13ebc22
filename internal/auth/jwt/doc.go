// Package jwt verifies OIDC access tokens.
//
// A Verifier resolves the issuer's key set through a KeyResolver, checks
// the signature and time claims with jwx, then compares issuer, audience
// and scopes against the per-request Settings. Failures are reported as
// *VerificationError carrying one of the stage sentinels.
package jwt
