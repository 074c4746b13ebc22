package jwt

import (
	"errors"
)

// Sentinel errors, one per verification stage.
var (
	ErrKeyResolution    = errors.New("key resolution failed")
	ErrTokenDecode      = errors.New("token decode failed")
	ErrTokenValidation  = errors.New("token validation failed")
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrAudienceMismatch = errors.New("audience mismatch")
	ErrScopeMismatch    = errors.New("scope mismatch")
	ErrEmptyToken       = errors.New("token is empty")
)

// reasons maps each sentinel to its metric label.
var reasons = map[error]string{
	ErrKeyResolution:    "key_resolution",
	ErrTokenDecode:      "decode",
	ErrTokenValidation:  "validation",
	ErrIssuerMismatch:   "issuer",
	ErrAudienceMismatch: "audience",
	ErrScopeMismatch:    "scope",
	ErrEmptyToken:       "empty",
}

// VerificationError is returned by Verify. Message is safe to show to the
// client; Kind is one of the sentinel errors and Cause the underlying error.
type VerificationError struct {
	Kind    error
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	return e.Message
}

// Unwrap exposes both the stage sentinel and the cause.
func (e *VerificationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Reason returns a short label for the failed stage.
func (e *VerificationError) Reason() string {
	if r, ok := reasons[e.Kind]; ok {
		return r
	}
	return "unknown"
}

func newVerificationError(kind error, message string, cause error) *VerificationError {
	if cause != nil {
		message += ": " + cause.Error()
	}
	return &VerificationError{Kind: kind, Message: message, Cause: cause}
}
