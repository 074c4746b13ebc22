package oidc

import (
	"errors"
	"fmt"
)

// Resolution stages.
const (
	StageDiscovery = "discovery"
	StageJWKS      = "jwks"
)

var (
	// ErrMissingJWKSURI indicates a discovery document without jwks_uri.
	ErrMissingJWKSURI = errors.New("discovery document has no jwks_uri")

	// ErrBodyTooLarge indicates a response larger than the configured cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned for non-2xx identity provider responses.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// ResolutionError describes a failed key set lookup.
type ResolutionError struct {
	Issuer string
	Stage  string
	Err    error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s for issuer %s: %v", e.Stage, e.Issuer, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func newResolutionError(issuer, stage string, err error) *ResolutionError {
	return &ResolutionError{Issuer: issuer, Stage: stage, Err: err}
}
