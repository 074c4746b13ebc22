package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error kinds. Each maps to one response status.
var (
	ErrConfiguration      = errors.New("gateway is not configured")
	ErrMissingCredential  = errors.New("missing credential")
	ErrAuthentication     = errors.New("authentication failed")
	ErrUpstreamForwarding = errors.New("upstream forwarding failed")
	ErrBadRequest         = errors.New("bad request")
	ErrBodyTooLarge       = errors.New("request body too large")
)

// Lifecycle errors.
var (
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")
	ErrGatewayNotRunning = errors.New("gateway is not running")
)

var statusByKind = map[error]int{
	ErrConfiguration:      http.StatusServiceUnavailable,
	ErrMissingCredential:  http.StatusUnauthorized,
	ErrAuthentication:     http.StatusUnauthorized,
	ErrUpstreamForwarding: http.StatusInternalServerError,
	ErrBadRequest:         http.StatusBadRequest,
	ErrBodyTooLarge:       http.StatusRequestEntityTooLarge,
}

// Error is a request failure with a client-facing message.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

// NewError creates an Error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// StatusCode returns the HTTP status of the error kind.
func (e *Error) StatusCode() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes err as {"error": message}. Errors that are not *Error
// become a 500 with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := http.StatusText(status)

	var ge *Error
	if errors.As(err, &ge) {
		status = ge.StatusCode()
		message = ge.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}
