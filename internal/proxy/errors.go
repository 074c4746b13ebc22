package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Sentinel errors for forwarding.
var (
	ErrUpstreamTimeout     = errors.New("upstream request timed out")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidUpstreamURL  = errors.New("invalid upstream URL")
)

// ProxyError is a failed upstream exchange. Upstream HTTP error statuses
// are not ProxyErrors; they are relayed to the caller.
type ProxyError struct {
	Op      string
	Target  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy error [%s] target=%s: %s: %v", e.Op, e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy error [%s] target=%s: %s", e.Op, e.Target, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// NewProxyError creates a new ProxyError.
func NewProxyError(op, target, message string, cause error) *ProxyError {
	return &ProxyError{Op: op, Target: target, Message: message, Cause: cause}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var pe *ProxyError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is a socket or context timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorType labels err for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamUnavailable):
		return "circuit_open"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		var oe *net.OpError
		if errors.As(err, &oe) && oe.Op == "dial" {
			return "connection_refused"
		}
		return "transport"
	}
}
