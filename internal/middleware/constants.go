package middleware

// Header names.
const (
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// ContentTypeJSON is the content type of error bodies.
const ContentTypeJSON = "application/json"

// Error bodies written by the middleware.
const (
	ErrRateLimitExceeded   = `{"error":"rate limit exceeded"}`
	ErrInternalServerError = `{"error":"internal server error"}`
)
