package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

const tracerName = "oidcgw/proxy"

// Header names set on upstream requests.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"
)

// Response is an upstream response. Exactly one of Body and Stream is set:
// Body for blocking calls, Stream for streaming ones.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Stream      *Stream
}

// Forwarder relays requests to the upstream API.
type Forwarder struct {
	pool       *transportPool
	breakerCfg *BreakerConfig
	breaker    *breaker
	logger     observability.Logger
	metrics    *proxyMetrics
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithCircuitBreaker guards the upstream round trip with a circuit breaker.
func WithCircuitBreaker(cfg BreakerConfig) ForwarderOption {
	return func(f *Forwarder) {
		f.breakerCfg = &cfg
	}
}

// WithConnectTimeout sets the dial and TLS handshake timeout.
func WithConnectTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		f.pool = newTransportPool(d)
	}
}

// NewForwarder creates a Forwarder.
func NewForwarder(opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		logger:  observability.NopLogger(),
		metrics: getProxyMetrics(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.pool == nil {
		f.pool = newTransportPool(DefaultConnectTimeout)
	}
	if f.breakerCfg != nil {
		f.breaker = newBreaker(*f.breakerCfg, f.logger)
	}
	return f
}

// Forward sends req upstream. Blocking calls return the buffered body and
// release the connection before returning. Streaming calls return an open
// Stream the caller must Close. Transport failures, timeouts and an open
// circuit are returned as *ProxyError; upstream error statuses are not
// errors.
func (f *Forwarder) Forward(ctx context.Context, req *OutboundRequest, c Classification) (*Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "proxy.Forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("proxy.mode", c.Mode.String()),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	target, err := req.URL()
	if err != nil {
		span.SetStatus(codes.Error, "invalid upstream url")
		return nil, NewProxyError("build_request", req.BaseURL, "invalid upstream URL",
			fmt.Errorf("%w: %w", ErrInvalidUpstreamURL, err))
	}
	targetStr := target.Redacted()

	httpReq, err := f.buildRequest(ctx, req, target.String())
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return nil, NewProxyError("build_request", targetStr, "failed to build upstream request", err)
	}

	client := &http.Client{
		Transport: f.pool.get(c.Timeouts),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	start := time.Now()
	resp, err := f.roundTrip(client, httpReq)
	f.metrics.upstreamDuration.WithLabelValues(c.Mode.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		// The transport closes the body of every call it handles; a call
		// rejected by the breaker never gets there.
		if httpReq.Body != nil {
			_ = httpReq.Body.Close()
		}
		et := errorType(err)
		f.metrics.errorsTotal.WithLabelValues(c.Mode.String(), et).Inc()
		span.SetStatus(codes.Error, et)
		f.logger.WithContext(ctx).Warn("upstream request failed",
			observability.String("target", targetStr),
			observability.String("mode", c.Mode.String()),
			observability.String("error_type", et),
			observability.Error(err),
		)
		if IsTimeout(err) {
			err = fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
		}
		return nil, NewProxyError("forward", targetStr, "upstream request failed", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get(HeaderContentType),
	}

	if c.Mode == ModeStreaming {
		f.metrics.streamsActive.Inc()
		out.Stream = newStream(resp.Body, targetStr, f.metrics.streamsActive.Dec)
		return out, nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		et := errorType(err)
		f.metrics.errorsTotal.WithLabelValues(c.Mode.String(), et).Inc()
		span.SetStatus(codes.Error, et)
		return nil, NewProxyError("read_response", targetStr, "failed to read upstream response", err)
	}
	out.Body = body
	return out, nil
}

func (f *Forwarder) roundTrip(client *http.Client, req *http.Request) (*http.Response, error) {
	if f.breaker == nil {
		return client.Do(req)
	}
	return f.breaker.roundTrip(func() (*http.Response, error) {
		return client.Do(req)
	})
}

// buildRequest rewrites the headers for the upstream: only Authorization
// with the upstream key, Content-Type when the caller sent one, the request
// ID and the trace context are sent.
func (f *Forwarder) buildRequest(ctx context.Context, req *OutboundRequest, target string) (*http.Request, error) {
	body, contentType, err := req.body()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		if body != nil {
			_ = body.Close()
		}
		return nil, err
	}

	httpReq.Header.Set(HeaderAuthorization, "Bearer "+req.APIKey)
	if req.ContentType != "" && contentType != "" {
		httpReq.Header.Set(HeaderContentType, contentType)
	}
	if req.RequestID != "" {
		httpReq.Header.Set(HeaderRequestID, req.RequestID)
	}
	observability.InjectTraceContext(ctx, httpReq.Header)

	return httpReq, nil
}

// Close releases idle upstream connections.
func (f *Forwarder) Close() {
	f.pool.closeIdle()
}
