package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vyrodovalexey/oidcgw/internal/auth"
	"github.com/vyrodovalexey/oidcgw/internal/auth/jwt"
	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/proxy"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, settings jwt.Settings) (jwt.Claims, error)
}

// Forwarder sends requests upstream.
type Forwarder interface {
	Forward(ctx context.Context, req *proxy.OutboundRequest, c proxy.Classification) (*proxy.Response, error)
}

// Handler is the authenticate-and-forward pipeline.
type Handler struct {
	settings  *config.SettingsStore
	verifier  TokenVerifier
	forwarder Forwarder
	timeouts  config.TimeoutsConfig
	maxBody   int64
	logger    observability.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithTimeouts sets the upstream timeout policies.
func WithTimeouts(t config.TimeoutsConfig) HandlerOption {
	return func(h *Handler) {
		h.timeouts = t
	}
}

// WithMaxBodySize limits inbound bodies; zero disables the limit.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBody = n
	}
}

// NewHandler creates the pipeline handler.
func NewHandler(settings *config.SettingsStore, verifier TokenVerifier, forwarder Forwarder, opts ...HandlerOption) *Handler {
	h := &Handler{
		settings:  settings,
		verifier:  verifier,
		forwarder: forwarder,
		maxBody:   config.DefaultMaxBodySize,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP runs settings check, bearer extraction, payload parsing,
// classification, verification, identity projection and forwarding. The
// first failure is written as a JSON error.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)
	settings := h.settings.Load()

	resp, err := h.handle(ctx, r, settings)
	if err != nil {
		logger.Debug("request rejected",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		WriteError(w, err)
		return
	}

	if resp.Stream != nil {
		h.relay(w, r, resp)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		logger.Debug("failed to write response", observability.Error(err))
	}
}

func (h *Handler) handle(ctx context.Context, r *http.Request, settings config.ProxySettings) (*proxy.Response, error) {
	if err := CheckSettings(settings); err != nil {
		return nil, err
	}

	token, err := auth.ExtractBearerToken(r)
	if err != nil {
		return nil, NewError(ErrMissingCredential, "Access token is required", err)
	}

	out, err := proxy.ParseInbound(r, h.maxBody)
	if err != nil {
		if errors.Is(err, proxy.ErrBodyTooLarge) {
			return nil, NewError(ErrBodyTooLarge, "Request body too large", err)
		}
		return nil, NewError(ErrBadRequest, "Invalid request body", err)
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			h.logger.WithContext(ctx).Warn("failed to remove upload files", observability.Error(err))
		}
	}()

	classification := h.classifier(settings).Classify(out.Method, out.Path, out.JSON)

	claims, err := h.verifier.Verify(ctx, token, jwt.Settings{
		Issuer:         settings.OIDCIssuer,
		Audience:       settings.OIDCAudience,
		RequiredScopes: jwt.ParseScopes(settings.OIDCScope),
		ClockSkew:      settings.ClockSkewDuration(),
	})
	if err != nil {
		return nil, NewError(ErrAuthentication, err.Error(), err)
	}

	identity := proxy.IdentityFromClaims(claims, settings.IdentityClaimName)
	out.Params, out.JSON, out.Form = proxy.ProjectIdentity(identity, out.Params, out.JSON, out.Form)

	out.BaseURL = settings.UpstreamAPIURL
	out.APIKey = settings.UpstreamAPIKey
	out.RequestID = observability.RequestIDFromContext(ctx)

	resp, err := h.forwarder.Forward(ctx, out, classification)
	if err != nil {
		return nil, NewError(ErrUpstreamForwarding, forwardingMessage(err), err)
	}
	return resp, nil
}

func (h *Handler) classifier(s config.ProxySettings) *proxy.Classifier {
	return proxy.NewClassifier(s.StreamingPaths,
		proxy.Timeouts{Read: h.timeouts.StreamingRead.Duration(), Write: h.timeouts.Write.Duration()},
		proxy.Timeouts{Read: h.timeouts.DefaultRead.Duration(), Write: h.timeouts.Write.Duration()},
	)
}

// relay copies the stream to the client, flushing every chunk. The stream
// is closed on every exit path, including client disconnects.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, resp *proxy.Response) {
	stream := resp.Stream
	defer stream.Close()

	logger := h.logger.WithContext(r.Context())
	rc := http.NewResponseController(w)

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_ = rc.Flush()

	for {
		chunk, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && r.Context().Err() == nil {
				logger.Warn("upstream stream failed", observability.Error(err))
			}
			return
		}
		if _, err := w.Write(chunk); err != nil {
			logger.Debug("client went away during stream", observability.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			logger.Debug("flush failed", observability.Error(err))
			return
		}
	}
}

// CheckSettings reports the first required setting that is missing.
func CheckSettings(s config.ProxySettings) error {
	switch {
	case s.OIDCIssuer == "":
		return NewError(ErrConfiguration, "OpenID Connect Issuer is required", nil)
	case s.OIDCAudience == "":
		return NewError(ErrConfiguration, "OpenID Connect Audience is required", nil)
	case s.UpstreamAPIURL == "":
		return NewError(ErrConfiguration, "Upstream API URL is required", nil)
	case s.UpstreamAPIKey == "":
		return NewError(ErrConfiguration, "Upstream API Key is required", nil)
	}
	return nil
}

func forwardingMessage(err error) string {
	var pe *proxy.ProxyError
	if errors.As(err, &pe) && pe.Cause != nil {
		return fmt.Sprintf("Failed to forward request: %v", pe.Cause)
	}
	return fmt.Sprintf("Failed to forward request: %v", err)
}
