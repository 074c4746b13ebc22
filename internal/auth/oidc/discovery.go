package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/oidcgw/internal/cache"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

const (
	// WellKnownPath is appended to the issuer to locate the discovery document.
	WellKnownPath = "/.well-known/openid-configuration"

	// DefaultHTTPTimeout bounds discovery and JWKS requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMaxBodySize caps discovery and JWKS response bodies.
	DefaultMaxBodySize = 1 << 20

	tracerName = "oidcgw/oidc"
)

// DiscoveryDocument is the part of the OIDC discovery document the gateway uses.
type DiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`

	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
}

// DiscoveryURL returns the discovery document location for issuer.
func DiscoveryURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + WellKnownPath
}

// KeySetCacheKey returns the cache key under which the JWKS of issuer is kept.
func KeySetCacheKey(issuer string) string {
	return issuer + "/jwk_set"
}

// Resolver finds the signing keys of an issuer through OIDC discovery and
// keeps the raw JWKS in a cache.Store. Failed lookups are never cached.
type Resolver struct {
	store       *cache.Store
	httpClient  *http.Client
	logger      observability.Logger
	metrics     *Metrics
	maxBodySize int64
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets the HTTP client used for discovery and JWKS fetches.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a Resolver caching key sets in store.
func NewResolver(store *cache.Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       store,
		httpClient:  &http.Client{Timeout: DefaultHTTPTimeout},
		logger:      observability.NopLogger(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics("gateway", nil)
	}
	return r
}

// KeySet returns the key set of issuer, from the cache when possible and
// from the network otherwise. A cached value that no longer parses is
// dropped and refetched.
func (r *Resolver) KeySet(ctx context.Context, issuer string) (jwk.Set, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "oidc.KeySet",
		trace.WithAttributes(attribute.String("oidc.issuer", issuer)),
	)
	defer span.End()

	key := KeySetCacheKey(issuer)

	if raw, ok := r.store.Get(ctx, key); ok {
		set, err := jwk.Parse(raw)
		if err == nil {
			r.metrics.RecordKeySet("cache_hit")
			span.SetAttributes(attribute.Bool("oidc.cached", true))
			return set, nil
		}
		r.logger.Warn("dropping unparseable cached key set",
			observability.String("issuer", issuer), observability.Error(err))
		r.store.Delete(ctx, key)
	}

	doc, err := r.Discover(ctx, issuer)
	if err != nil {
		r.metrics.RecordKeySet("error")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	raw, set, err := r.fetchJWKS(ctx, issuer, doc.JWKSURI)
	if err != nil {
		r.metrics.RecordKeySet("error")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !r.store.Set(ctx, key, raw) {
		r.logger.Warn("failed to cache key set", observability.String("issuer", issuer))
	}

	r.metrics.RecordKeySet("fetched")
	r.logger.Debug("key set fetched",
		observability.String("issuer", issuer),
		observability.Int("keys", set.Len()))

	return set, nil
}

// Discover fetches the discovery document of issuer.
func (r *Resolver) Discover(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	start := time.Now()

	body, err := r.get(ctx, DiscoveryURL(issuer))
	if err != nil {
		r.metrics.RecordDiscovery("error", time.Since(start))
		return nil, newResolutionError(issuer, StageDiscovery, err)
	}

	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		r.metrics.RecordDiscovery("error", time.Since(start))
		return nil, newResolutionError(issuer, StageDiscovery, fmt.Errorf("invalid discovery document: %w", err))
	}
	if doc.JWKSURI == "" {
		r.metrics.RecordDiscovery("error", time.Since(start))
		return nil, newResolutionError(issuer, StageDiscovery, ErrMissingJWKSURI)
	}

	r.metrics.RecordDiscovery("success", time.Since(start))
	return &doc, nil
}

func (r *Resolver) fetchJWKS(ctx context.Context, issuer, uri string) ([]byte, jwk.Set, error) {
	start := time.Now()

	raw, err := r.get(ctx, uri)
	if err != nil {
		r.metrics.RecordJWKSFetch("error", time.Since(start))
		return nil, nil, newResolutionError(issuer, StageJWKS, err)
	}

	set, err := jwk.Parse(raw)
	if err != nil {
		r.metrics.RecordJWKSFetch("error", time.Since(start))
		return nil, nil, newResolutionError(issuer, StageJWKS, fmt.Errorf("invalid key set: %w", err))
	}

	r.metrics.RecordJWKSFetch("success", time.Since(start))
	return raw, set, nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceContext(ctx, req.Header)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, r.maxBodySize))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if int64(len(body)) > r.maxBodySize {
		return nil, fmt.Errorf("GET %s: %w", url, ErrBodyTooLarge)
	}
	return body, nil
}

// IsResolutionError reports whether err came from key resolution.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
