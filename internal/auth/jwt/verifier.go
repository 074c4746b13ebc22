package jwt

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

const tracerName = "oidcgw/auth/jwt"

// KeyResolver returns the verification keys of an issuer.
type KeyResolver interface {
	KeySet(ctx context.Context, issuer string) (jwk.Set, error)
}

// Settings is the per-request verification policy.
type Settings struct {
	Issuer         string
	Audience       string
	RequiredScopes ScopeSet
	ClockSkew      time.Duration
}

// Verifier checks bearer tokens against an issuer's keys.
type Verifier struct {
	resolver KeyResolver
	now      func() time.Time
	logger   observability.Logger
	metrics  *Metrics
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock sets the time source used for exp, nbf and iat checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// NewVerifier creates a Verifier backed by resolver.
func NewVerifier(resolver KeyResolver, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		resolver: resolver,
		now:      time.Now,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs a one-off verification with a default Verifier.
func Verify(ctx context.Context, token string, settings Settings, resolver KeyResolver) (Claims, error) {
	return NewVerifier(resolver).Verify(ctx, token, settings)
}

// Verify checks the token and returns its claims. The stages run in order:
// key resolution, signature decode, time validation, issuer, audience and
// scopes. The first failing stage determines the returned *VerificationError.
func (v *Verifier) Verify(ctx context.Context, token string, settings Settings) (Claims, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "jwt.Verify")
	defer span.End()

	start := time.Now()
	claims, err := v.verify(ctx, token, settings)

	if err != nil {
		reason := "unknown"
		if ve, ok := err.(*VerificationError); ok {
			reason = ve.Reason()
		}
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.String("jwt.failure_reason", reason))
		v.logger.WithContext(ctx).Debug("token verification failed",
			observability.String("reason", reason),
			observability.Error(err),
		)
		if v.metrics != nil {
			v.metrics.RecordVerification(reason, time.Since(start))
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("jwt.subject", claims.Subject()))
	if v.metrics != nil {
		v.metrics.RecordVerification(resultSuccess, time.Since(start))
	}
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, token string, settings Settings) (Claims, error) {
	if token == "" {
		return nil, newVerificationError(ErrEmptyToken, "Access token is required", nil)
	}

	set, err := v.resolver.KeySet(ctx, settings.Issuer)
	if err != nil {
		return nil, newVerificationError(ErrKeyResolution, "Failed to get jwk set", err)
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true), jws.WithUseDefault(true)),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, newVerificationError(ErrTokenDecode, "Failed to decode and validate token", err)
	}

	if err := jwt.Validate(parsed,
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(settings.ClockSkew),
	); err != nil {
		return nil, newVerificationError(ErrTokenValidation, "Failed to validate token", err)
	}

	m, err := parsed.AsMap(ctx)
	if err != nil {
		return nil, newVerificationError(ErrTokenDecode, "Failed to decode and validate token", err)
	}
	claims := Claims(m)

	if claims.Issuer() != settings.Issuer {
		return nil, newVerificationError(ErrIssuerMismatch, "Issuer mismatch", nil)
	}
	if !claims.HasAudience(settings.Audience) {
		return nil, newVerificationError(ErrAudienceMismatch, "Audience mismatch", nil)
	}
	if settings.RequiredScopes.Len() > 0 && !claims.Scopes().IsSupersetOf(settings.RequiredScopes) {
		return nil, newVerificationError(ErrScopeMismatch, "Scope mismatch", nil)
	}

	return claims, nil
}
