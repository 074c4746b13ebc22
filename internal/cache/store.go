package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
)

// DefaultTTL is the lifetime of a Store entry.
const DefaultTTL = 3600 * time.Second

// markerSuffix names the sibling key holding the write timestamp of an entry.
const markerSuffix = "/ttl"

// Clock returns the current time.
type Clock func() time.Time

// MarkerKey returns the backend key holding the write timestamp for key.
func MarkerKey(key string) string {
	return key + markerSuffix
}

// Store adds TTL expiry to a Backend that has none. Each entry is a value key
// plus a marker key holding the Unix seconds of the last write. Reads repair
// half-written entries. Backend failures are logged and reported as a miss or
// a false result, never as an error.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     Clock
	logger  observability.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now Clock) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger observability.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) startSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return otel.Tracer(cacheTracerName).Start(ctx, "cache.Store."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
}

func (s *Store) record(span trace.Span, op, outcome string) {
	span.SetAttributes(attribute.String("cache.outcome", outcome))
	GetCacheMetrics().storeOutcomes.WithLabelValues(op, outcome).Inc()
}

// Get returns the value stored under key if it exists and has not expired.
//
//   - value without marker: the marker is re-stamped with the current time
//     and the value is returned;
//   - marker without value: the marker is removed and the key is absent;
//   - marker older than the TTL, or unreadable: both keys are removed and the
//     key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, span := s.startSpan(ctx, "Get", key)
	defer span.End()

	value, valueFound, err := s.read(ctx, key)
	if err != nil {
		s.backendError(span, "get", key, err)
		return nil, false
	}
	marker, markerFound, err := s.read(ctx, MarkerKey(key))
	if err != nil {
		s.backendError(span, "get", key, err)
		return nil, false
	}

	switch {
	case !valueFound && markerFound:
		s.deleteKey(ctx, MarkerKey(key))
		s.record(span, "get", outcomeOrphanMarker)
		return nil, false

	case valueFound && !markerFound:
		if err := s.writeMarker(ctx, key); err != nil {
			s.logger.Warn("failed to repair cache marker",
				observability.String("key", key), observability.Error(err))
		}
		s.record(span, "get", outcomeMarkerRepair)
		return value, true

	case !valueFound:
		s.record(span, "get", outcomeMiss)
		return nil, false
	}

	written, err := parseMarker(marker)
	if err != nil || s.now().Sub(written) > s.ttl {
		s.deleteKey(ctx, key)
		s.deleteKey(ctx, MarkerKey(key))
		s.record(span, "get", outcomeExpired)
		return nil, false
	}

	s.record(span, "get", outcomeHit)
	return value, true
}

// Set writes the value and then stamps the marker with the current time.
// It reports false if either write failed; a failed value write skips the
// marker, and nothing is rolled back.
func (s *Store) Set(ctx context.Context, key string, value []byte) bool {
	ctx, span := s.startSpan(ctx, "Set", key)
	defer span.End()

	if err := s.backend.Set(ctx, key, value); err != nil {
		s.backendError(span, "set", key, err)
		return false
	}
	if err := s.writeMarker(ctx, key); err != nil {
		s.logger.Warn("cache value written without marker",
			observability.String("key", key), observability.Error(err))
		s.record(span, "set", outcomePartialWrite)
		return false
	}

	s.record(span, "set", outcomeWritten)
	return true
}

// Delete removes the value and the marker. It attempts both and reports
// false if either failed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	ctx, span := s.startSpan(ctx, "Delete", key)
	defer span.End()

	valueOK := s.deleteKey(ctx, key)
	markerOK := s.deleteKey(ctx, MarkerKey(key))
	if !valueOK || !markerOK {
		s.record(span, "delete", outcomePartialDelete)
		return false
	}

	s.record(span, "delete", outcomeDeleted)
	return true
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.backend.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) writeMarker(ctx context.Context, key string) error {
	stamp := strconv.FormatInt(s.now().Unix(), 10)
	return s.backend.Set(ctx, MarkerKey(key), []byte(stamp))
}

func (s *Store) deleteKey(ctx context.Context, key string) bool {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed",
			observability.String("key", key), observability.Error(err))
		return false
	}
	return true
}

func (s *Store) backendError(span trace.Span, op, key string, err error) {
	span.RecordError(err)
	s.logger.Warn("cache backend error",
		observability.String("operation", op),
		observability.String("key", key),
		observability.Error(err))
	s.record(span, op, outcomeBackendError)
}

func parseMarker(b []byte) (time.Time, error) {
	secs, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}
