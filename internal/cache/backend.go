package cache

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/vault"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "oidcgw/cache"

// ErrCacheMiss is returned by a Backend when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Backend is a byte-oriented key-value store with no expiry of its own.
// Store layers TTL semantics on top of it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Option configures backend construction.
type Option func(*options)

type options struct {
	vaultClient vault.Client
	redisDialer func(ctx context.Context, network, addr string) (net.Conn, error)
}

// WithVaultClient sets the Vault client used to resolve the Redis password.
func WithVaultClient(c vault.Client) Option {
	return func(o *options) {
		o.vaultClient = c
	}
}

// WithRedisDialer overrides the dialer of the Redis client.
func WithRedisDialer(d func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *options) {
		o.redisDialer = d
	}
}

// New creates the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.CacheConfig, logger observability.Logger, opts ...Option) (Backend, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case "", config.CacheTypeMemory:
		return NewMemoryBackend(cfg.MaxEntries, logger), nil
	case config.CacheTypeRedis:
		return newRedisBackend(ctx, cfg.Redis, logger, o)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
