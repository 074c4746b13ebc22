package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/retry"
	"github.com/vyrodovalexey/oidcgw/internal/vault"
)

const (
	backendRedis     = "redis"
	defaultKeyPrefix = "oidcgw:"
)

func redisRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		JitterFactor:   retry.DefaultJitterFactor,
	}
}

// isRetryableRedisError reports whether err is a connection-level failure.
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, redis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

type redisBackend struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
}

func newRedisBackend(
	ctx context.Context, cfg *config.RedisConfig, logger observability.Logger, o *options,
) (*redisBackend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("redis URL is required")
	}

	redisURL := cfg.URL
	if cfg.PasswordVaultPath != "" {
		pw, err := resolveRedisPassword(ctx, cfg.PasswordVaultPath, o.vaultClient)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve redis password: %w", err)
		}
		if redisURL, err = applyPasswordToRedisURL(redisURL, pw); err != nil {
			return nil, err
		}
		logger.Info("redis password resolved from vault",
			observability.String("vaultPath", cfg.PasswordVaultPath))
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout.Duration()
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout.Duration()
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout.Duration()
	}
	if o.redisDialer != nil {
		opts.Dialer = o.redisDialer
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	logger.Info("redis cache initialized", observability.String("keyPrefix", keyPrefix))

	return &redisBackend{
		logger:    logger,
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// resolveRedisPassword reads the "password" field of a "mount/path" KV secret.
func resolveRedisPassword(ctx context.Context, vaultPath string, c vault.Client) (string, error) {
	if c == nil || !c.IsEnabled() {
		return "", errors.New("vault path configured but vault is not enabled")
	}
	return vault.ReadField(ctx, c, vaultPath+"#password")
}

func applyPasswordToRedisURL(rawURL, password string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse redis URL: %w", err)
	}
	var username string
	if parsed.User != nil {
		username = parsed.User.Username()
	}
	parsed.User = url.UserPassword(username, password)
	return parsed.String(), nil
}

func (c *redisBackend) do(ctx context.Context, op, key string, fn func(ctx context.Context, fullKey string) error) error {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", backendRedis),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetCacheMetrics().operationDuration.WithLabelValues(backendRedis, op).Observe(time.Since(start).Seconds())
	}()

	fullKey := c.keyPrefix + key
	err := retry.Do(ctx, redisRetryConfig(), func() error {
		return fn(ctx, fullKey)
	}, &retry.Options{
		ShouldRetry: isRetryableRedisError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.logger.Debug("retrying redis operation",
				observability.String("op", op),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err))
		},
	})

	if err != nil && !errors.Is(err, redis.Nil) {
		GetCacheMetrics().errorsTotal.WithLabelValues(backendRedis, op).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := c.do(ctx, "get", key, func(ctx context.Context, fullKey string) error {
		var err error
		result, err = c.client.Get(ctx, fullKey).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *redisBackend) Set(ctx context.Context, key string, value []byte) error {
	return c.do(ctx, "set", key, func(ctx context.Context, fullKey string) error {
		return c.client.Set(ctx, fullKey, value, 0).Err()
	})
}

func (c *redisBackend) Delete(ctx context.Context, key string) error {
	return c.do(ctx, "delete", key, func(ctx context.Context, fullKey string) error {
		return c.client.Del(ctx, fullKey).Err()
	})
}

func (c *redisBackend) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisBackend) Close() error {
	return c.client.Close()
}
