// Package config provides configuration types and loading for the gateway.
package config

import "time"

// Default values applied by DefaultConfig.
const (
	DefaultListenAddress     = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxBodySize       = 32 << 20

	DefaultStreamingReadTimeout = 300 * time.Second
	DefaultReadTimeout          = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second

	DefaultCacheType       = CacheTypeMemory
	DefaultCacheTTL        = 3600 * time.Second
	DefaultCacheMaxEntries = 10000

	DefaultDiscoveryTimeout = 30 * time.Second

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
	DefaultServiceName = "oidcgw"
)

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// GatewayConfig is the root of the gateway configuration file.
type GatewayConfig struct {
	Listener       ListenerConfig       `yaml:"listener" json:"listener"`
	Proxy          ProxySettings        `yaml:"proxy" json:"proxy"`
	Timeouts       TimeoutsConfig       `yaml:"timeouts" json:"timeouts"`
	Cache          CacheConfig          `yaml:"cache" json:"cache"`
	Discovery      DiscoveryConfig      `yaml:"discovery" json:"discovery"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit" json:"rateLimit"`
	Vault          VaultConfig          `yaml:"vault" json:"vault"`
	Observability  ObservabilityConfig  `yaml:"observability" json:"observability"`
}

// ListenerConfig configures the inbound HTTP listener.
type ListenerConfig struct {
	Address           string   `yaml:"address" json:"address"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`

	// MaxBodySize caps the inbound request body in bytes.
	MaxBodySize int64 `yaml:"maxBodySize,omitempty" json:"maxBodySize,omitempty"`

	// TrustedProxies are CIDRs or IPs whose X-Forwarded-For is believed
	// when resolving the client address.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
}

// TimeoutsConfig holds the per-socket-operation timeouts applied to upstream calls.
type TimeoutsConfig struct {
	// StreamingRead applies to allow-listed upstream calls.
	StreamingRead Duration `yaml:"streamingRead,omitempty" json:"streamingRead,omitempty"`
	DefaultRead   Duration `yaml:"defaultRead,omitempty" json:"defaultRead,omitempty"`
	Write         Duration `yaml:"write,omitempty" json:"write,omitempty"`
}

// CacheConfig configures the verification cache.
type CacheConfig struct {
	// Type is the backend: "memory" or "redis".
	Type string `yaml:"type" json:"type"`

	TTL        Duration     `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	MaxEntries int          `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
	Redis      *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig contains Redis backend configuration.
type RedisConfig struct {
	// URL format: redis://[user:password@]host:port[/db]
	URL            string   `yaml:"url" json:"url"`
	PoolSize       int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	ConnectTimeout Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
	ReadTimeout    Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout   Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	KeyPrefix      string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// PasswordVaultPath is a "mount/path" KV secret holding a "password" key.
	PasswordVaultPath string `yaml:"passwordVaultPath,omitempty" json:"passwordVaultPath,omitempty"`
}

// DiscoveryConfig configures OIDC discovery and JWKS fetches.
type DiscoveryConfig struct {
	HTTPTimeout Duration `yaml:"httpTimeout,omitempty" json:"httpTimeout,omitempty"`
}

// CircuitBreakerConfig configures the upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	Threshold        int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Timeout          Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	HalfOpenRequests int      `yaml:"halfOpenRequests,omitempty" json:"halfOpenRequests,omitempty"`
}

// RateLimitConfig configures the inbound token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty" json:"burst,omitempty"`
	PerClient         bool    `yaml:"perClient,omitempty" json:"perClient,omitempty"`
}

// VaultConfig configures the optional Vault client used for secrets.
type VaultConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Address   string   `yaml:"address,omitempty" json:"address,omitempty"`
	Token     string   `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ObservabilityConfig groups logging, metrics and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the metrics and health server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// DefaultConfig returns a configuration populated with defaults. The loader
// unmarshals YAML on top of it, so omitted keys keep these values.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Listener: ListenerConfig{
			Address:           DefaultListenAddress,
			ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
			IdleTimeout:       Duration(DefaultIdleTimeout),
			MaxBodySize:       DefaultMaxBodySize,
		},
		Timeouts: TimeoutsConfig{
			StreamingRead: Duration(DefaultStreamingReadTimeout),
			DefaultRead:   Duration(DefaultReadTimeout),
			Write:         Duration(DefaultWriteTimeout),
		},
		Cache: CacheConfig{
			Type:       DefaultCacheType,
			TTL:        Duration(DefaultCacheTTL),
			MaxEntries: DefaultCacheMaxEntries,
		},
		Discovery: DiscoveryConfig{
			HTTPTimeout: Duration(DefaultDiscoveryTimeout),
		},
		CircuitBreaker: CircuitBreakerConfig{
			Threshold:        5,
			Timeout:          Duration(30 * time.Second),
			HalfOpenRequests: 1,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			Metrics: MetricsConfig{Enabled: true, Port: DefaultMetricsPort, Path: DefaultMetricsPath},
			Tracing: TracingConfig{SamplingRate: 1.0, ServiceName: DefaultServiceName},
		},
	}
}
