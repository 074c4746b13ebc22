package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// ValidateConfig checks the structural parts of the configuration.
//
// Missing proxy settings (issuer, audience, upstream URL or key) are not
// validation errors: the gateway starts and answers such requests with 503,
// which lets operators fix settings through a hot reload.
func ValidateConfig(cfg *GatewayConfig) error {
	if cfg == nil {
		return ValidationErrors{{Message: "configuration is nil"}}
	}

	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Listener.Address == "" {
		add("listener.address", "is required")
	}
	if cfg.Listener.MaxBodySize < 0 {
		add("listener.maxBodySize", "must not be negative")
	}

	if u := cfg.Proxy.UpstreamAPIURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			add("proxy.upstream_api_url", "must be an absolute URL, got %q", u)
		}
	}
	if cfg.Proxy.ClockSkew < 0 {
		add("proxy.clock_skew", "must not be negative")
	}
	if cfg.Proxy.UpstreamAPIKeyVaultPath != "" && !cfg.Vault.Enabled {
		add("proxy.upstream_api_key_vault_path", "requires vault.enabled")
	}

	if cfg.Timeouts.StreamingRead <= 0 || cfg.Timeouts.DefaultRead <= 0 || cfg.Timeouts.Write <= 0 {
		add("timeouts", "all timeouts must be positive")
	}

	switch cfg.Cache.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if cfg.Cache.Redis == nil || cfg.Cache.Redis.URL == "" {
			add("cache.redis.url", "is required for the redis cache")
		}
	default:
		add("cache.type", "must be %q or %q, got %q", CacheTypeMemory, CacheTypeRedis, cfg.Cache.Type)
	}
	if cfg.Cache.TTL <= 0 {
		add("cache.ttl", "must be positive")
	}

	if cfg.CircuitBreaker.Enabled && cfg.CircuitBreaker.Threshold <= 0 {
		add("circuitBreaker.threshold", "must be positive")
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.Burst <= 0) {
		add("rateLimit", "requestsPerSecond and burst must be positive")
	}
	if cfg.Vault.Enabled && cfg.Vault.Address == "" {
		add("vault.address", "is required when vault is enabled")
	}

	if m := cfg.Observability.Metrics; m.Enabled && (m.Port <= 0 || m.Port > 65535) {
		add("observability.metrics.port", "must be between 1 and 65535, got %d", m.Port)
	}
	if r := cfg.Observability.Tracing.SamplingRate; r < 0 || r > 1 {
		add("observability.tracing.samplingRate", "must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
