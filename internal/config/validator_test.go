package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*GatewayConfig) {}},
		{
			name:   "missing proxy settings are not a startup error",
			mutate: func(c *GatewayConfig) { c.Proxy = ProxySettings{} },
		},
		{
			name:    "relative upstream url",
			mutate:  func(c *GatewayConfig) { c.Proxy.UpstreamAPIURL = "/v1" },
			wantErr: "proxy.upstream_api_url",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *GatewayConfig) { c.Cache.Type = "disk" },
			wantErr: "cache.type",
		},
		{
			name:    "redis without url",
			mutate:  func(c *GatewayConfig) { c.Cache.Type = CacheTypeRedis },
			wantErr: "cache.redis.url",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *GatewayConfig) { c.Cache.TTL = 0 },
			wantErr: "cache.ttl",
		},
		{
			name:    "vault path without vault",
			mutate:  func(c *GatewayConfig) { c.Proxy.UpstreamAPIKeyVaultPath = "secret/upstream" },
			wantErr: "requires vault.enabled",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *GatewayConfig) { c.Observability.Metrics.Port = 70000 },
			wantErr: "observability.metrics.port",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *GatewayConfig) { c.Timeouts.Write = 0 },
			wantErr: "timeouts",
		},
		{
			name: "rate limit without rate",
			mutate: func(c *GatewayConfig) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerSecond = 0
			},
			wantErr: "rateLimit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()
	assert.EqualError(t, ValidateConfig(nil), "configuration is nil")
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{{Path: "a", Message: "x"}, {Message: "y"}}
	assert.Contains(t, errs.Error(), "2 validation errors")
	assert.Contains(t, errs.Error(), "a: x")
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}
