package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfigYAML = `
listener:
  address: ":9000"
proxy:
  oidc_issuer: https://idp.example.com
  oidc_audience: my-api
  oidc_scope: "read write"
  upstream_api_url: https://upstream.example.com/v1/
  upstream_api_key: ${TEST_OIDCGW_KEY:-fallback}
  identity_claim_name: sub
  clock_skew: 30s
cache:
  type: memory
  ttl: 600
timeouts:
  streamingRead: 120s
`

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listener.Address)
	assert.Equal(t, "https://idp.example.com", cfg.Proxy.OIDCIssuer)
	assert.Equal(t, "my-api", cfg.Proxy.OIDCAudience)
	assert.Equal(t, "read write", cfg.Proxy.OIDCScope)
	assert.Equal(t, "fallback", cfg.Proxy.UpstreamAPIKey)
	assert.Equal(t, "sub", cfg.Proxy.IdentityClaimName)
	assert.Equal(t, 30*time.Second, cfg.Proxy.ClockSkewDuration())
	assert.Equal(t, 600*time.Second, cfg.Cache.TTL.Duration())
	assert.Equal(t, 120*time.Second, cfg.Timeouts.StreamingRead.Duration())

	// Omitted keys keep their defaults.
	assert.Equal(t, DefaultReadTimeout, cfg.Timeouts.DefaultRead.Duration())
	assert.Equal(t, DefaultWriteTimeout, cfg.Timeouts.Write.Duration())
	assert.Equal(t, DefaultCacheMaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, DefaultMetricsPort, cfg.Observability.Metrics.Port)
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_OIDCGW_KEY", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfigYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Proxy.UpstreamAPIKey)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("listener: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfigFromReader(strings.NewReader("cache:\n  ttl: soon\n"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_OIDCGW_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "${TEST_OIDCGW_SET}", want: "value"},
		{in: "${TEST_OIDCGW_UNSET}", want: ""},
		{in: "${TEST_OIDCGW_UNSET:-dflt}", want: "dflt"},
		{in: "${TEST_OIDCGW_SET:-dflt}", want: "value"},
		{in: "$${TEST_OIDCGW_SET}", want: "${TEST_OIDCGW_SET}"},
		{in: "plain", want: "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}
