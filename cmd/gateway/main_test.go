package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/vault"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG_PATH", "")
	t.Setenv("GATEWAY_LOG_LEVEL", "")
	t.Setenv("GATEWAY_WATCH_CONFIG", "")

	f := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	assert.Equal(t, "configs/gateway.yaml", f.configPath)
	assert.Empty(t, f.logLevel)
	assert.True(t, f.watchConfig)
	assert.False(t, f.showVersion)
}

func TestParseFlags_EnvAndArgs(t *testing.T) {
	t.Setenv("GATEWAY_CONFIG_PATH", "/etc/oidcgw.yaml")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_WATCH_CONFIG", "off")

	f := parseFlags(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-log-format", "console", "-version"})
	assert.Equal(t, "/etc/oidcgw.yaml", f.configPath)
	assert.Equal(t, "debug", f.logLevel)
	assert.Equal(t, "console", f.logFormat)
	assert.False(t, f.watchConfig)
	assert.True(t, f.showVersion)
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"TRUE", false, true},
		{"yes", false, true},
		{"0", true, false},
		{"Off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("OIDCGW_TEST_BOOL", tt.value)
		assert.Equal(t, tt.want, getEnvBool("OIDCGW_TEST_BOOL", tt.def), tt.value)
	}
}

func TestInitLogger(t *testing.T) {
	t.Parallel()

	_, err := initLogger(cliFlags{}, config.LoggingConfig{Format: "json"})
	require.NoError(t, err)

	_, err = initLogger(cliFlags{logLevel: "loud"}, config.LoggingConfig{Level: "info"})
	require.Error(t, err)

	_, err = initLogger(cliFlags{logFormat: "xml"}, config.LoggingConfig{})
	require.Error(t, err)
}

type fakeVault struct {
	data map[string]interface{}
	err  error
}

func (f *fakeVault) IsEnabled() bool    { return true }
func (f *fakeVault) KV() vault.KVClient { return f }
func (f *fakeVault) Close() error       { return nil }
func (f *fakeVault) Read(context.Context, string, string) (map[string]interface{}, error) {
	return f.data, f.err
}

func TestResolveSettings(t *testing.T) {
	t.Parallel()

	logger := observability.NopLogger()
	ctx := context.Background()

	inline := config.ProxySettings{UpstreamAPIKey: "inline", UpstreamAPIKeyVaultPath: "secret/app"}
	assert.Equal(t, "inline", resolveSettings(ctx, inline, &fakeVault{}, logger).UpstreamAPIKey)

	fromVault := config.ProxySettings{UpstreamAPIKeyVaultPath: "secret/app#token"}
	got := resolveSettings(ctx, fromVault, &fakeVault{data: map[string]interface{}{"token": "s3cret"}}, logger)
	assert.Equal(t, "s3cret", got.UpstreamAPIKey)

	failed := resolveSettings(ctx, fromVault, &fakeVault{err: errors.New("sealed")}, logger)
	assert.Empty(t, failed.UpstreamAPIKey)

	disabled, err := vault.New(config.VaultConfig{})
	require.NoError(t, err)
	assert.Empty(t, resolveSettings(ctx, fromVault, disabled, logger).UpstreamAPIKey)
}

func testConfig() *config.GatewayConfig {
	cfg := config.DefaultConfig()
	cfg.Listener.Address = "127.0.0.1:0"
	cfg.Observability.Metrics.Enabled = false
	cfg.RateLimit.Enabled = true
	cfg.CircuitBreaker.Enabled = true
	return cfg
}

func TestNewApplication_UnconfiguredReturns503(t *testing.T) {
	t.Parallel()

	app, err := newApplication(context.Background(), testConfig(), observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.shutdown(context.Background()) })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat-messages", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer token")
	app.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OpenID Connect Issuer is required", body["error"])

	mux := newMetricsMux("", app.metrics, app.healthChecker)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, config.DefaultMetricsPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gateway_requests_total")

	// Missing settings degrade readiness but the cache keeps it ready.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestNewApplication_InvalidCache(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cache.Type = "etcd"
	_, err := newApplication(context.Background(), cfg, observability.NopLogger())
	require.Error(t, err)
}

func TestApplication_StartReloadShutdown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listener:\n  address: \"127.0.0.1:0\"\n"), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	cfg.Observability.Metrics.Enabled = false

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, observability.NopLogger())
	require.NoError(t, err)
	require.NoError(t, app.start(ctx, cliFlags{configPath: path, watchConfig: true}))
	require.NotNil(t, app.watcher)
	assert.True(t, app.gateway.IsRunning())

	updated := "listener:\n  address: \"127.0.0.1:0\"\nproxy:\n  oidc_issuer: https://idp.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		return app.settings.Load().OIDCIssuer == "https://idp.example.com"
	}, 5*time.Second, 20*time.Millisecond)

	app.shutdown(ctx)
	assert.False(t, app.gateway.IsRunning())
	assert.True(t, app.healthChecker.IsDraining())
}
