package config

import (
	"sync/atomic"
	"time"
)

// ProxySettings are the per-deployment values the gateway reads on every
// request. Keys mirror the plugin settings surface of the gateway.
type ProxySettings struct {
	OIDCIssuer     string `yaml:"oidc_issuer" json:"oidc_issuer"`
	OIDCAudience   string `yaml:"oidc_audience" json:"oidc_audience"`
	OIDCScope      string `yaml:"oidc_scope,omitempty" json:"oidc_scope,omitempty"`
	UpstreamAPIURL string `yaml:"upstream_api_url" json:"upstream_api_url"`
	UpstreamAPIKey string `yaml:"upstream_api_key" json:"-"`

	// UpstreamAPIKeyVaultPath is "mount/path" or "mount/path#field"; the
	// field defaults to "api_key". Used only when UpstreamAPIKey is empty.
	UpstreamAPIKeyVaultPath string `yaml:"upstream_api_key_vault_path,omitempty" json:"upstream_api_key_vault_path,omitempty"`

	IdentityClaimName string `yaml:"identity_claim_name,omitempty" json:"identity_claim_name,omitempty"`

	// StreamingPaths overrides the allow-list of upstream call paths.
	StreamingPaths []string `yaml:"streaming_paths,omitempty" json:"streaming_paths,omitempty"`

	ClockSkew Duration `yaml:"clock_skew,omitempty" json:"clock_skew,omitempty"`
}

// SettingsStore holds the current ProxySettings snapshot. Reads are
// lock-free; a reload replaces the whole snapshot.
type SettingsStore struct {
	current atomic.Pointer[ProxySettings]
}

// NewSettingsStore creates a store holding a copy of s.
func NewSettingsStore(s ProxySettings) *SettingsStore {
	st := &SettingsStore{}
	st.Store(s)
	return st
}

// Load returns the current snapshot.
func (st *SettingsStore) Load() ProxySettings {
	if p := st.current.Load(); p != nil {
		return *p
	}
	return ProxySettings{}
}

// Store replaces the current snapshot.
func (st *SettingsStore) Store(s ProxySettings) {
	st.current.Store(&s)
}

// ClockSkewDuration returns the configured leeway for time-based claims.
func (s ProxySettings) ClockSkewDuration() time.Duration {
	return s.ClockSkew.Duration()
}
