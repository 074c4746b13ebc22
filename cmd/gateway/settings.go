package main

import (
	"context"
	"time"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/vault"
)

// resolveSettings fills the upstream API key from Vault when the key is not
// set inline. A failed read leaves the key empty, so requests get a 503
// until a reload succeeds.
func resolveSettings(
	ctx context.Context,
	s config.ProxySettings,
	client vault.Client,
	logger observability.Logger,
) config.ProxySettings {
	if s.UpstreamAPIKey != "" || s.UpstreamAPIKeyVaultPath == "" {
		return s
	}
	if client == nil || !client.IsEnabled() {
		logger.Warn("upstream API key references vault but vault is disabled",
			observability.String("path", s.UpstreamAPIKeyVaultPath),
		)
		return s
	}

	key, err := vault.ReadField(ctx, client, s.UpstreamAPIKeyVaultPath)
	if err != nil {
		logger.Error("failed to read upstream API key from vault",
			observability.String("path", s.UpstreamAPIKeyVaultPath),
			observability.Error(err),
		)
		return s
	}
	s.UpstreamAPIKey = key
	return s
}

func durationOr(d config.Duration, fallback time.Duration) time.Duration {
	if d.Duration() > 0 {
		return d.Duration()
	}
	return fallback
}
