package vault

import (
	"context"
	"fmt"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/oidcgw/internal/config"
	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/retry"
)

// DefaultTimeout bounds a single Vault request.
const DefaultTimeout = 10 * time.Second

// Client is the subset of Vault the gateway needs: reading KV secrets.
type Client interface {
	IsEnabled() bool
	KV() KVClient
	Close() error
}

type vaultClient struct {
	api     *vaultapi.Client
	logger  observability.Logger
	timeout time.Duration
	kv      *kvClient
}

// ClientOption is a functional option for configuring the client.
type ClientOption func(*vaultClient)

// WithLogger sets the client logger.
func WithLogger(logger observability.Logger) ClientOption {
	return func(c *vaultClient) {
		c.logger = logger
	}
}

// New creates a Vault client authenticated with a static token. A disabled
// configuration yields a client whose reads fail with ErrVaultDisabled.
func New(cfg config.VaultConfig, opts ...ClientOption) (Client, error) {
	if !cfg.Enabled {
		return disabledClient{}, nil
	}
	if cfg.Address == "" {
		return nil, NewVaultError("init", "", fmt.Errorf("address is required"))
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	apiConfig.Timeout = timeout

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewVaultError("init", "", err)
	}
	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	c := &vaultClient{
		api:     api,
		logger:  observability.NopLogger(),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(observability.String("component", "vault"))
	c.kv = &kvClient{client: c}

	return c, nil
}

func (c *vaultClient) IsEnabled() bool { return true }
func (c *vaultClient) KV() KVClient    { return c.kv }

// Close clears the token held by the client.
func (c *vaultClient) Close() error {
	c.api.ClearToken()
	return nil
}

func (c *vaultClient) retryConfig() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

type disabledClient struct{}

func (disabledClient) IsEnabled() bool { return false }
func (disabledClient) KV() KVClient    { return disabledKVClient{} }
func (disabledClient) Close() error    { return nil }

type disabledKVClient struct{}

func (disabledKVClient) Read(context.Context, string, string) (map[string]interface{}, error) {
	return nil, ErrVaultDisabled
}
