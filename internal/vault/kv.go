package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/oidcgw/internal/observability"
	"github.com/vyrodovalexey/oidcgw/internal/retry"
)

// DefaultSecretField is the field read by ReadField when the reference has none.
const DefaultSecretField = "api_key"

// KVClient provides KV secrets engine reads.
type KVClient interface {
	Read(ctx context.Context, mount, path string) (map[string]interface{}, error)
}

type kvClient struct {
	client *vaultClient
}

// Read reads a KV v2 secret, falling back to the KV v1 layout.
func (k *kvClient) Read(ctx context.Context, mount, path string) (map[string]interface{}, error) {
	if mount == "" || path == "" {
		return nil, NewVaultError("kv_read", path, ErrInvalidPath)
	}

	fullPath := fmt.Sprintf("%s/data/%s", mount, path)

	ctx, cancel := context.WithTimeout(ctx, k.client.timeout)
	defer cancel()

	var secret *vaultapi.Secret
	err := retry.Do(ctx, k.client.retryConfig(), func() error {
		var err error
		secret, err = k.client.api.Logical().ReadWithContext(ctx, fullPath)
		if isClientError(err) {
			return retry.Permanent(err)
		}
		return err
	}, nil)
	if err != nil {
		return nil, NewVaultError("kv_read", fullPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, NewVaultError("kv_read", fullPath, ErrSecretNotFound)
	}

	dataValue, hasData := secret.Data["data"]
	if hasData && dataValue == nil {
		// soft-deleted KV v2 secret
		return nil, NewVaultError("kv_read", fullPath, ErrSecretNotFound)
	}
	data, ok := dataValue.(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	k.client.logger.Debug("secret read", observability.String("path", fullPath))
	return data, nil
}

func isClientError(err error) bool {
	var respErr *vaultapi.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode >= http.StatusBadRequest && respErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// ParseRef splits "mount/path#field" into its parts. The field defaults to
// DefaultSecretField.
func ParseRef(ref string) (mount, path, field string, err error) {
	field = DefaultSecretField
	if i := strings.LastIndex(ref, "#"); i >= 0 {
		ref, field = ref[:i], ref[i+1:]
	}
	parts := strings.SplitN(strings.Trim(ref, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || field == "" {
		return "", "", "", fmt.Errorf("%w: %q, expected mount/path[#field]", ErrInvalidPath, ref)
	}
	return parts[0], parts[1], field, nil
}

// ReadField reads a single string field addressed by a "mount/path#field" reference.
func ReadField(ctx context.Context, c Client, ref string) (string, error) {
	mount, path, field, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	data, err := c.KV().Read(ctx, mount, path)
	if err != nil {
		return "", err
	}

	value, ok := data[field].(string)
	if !ok || value == "" {
		return "", NewVaultError("kv_read", mount+"/"+path,
			fmt.Errorf("%w: field %q missing or empty", ErrSecretNotFound, field))
	}
	return value, nil
}
