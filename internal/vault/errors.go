// Package vault provides HashiCorp Vault integration for secret management.
package vault

import (
	"errors"
	"fmt"
)

// Common errors for Vault operations.
var (
	// ErrVaultDisabled is returned by the client used when Vault is not configured.
	ErrVaultDisabled = errors.New("vault: disabled")

	// ErrSecretNotFound indicates the secret or the requested field was not found.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrInvalidPath indicates a malformed secret reference.
	ErrInvalidPath = errors.New("vault: invalid secret path")
)

// VaultError represents a Vault operation failure.
type VaultError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s on path %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *VaultError) Unwrap() error {
	return e.Err
}

// NewVaultError creates a new VaultError.
func NewVaultError(op, path string, err error) *VaultError {
	return &VaultError{Op: op, Path: path, Err: err}
}
