// Package vault reads secrets from HashiCorp Vault.
//
// The gateway uses it to resolve the upstream API key and the Redis
// password from KV secrets, addressed as "mount/path#field".
package vault
