// Package config provides configuration types, YAML loading, validation
// and hot reload for the gateway.
//
// Configuration files are YAML with ${VAR} and ${VAR:-default}
// environment substitution. Keys that are omitted keep the values from
// DefaultConfig. The proxy block carries the per-deployment settings
// (issuer, audience, scope, upstream URL and key, identity claim) and is
// published through a SettingsStore so that each request sees one
// consistent snapshot, including after a reload by Watcher.
package config
