// Package config provides configuration management for the membership gateway.
//
// Configuration is read from a YAML file and then overridden by environment
// variables. Every attribute remembers where its value came from so that
// `membershipctl configuration show` can report it.
//
// # Configuration Sources
//
//   - MEMBERSHIP_CONFIG_PATH/membership.yml (default /etc/membership/membership.yml)
//   - MEMBERSHIP_* environment variables (take precedence)
//
// # Secrets
//
// Secrets are never read from the file:
//
//   - DATABASE_URL: relational store connection
//   - MEMBERSHIP_DATA_KEY: base64 AES-256 key sealing resource signing seeds
//   - MEMBERSHIP_SESSION_SECRET: HMAC key for session tokens
package config
