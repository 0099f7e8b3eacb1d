// Package config provides configuration management for condfields services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig
	Engine      EngineConfig
	DatabaseURL string
}

// ServerConfig holds configuration for the gRPC form states service.
type ServerConfig struct {
	Host           string
	Port           int
	MetricsPort    int
	MaxConnections int
	RequestTimeout time.Duration
}

// EngineConfig holds rule engine settings.
type EngineConfig struct {
	// Language replaces %lang in selector overrides.
	Language string
	// PriorityWidgets lists element kinds whose attachments overwrite.
	PriorityWidgets []string
	// RejectCycles fails resolution of cyclic rule sets.
	RejectCycles bool
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MetricsPort:    9090,
			MaxConnections: 1000,
			RequestTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			Language:        "und",
			PriorityWidgets: []string{"datelist"},
		},
	}
}

// AdminSecrets extracts admin API key secrets from environment variables.
// Supports CF_ADMIN_SECRET (single) and CF_ADMIN_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func AdminSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("CF_ADMIN_SECRET"); val != "" {
		secretID, decoded, err := ParseSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("CF_ADMIN_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Multiple secrets enable rotation: old and new keys valid during migration
	for i := 1; ; i++ {
		key := fmt.Sprintf("CF_ADMIN_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check CF_ADMIN_SECRET and CF_ADMIN_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
