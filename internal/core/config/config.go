// Package config provides configuration management for listingkeeper services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	RulesAPI RulesAPIConfig
	Log      LogConfig
}

// RulesAPIConfig holds configuration for the gRPC product rules API.
type RulesAPIConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	MaxBatchSize   int
	DataDir        string

	// Workers bounds parallel product evaluation in EvaluateBatch.
	Workers int

	// RuleCacheTTL is how long a user's rule list is reused between runs.
	// Zero disables caching.
	RuleCacheTTL time.Duration

	// RateLimit is requests per second allowed per API key; zero disables limiting.
	RateLimit float64
	RateBurst int

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
}

// LogConfig selects the zap logger level and encoder.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		RulesAPI: RulesAPIConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
			MaxBatchSize:   1000,
			DataDir:        "./data",
			Workers:        4,
			RuleCacheTTL:   30 * time.Second,
			RateLimit:      100,
			RateBurst:      200,
			MetricsAddr:    ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports LK_HMAC_SECRET (single) and LK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check LK_HMAC_SECRET and LK_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("LK_HMAC_SECRET"); val != "" {
		if err := add("LK_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("LK_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if !IsSecretID(secretID) {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}

// IsSecretID reports whether s is 32 lowercase hex characters.
func IsSecretID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
