package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix  = "lk"
	keyVersion = "v1"

	// randomBytes is the entropy carried by a key (64 hex chars).
	randomBytes = 32
)

// ParseAPIKey extracts secret_id and random_data from API key format.
// Format: lk-v1-<secret_id>-<random_data>, secret_id 32 lowercase hex
// chars, random_data 64 lowercase hex chars.
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]
	if len(secretID) != 32 || len(randomData) != 2*randomBytes {
		return "", "", ErrInvalidKeyFormat
	}

	for _, c := range secretID + randomData {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", "", ErrInvalidKeyFormat
		}
	}

	return secretID, randomData, nil
}

// ComputeHMAC computes HMAC-SHA256 signature of API key using secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC verifies HMAC signature using constant-time comparison.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs API key from components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData)
}

// GenerateAPIKey creates a new random key bound to secretID and returns it
// together with its HMAC under secret. Only the hash is stored; the key is
// shown to the operator once.
func GenerateAPIKey(secretID string, secret []byte) (key string, hash []byte, err error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	key = FormatAPIKey(strings.ToLower(secretID), hex.EncodeToString(buf))
	if _, _, err := ParseAPIKey(key); err != nil {
		return "", nil, fmt.Errorf("secret ID %q cannot form a valid key: %w", secretID, err)
	}
	return key, ComputeHMAC(secret, key), nil
}
