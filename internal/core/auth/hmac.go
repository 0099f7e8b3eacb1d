package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// keyPrefix and keyVersion open every admin API key.
const (
	keyPrefix  = "cf"
	keyVersion = "v1"
)

// ParseAPIKey extracts secret_id and random_data from API key format.
// Format: cf-v1-<secret_id>-<random_data> (32 and 64 lowercase hex chars).
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]

	// secret_id is 32 hex chars (UUID without hyphens), random_data 256 bits
	if len(secretID) != 32 || len(randomData) != 64 {
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

// GenerateAPIKey creates a random key bound to secretID.
func GenerateAPIKey(secretID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	key := FormatAPIKey(secretID, hex.EncodeToString(buf))
	if _, _, err := ParseAPIKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// IssuedKey is a newly created admin key. Key is shown once and never stored.
type IssuedKey struct {
	ID  string
	Key string
}

// IssueKey generates a key under secretID and stores its HMAC.
func IssueKey(ctx context.Context, queries Queries, name, secretID string, secret []byte) (*IssuedKey, error) {
	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return nil, err
	}
	id := uuid.Must(uuid.NewV7()).String()
	if _, err := queries.Exec(ctx, "insert-admin-key", id, name, ComputeHMAC(secret, key), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to store admin key: %w", err)
	}
	return &IssuedKey{ID: id, Key: key}, nil
}

// RevokeKey marks an admin key revoked.
func RevokeKey(ctx context.Context, queries Queries, keyID string) error {
	res, err := queries.Exec(ctx, "revoke-admin-key", time.Now().UTC(), keyID)
	if err != nil {
		return fmt.Errorf("failed to revoke admin key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidKey, keyID)
	}
	return nil
}
