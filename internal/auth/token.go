// Package auth provides the credential primitives for the log center: API key
// token generation and format validation. Tokens are opaque high-entropy
// strings looked up verbatim in storage; see internal/middleware/auth.go for
// the request-time authorization logic that uses them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// TokenBytes is the number of random bytes drawn for each token.
	TokenBytes = 32

	// TokenLength is the length of the hex-encoded token string.
	TokenLength = TokenBytes * 2
)

// GenerateToken draws a fresh API key token: 32 cryptographically random
// bytes, hex encoded to 64 lowercase characters. Uniqueness is NOT guaranteed
// here; the storage layer's token registry enforces it at insert time.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidToken reports whether s has the shape of a generated token. Used for
// cheap rejection before a storage lookup; it never replaces the lookup.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
