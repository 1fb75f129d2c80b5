// Package token implements the in-process token lifecycle stores: one-time
// URL tokens exchanged exactly once for medium-lived session tokens. All
// state is process-local and lost on restart; re-authentication is cheap.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenEntropyBytes gives 256 bits of entropy per token
const tokenEntropyBytes = 32

// newToken generates a cryptographically random opaque token string
func newToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken returns the hex-encoded SHA-256 digest of a token. One-time
// tokens are stored only by digest so a leaked store cannot be replayed.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
