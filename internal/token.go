package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// OpaqueTokenBytes is the entropy of reset and verification tokens.
const OpaqueTokenBytes = 32

// NewOpaqueToken returns a URL-safe random token with 256 bits of entropy.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 digest stored in place of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
