package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// opaqueTokenBytes is the entropy of refresh tokens and one-time auth codes.
const opaqueTokenBytes = 32

// NewOpaqueToken returns a random URL-safe token.
//
// Unlike access tokens these carry no claims: they are only meaningful to the
// platform, which stores HashOpaqueToken(token) and looks the hash up.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashOpaqueToken returns the hex SHA-256 of token.
//
// A fast hash is fine here (unlike passwords): the input is 256 random bits,
// so there is nothing to brute-force.
func HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
