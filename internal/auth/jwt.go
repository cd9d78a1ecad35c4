// Package auth provides token, password and OAuth primitives for the platform.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A client signs in (password grant, or OAuth via /auth/v1/authorize)
//  2. The platform issues a session: a short-lived JWT access token plus an
//     opaque refresh token
//  3. The client sends "Authorization: Bearer <access token>" on every call;
//     middleware validates the JWT and puts the userID in the request context
//  4. Before the access token expires the client trades the refresh token for
//     a new session (the refresh token is rotated on every use)
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"userID","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server can verify the signature without any DB lookup, just the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "snippet-vault"

	// DefaultAccessTokenTTL is used when NewTokenService gets a zero TTL.
	DefaultAccessTokenTTL = 15 * time.Minute
)

// ErrTokenExpired is returned by Validate for well-formed but expired tokens.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and access
// token lifetime. The secret should be at least 32 bytes of random data in
// production. Example: SNIPPETS_AUTH_JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens created by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Issuer, Subject, ExpiresAt, IssuedAt.
//
// We use "sub" (Subject) to store the internal user ID and "email" so clients
// can show who is signed in without another round trip.
type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates and signs a new access token for the given user.
// It returns the token and its expiry time.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple, good for single-server deployments
func (s *TokenService) Generate(userID, email string) (string, time.Time, error) {
	return s.GenerateWithDuration(userID, email, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(d)

	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate parses and verifies a JWT string.
// Returns the userID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}

	return c.Subject, nil
}
