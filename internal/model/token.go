package model

import "time"

// RefreshToken is a long-lived, single-use credential that buys a new
// session. Only the SHA-256 of the opaque token is stored, so a leaked
// database cannot be replayed against the API.
type RefreshToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// AuthCode is the one-time code handed to the client's redirect target at
// the end of a federated sign-in. It is exchanged for a session exactly once.
type AuthCode struct {
	CodeHash  string    `db:"code_hash"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Session is what the platform hands to a signed-in client.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}
