// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account on the platform.
//
// A user signs in either with email + password or through an OAuth provider
// (GitHub, Google). Provider accounts are linked through Identity rows, so one
// user can own several identities and we never tie our primary key to a
// third party's numbering scheme.
//
// WHY Email string (not *string)?
// Providers may hide the email. We use an empty string as the zero value
// rather than a nullable pointer, which is simpler to work with and safe to
// display. The database stores "" as NULL so the UNIQUE index ignores it.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	AvatarURL    string    `json:"avatar_url"   db:"avatar_url"`
	PasswordHash string    `json:"-"            db:"password_hash"` // never serialised
	CreatedAt    time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"   db:"updated_at"`
}

// Name returns the best label for greeting the user: display name, then
// email, then "User".
func (u *User) Name() string {
	if u == nil {
		return "User"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "User"
}

// Identity links a user to an account at an OAuth provider.
type Identity struct {
	Provider       string    `db:"provider"`         // "github" or "google"
	ProviderUserID string    `db:"provider_user_id"` // stable id at the provider
	UserID         string    `db:"user_id"`
	CreatedAt      time.Time `db:"created_at"`
}
