// Package repository declares the storage contracts of the platform.
// internal/repository/sqlite is the only implementation; services and their
// tests depend on these interfaces.
package repository

import (
	"context"
	"time"

	"github.com/sakif/snippet-vault/internal/model"
)

// SnippetRepository stores snippets. There is no update or delete: a
// snippet is immutable once created.
type SnippetRepository interface {
	// Create assigns ID and CreatedAt and inserts the snippet.
	Create(ctx context.Context, snippet *model.Snippet) error
	// ListForUser returns the user's snippets, newest first.
	ListForUser(ctx context.Context, userID string) ([]model.Snippet, error)
}

// UserRepository stores users and their linked OAuth identities.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*model.User, error)
	// UpdateProfile refreshes display name and avatar.
	UpdateProfile(ctx context.Context, user *model.User) error
	LinkIdentity(ctx context.Context, identity *model.Identity) error
}

// TokenRepository stores refresh tokens and one-time auth codes by hash.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	// ConsumeRefreshToken revokes the live token with the given hash and
	// returns it. Unknown, revoked and expired tokens are NotFound.
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*model.RefreshToken, error)
	RevokeRefreshTokens(ctx context.Context, userID string, now time.Time) error

	CreateAuthCode(ctx context.Context, code *model.AuthCode) error
	// ConsumeAuthCode deletes the code and returns it if it had not expired.
	ConsumeAuthCode(ctx context.Context, codeHash string, now time.Time) (*model.AuthCode, error)
}
