package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Email is stored as NULL when empty so the UNIQUE index only applies to real
// addresses; COALESCE maps it back to "" for the string field.
const userColumns = `id, COALESCE(email, '') AS email, display_name, avatar_url, password_hash, created_at, updated_at`

// CreateUser inserts a new user. A second account with the same email
// (case-insensitive) is an apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, avatar_url, password_hash, created_at, updated_at)
		 VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?)`,
		user.ID,
		strings.TrimSpace(user.Email),
		user.DisplayName,
		user.AvatarURL,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email. The column is COLLATE NOCASE,
// so "Ada@Example.com" finds "ada@example.com".
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.NotFound("user", "(empty email)")
	}
	return db.getUser(ctx, email, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByIdentity finds the user linked to a provider account.
func (db *DB) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	return db.getUser(ctx, provider+":"+providerUserID,
		`SELECT u.id, COALESCE(u.email, '') AS email, u.display_name, u.avatar_url,
		        u.password_hash, u.created_at, u.updated_at
		 FROM users u
		 JOIN identities i ON i.user_id = u.id
		 WHERE i.provider = ? AND i.provider_user_id = ?`,
		provider, providerUserID,
	)
}

// getUser runs a single-row user query and maps sql.ErrNoRows to NotFound.
func (db *DB) getUser(ctx context.Context, key, query string, args ...any) (*model.User, error) {
	var u model.User
	if err := db.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return &u, nil
}

// UpdateProfile overwrites display name and avatar, e.g. after a provider
// sign-in reports a new picture.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	result, err := db.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`,
		user.DisplayName,
		user.AvatarURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	// RowsAffected == 0 means the WHERE clause matched nothing.
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// LinkIdentity records that a provider account belongs to a user. Linking an
// account that is already linked is an apperror.ErrConflict.
func (db *DB) LinkIdentity(ctx context.Context, identity *model.Identity) error {
	identity.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO identities (provider, provider_user_id, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		identity.Provider,
		identity.ProviderUserID,
		identity.UserID,
		identity.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("identity", identity.Provider+":"+identity.ProviderUserID)
		}
		return fmt.Errorf("sqlite: linking identity: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
