package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

func (db *DB) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	token.ID = xid.New().String()
	token.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	token.ExpiresAt = token.ExpiresAt.UTC()

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken claims the token with a single conditional UPDATE, so
// two concurrent refreshes with the same token cannot both succeed.
func (db *DB) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*model.RefreshToken, error) {
	now = now.UTC()

	result, err := db.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?`,
		now, tokenHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: consuming refresh token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("refresh token", "(redacted)")
	}

	var t model.RefreshToken
	err = db.db.GetContext(ctx, &t,
		`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		 FROM refresh_tokens WHERE token_hash = ?`,
		tokenHash,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading refresh token: %w", err)
	}
	return &t, nil
}

// RevokeRefreshTokens revokes every live refresh token of the user.
func (db *DB) RevokeRefreshTokens(ctx context.Context, userID string, now time.Time) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?
		 WHERE user_id = ? AND revoked_at IS NULL`,
		now.UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking refresh tokens for user %s: %w", userID, err)
	}
	return nil
}

func (db *DB) CreateAuthCode(ctx context.Context, code *model.AuthCode) error {
	code.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	code.ExpiresAt = code.ExpiresAt.UTC()

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO auth_codes (code_hash, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		code.CodeHash,
		code.UserID,
		code.ExpiresAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating auth code: %w", err)
	}
	return nil
}

// ConsumeAuthCode reads then deletes the code. Whoever deletes the row owns
// it; a concurrent second exchange sees zero rows affected.
func (db *DB) ConsumeAuthCode(ctx context.Context, codeHash string, now time.Time) (*model.AuthCode, error) {
	var c model.AuthCode
	err := db.db.GetContext(ctx, &c,
		`SELECT code_hash, user_id, expires_at, created_at
		 FROM auth_codes WHERE code_hash = ?`,
		codeHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("auth code", "(redacted)")
		}
		return nil, fmt.Errorf("sqlite: reading auth code: %w", err)
	}

	result, err := db.db.ExecContext(ctx, `DELETE FROM auth_codes WHERE code_hash = ?`, codeHash)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting auth code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 || !c.ExpiresAt.After(now) {
		return nil, apperror.NotFound("auth code", "(redacted)")
	}
	return &c, nil
}
