package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, user_id, title, code_content, description, language, created_at`

// Create inserts a new snippet.
//
// KEY CONCEPTS:
//
//  1. ID GENERATION WITH xid:
//     xid generates 20-char, URL-safe, globally unique IDs that start with a
//     timestamp, e.g. "cv37rs3pp9olc6atsptg".
//
//  2. POINTER ARGUMENT:
//     After Create() the caller's snippet carries the generated ID and
//     CreatedAt, which is how the server echoes the stored row back.
//
//  3. PARAMETERIZED QUERIES (the ? placeholders):
//     NEVER build SQL with fmt.Sprintf or string concatenation. The driver
//     binds the values, so user input can never change the statement.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO snippets (`+snippetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.UserID,
		snippet.Title,
		snippet.CodeContent,
		snippet.Description,
		snippet.Language,
		snippet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// ListForUser returns every snippet owned by userID, newest first.
//
// Two inserts can share a created_at value at microsecond resolution, so
// rowid (insertion order) breaks the tie and the newest row still wins.
func (db *DB) ListForUser(ctx context.Context, userID string) ([]model.Snippet, error) {
	// Non-nil so an empty result serialises as [] rather than null.
	snippets := []model.Snippet{}

	err := db.db.SelectContext(ctx, &snippets,
		`SELECT `+snippetColumns+`
		 FROM snippets
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets for user %s: %w", userID, err)
	}

	return snippets, nil
}
