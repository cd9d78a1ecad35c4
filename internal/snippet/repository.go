// Package snippet is the client's access to the snippets collection on the
// platform. The platform scopes every request to the signed-in user, so the
// repository never sees anyone else's rows.
package snippet

import (
	"context"
	"io"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/platform"
)

// Table is the platform collection snippets live in.
const Table = "snippets"

// NewSnippet is a record to insert. ID and CreatedAt are assigned by the
// platform.
type NewSnippet struct {
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	CodeContent string  `json:"code_content"`
	Description *string `json:"description"`
	Language    string  `json:"language"`
}

// Repository lists and creates snippets. It keeps no state between calls.
type Repository struct {
	client *platform.Client
	logger *slog.Logger
}

// NewRepository creates a Repository. A nil logger discards output.
func NewRepository(client *platform.Client, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{client: client, logger: logger}
}

// ListForUser returns userID's snippets, newest first. A userID other than
// the signed-in user's yields an empty list.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]model.Snippet, error) {
	var rows []model.Snippet
	err := r.client.From(Table).
		Select("*").
		Eq("user_id", userID).
		Order("created_at", platform.Desc).
		Find(ctx, &rows)
	if err != nil {
		r.logger.Warn("listing snippets failed", slog.String("userID", userID), slog.String("error", err.Error()))
		return nil, apperror.RepoFailed(err.Error(), err)
	}
	if rows == nil {
		rows = []model.Snippet{}
	}
	return rows, nil
}

// Insert creates exactly one snippet and returns it as stored. Inserting
// the same content twice creates two records.
func (r *Repository) Insert(ctx context.Context, s NewSnippet) (*model.Snippet, error) {
	var rows []model.Snippet
	if err := r.client.From(Table).Insert(ctx, []NewSnippet{s}, &rows); err != nil {
		r.logger.Warn("inserting snippet failed", slog.String("error", err.Error()))
		return nil, apperror.RepoFailed(err.Error(), err)
	}
	if len(rows) == 0 {
		return nil, apperror.RepoFailed("The platform returned no inserted row", nil)
	}

	r.logger.Info("snippet created", slog.String("id", rows[0].ID), slog.String("language", rows[0].Language))
	return &rows[0], nil
}
