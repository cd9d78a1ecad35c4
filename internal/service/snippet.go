// Package service contains the business logic layer of the platform.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests pass
// hand-written fakes (see snippet_test.go) and no service imports SQL.
//
// ROW-LEVEL SECURITY:
// Every snippet operation takes the caller's user ID (from the verified JWT)
// as a separate argument from whatever the request body or query claims.
// A caller can only ever read or write rows whose user_id is their own.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

// Validation limits.
const (
	MaxTitleLength       = 200
	MaxCodeLength        = 100000 // ~100KB of code
	MaxDescriptionLength = 2000
)

// rlsViolation is the message returned when a caller tries to write a row
// owned by someone else.
const rlsViolation = `new row violates row-level security policy for table "snippets"`

// NewSnippet is the insert payload of POST /rest/v1/snippets.
//
// Title and CodeContent must be non-blank; UserID defaults to the caller and
// Language to model.DefaultLanguage.
type NewSnippet struct {
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"        validate:"notblank,max=200"`
	CodeContent string  `json:"code_content" validate:"notblank,max=100000"`
	Description *string `json:"description"  validate:"omitempty,max=2000"`
	Language    string  `json:"language"     validate:"language"`
}

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the caller's snippets, newest first.
//
// ownerFilter is the user_id the client asked for (may be empty). A filter
// naming another user matches no visible rows, so the result is an empty
// list rather than an error, exactly as if the rows did not exist.
func (s *SnippetService) List(ctx context.Context, callerID, ownerFilter string) ([]model.Snippet, error) {
	if callerID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	if ownerFilter != "" && ownerFilter != callerID {
		return []model.Snippet{}, nil
	}

	snippets, err := s.repo.ListForUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("service/snippet: listing for user %s: %w", callerID, err)
	}
	return snippets, nil
}

// Create validates and stores a new snippet owned by the caller.
//
// NORMALISATION (what gets stored):
//   - title: trimmed
//   - code_content: verbatim; leading indentation is meaningful
//   - description: trimmed, and NULL when nothing is left
//   - language: javascript when omitted
func (s *SnippetService) Create(ctx context.Context, callerID string, in NewSnippet) (*model.Snippet, error) {
	if callerID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	// === OWNERSHIP ===
	if in.UserID == "" {
		in.UserID = callerID
	}
	if in.UserID != callerID {
		s.logger.Warn("snippet insert for another user rejected",
			slog.String("callerID", callerID),
			slog.String("userID", in.UserID),
		)
		return nil, apperror.Forbidden(rlsViolation)
	}

	// === VALIDATION ===
	in.Title = strings.TrimSpace(in.Title)
	if in.Language == "" {
		in.Language = model.DefaultLanguage
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		UserID:      in.UserID,
		Title:       in.Title,
		CodeContent: in.CodeContent,
		Description: in.Description,
		Language:    in.Language,
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("userID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/snippet: creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("userID", snippet.UserID),
		slog.String("language", snippet.Language),
	)

	return snippet, nil
}
