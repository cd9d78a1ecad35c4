package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Table-driven: each case checks that errors.Is() finds the right sentinel.
func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("snippet", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "Title is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "a@b.c"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid token"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "AuthFailed wraps ErrAuth",
			err:       AuthFailed("Invalid login credentials", nil),
			target:    ErrAuth,
			wantMatch: true,
		},
		{
			name:      "AuthFailed exposes its cause",
			err:       AuthFailed("network failure", cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "RepoFailed wraps ErrRepository through fmt wrapping",
			err:       fmt.Errorf("snippet: insert: %w", RepoFailed("permission denied", cause)),
			target:    ErrRepository,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("snippet", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "RepoFailed does NOT match ErrAuth",
			err:       RepoFailed("boom", nil),
			target:    ErrAuth,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("snippet", "abc123"),
			wantMessage: "snippet not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("code_content", "Code content is required"),
			wantMessage: "Code content is required",
		},
		{
			name:        "RepoFailed keeps the backend message verbatim",
			err:         RepoFailed(`new row violates row-level security policy for table "snippets"`, nil),
			wantMessage: `new row violates row-level security policy for table "snippets"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}

	wrapped := fmt.Errorf("session: sign in: %w", AuthFailed("Invalid login credentials", nil))
	if got := Message(wrapped); got != "Invalid login credentials" {
		t.Errorf("Message(wrapped) = %q, want the AppError message", got)
	}

	plain := errors.New("plain failure")
	if got := Message(plain); got != "plain failure" {
		t.Errorf("Message(plain) = %q, want %q", got, "plain failure")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
