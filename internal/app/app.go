// Package app holds the client application's state: the auth gate, the
// snippet list and the two forms. It has no I/O of its own. Every action
// returns a Cmd; whoever hosts the Shell (the terminal UI, a test) runs the
// Cmd wherever it likes and feeds the resulting Msg back into Update on the
// one goroutine that owns the Shell.
package app

import (
	"context"

	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/snippet"
)

// Msg is the result of a Cmd, or an event from outside such as a session
// change.
type Msg any

// Cmd is a unit of asynchronous work. It must not touch the Shell.
type Cmd func(ctx context.Context) Msg

// SessionStore is the part of session.Store the Shell uses.
type SessionStore interface {
	CurrentUser(ctx context.Context) (*model.User, error)
	SignOut(ctx context.Context) error
	SignInWithPassword(ctx context.Context, email, password string) error
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
}

// SnippetRepository is the part of snippet.Repository the Shell uses.
type SnippetRepository interface {
	ListForUser(ctx context.Context, userID string) ([]model.Snippet, error)
	Insert(ctx context.Context, s snippet.NewSnippet) (*model.Snippet, error)
}

// SessionChangedMsg reports a change seen by the session subscription. User
// is nil when signed out.
type SessionChangedMsg struct {
	User *model.User
}

// OAuthFailedMsg reports a federated sign-in that failed after the browser
// left the application.
type OAuthFailedMsg struct {
	Err error
}

type sessionResolvedMsg struct {
	user *model.User
	err  error
}

// sessionCheckedMsg is the result of re-reading the session after a
// password sign-in.
type sessionCheckedMsg struct {
	user *model.User
	err  error
}

type snippetsLoadedMsg struct {
	userID   string
	seq      int
	snippets []model.Snippet
	err      error
}

type snippetInsertedMsg struct {
	form    *Form
	snippet *model.Snippet
	err     error
}

type loginResultMsg struct {
	form *LoginForm
	err  error
}

type signedOutMsg struct {
	err error
}

type oauthStartedMsg struct {
	provider string
	url      string
	err      error
}
