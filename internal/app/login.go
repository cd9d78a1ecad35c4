package app

import (
	"context"
	"strings"

	"github.com/sakif/snippet-vault/internal/apperror"
)

// LoginForm is the email and password sign-in form. It reports failures the
// same way Form does.
type LoginForm struct {
	Email    string
	Password string

	store   SessionStore
	pending bool
	err     string
}

// NewLoginForm returns an empty login form.
func NewLoginForm(store SessionStore) *LoginForm {
	return &LoginForm{store: store}
}

// Pending reports whether a sign-in is in flight.
func (l *LoginForm) Pending() bool { return l.pending }

// Err is the message to show under the form, or "".
func (l *LoginForm) Err() string { return l.err }

// Validate checks that both fields are present.
func (l *LoginForm) Validate() error {
	if strings.TrimSpace(l.Email) == "" {
		return apperror.ValidationFailed("email", "Email is required")
	}
	if l.Password == "" {
		return apperror.ValidationFailed("password", "Password is required")
	}
	return nil
}

// Submit validates the form and returns the sign-in to run, or nil.
func (l *LoginForm) Submit() Cmd {
	if l.pending {
		return nil
	}
	if err := l.Validate(); err != nil {
		l.err = apperror.Message(err)
		return nil
	}

	l.pending = true
	l.err = ""

	store, email, password := l.store, strings.TrimSpace(l.Email), l.Password
	return func(ctx context.Context) Msg {
		return loginResultMsg{form: l, err: store.SignInWithPassword(ctx, email, password)}
	}
}

func (l *LoginForm) complete(err error) {
	l.pending = false
	if err != nil {
		l.err = apperror.Message(err)
		return
	}
	l.Password = ""
}
