package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sakif/snippet-vault/internal/app"
	"github.com/sakif/snippet-vault/internal/model"
)

// Subscriber is the session subscription the program listens to.
type Subscriber interface {
	Subscribe(onChange func(*model.User)) (unsubscribe func(), err error)
}

// ErrorReporter delivers federated sign-in failures that happen outside the
// program, such as a provider denial seen by the callback listener.
type ErrorReporter interface {
	OnError(fn func(error))
}

// Run shows the UI until the user quits or ctx is cancelled. The session
// subscription lives exactly as long as the program.
func Run(ctx context.Context, shell *app.Shell, sessions Subscriber, errs ErrorReporter, opts ...Option) error {
	p := tea.NewProgram(New(ctx, shell, opts...), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe, err := sessions.Subscribe(func(u *model.User) {
		p.Send(app.SessionChangedMsg{User: u})
	})
	if err != nil {
		return fmt.Errorf("tui: subscribing to session changes: %w", err)
	}
	defer unsubscribe()

	if errs != nil {
		errs.OnError(func(err error) {
			p.Send(app.OAuthFailedMsg{Err: err})
		})
		defer errs.OnError(nil)
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
