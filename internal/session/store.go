// Package session owns the client's view of who is signed in. Store wraps
// the platform auth client: it answers "who is the current user", reports
// every change through a single subscription and runs the sign-in and
// sign-out operations. Every failure comes back as an apperror wrapping
// apperror.ErrAuth; nothing is retried.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/platform"
)

// ErrAlreadySubscribed is returned by Subscribe while another subscription
// is active.
var ErrAlreadySubscribed = errors.New("session: a subscription is already active")

// ProviderParams are the extra authorize parameters sent per provider.
// Google only issues a refresh token with access_type=offline, and only
// on a fresh consent.
var ProviderParams = map[string]url.Values{
	"google": {"access_type": {"offline"}, "prompt": {"consent"}},
}

// Store is the process-wide session holder. Create one per program and pass
// it to whatever needs it.
type Store struct {
	client   *platform.Client
	callback *CallbackServer
	logger   *slog.Logger

	mu         sync.Mutex
	subscribed bool
}

// Option configures a Store.
type Option func(*Store)

// WithCallbackServer sets the local listener federated sign-ins return to.
// Without one SignInWithOAuth fails.
func WithCallbackServer(cs *CallbackServer) Option {
	return func(s *Store) {
		s.callback = cs
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store on top of client.
func NewStore(client *platform.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser asks the platform who is signed in. It returns (nil, nil) when
// nobody is, including when the stored session is no longer accepted.
func (s *Store) CurrentUser(ctx context.Context) (*model.User, error) {
	sess, err := s.client.Auth.Session(ctx)
	if err != nil {
		return nil, authError(err)
	}
	if sess == nil {
		return nil, nil
	}

	user, err := s.client.Auth.User(ctx)
	if err != nil {
		if apiErr, ok := platform.AsAPIError(err); ok && apiErr.IsUnauthorized() {
			s.logger.Info("stored session rejected by the platform, signing out locally")
			if err := s.client.Auth.SignOut(ctx); err != nil {
				return nil, authError(err)
			}
			return nil, nil
		}
		return nil, authError(err)
	}
	return user, nil
}

// Subscribe registers onChange for every session change: the initial state
// right after registration, then sign-in, sign-out, token refresh and
// profile updates. onChange runs on a goroutine of its own and may see the
// same user several times in a row.
//
// Only one subscription may be active. The returned disposer is idempotent
// and may be called after the platform client has been closed.
func (s *Store) Subscribe(onChange func(*model.User)) (unsubscribe func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil, ErrAlreadySubscribed
	}
	s.subscribed = true

	stop := s.client.Auth.OnAuthStateChange(func(event platform.Event, sess *platform.Session) {
		var user *model.User
		if sess != nil {
			user = sess.User
		}
		s.logger.Debug("auth state changed", slog.String("event", string(event)), slog.Bool("signedIn", user != nil))
		onChange(user)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			s.mu.Lock()
			s.subscribed = false
			s.mu.Unlock()
		})
	}, nil
}

// SignOut ends the session. On success the subscription fires with nil.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.client.Auth.SignOut(ctx); err != nil {
		return authError(err)
	}
	return nil
}

// SignInWithPassword delegates to the platform password grant.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) error {
	if _, err := s.client.Auth.SignInWithPassword(ctx, email, password); err != nil {
		return authError(err)
	}
	return nil
}

// SignUp creates a password account and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password, displayName string) error {
	if _, err := s.client.Auth.SignUp(ctx, email, password, displayName); err != nil {
		return authError(err)
	}
	return nil
}

// SignInWithOAuth prepares a federated sign-in and returns the URL the user
// must open. The local callback listener is started so the platform can
// send the browser back to {origin}/auth/callback; the handshake itself
// happens between the browser, the platform and the provider.
func (s *Store) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	if s.callback == nil {
		return "", apperror.AuthFailed("Federated sign-in is not configured", nil)
	}

	settings, err := s.client.Auth.Settings(ctx)
	if err != nil {
		return "", authError(err)
	}
	if !slices.Contains(settings.External, provider) {
		return "", apperror.AuthFailed("Unsupported provider: provider is not enabled", nil)
	}

	if err := s.callback.Start(); err != nil {
		return "", apperror.AuthFailed("Could not start the sign-in callback listener", err)
	}

	authURL := s.client.Auth.AuthorizeURL(provider, s.callback.RedirectURL(), ProviderParams[provider])
	s.logger.Info("federated sign-in started", slog.String("provider", provider))
	return authURL, nil
}

// Close stops the callback listener. The platform client belongs to the
// caller and is left open.
func (s *Store) Close() error {
	if s.callback == nil {
		return nil
	}
	return s.callback.Close()
}

// authError converts a platform failure into an AuthError whose message is
// the platform's text.
func authError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrAuth) {
		return err
	}
	return apperror.AuthFailed(err.Error(), err)
}
