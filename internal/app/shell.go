package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

// Phase is where the Shell is in the auth lifecycle.
type Phase int

const (
	// Bootstrapping lasts from startup until the first session check
	// resolves. Nothing is fetched meanwhile.
	Bootstrapping Phase = iota
	Unauthenticated
	Authenticated
)

func (p Phase) String() string {
	switch p {
	case Bootstrapping:
		return "bootstrapping"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Shell is the auth gate and the signed-in application around it. It owns
// the snippet list: only a load result and a successful insert change it.
//
// Shell is not safe for concurrent use; one goroutine calls Update and the
// action methods.
type Shell struct {
	store  SessionStore
	repo   SnippetRepository
	logger *slog.Logger

	phase Phase
	user  *model.User

	snippets []model.Snippet
	loading  bool
	loadSeq  int
	// added holds records inserted while a load is in flight; the load's
	// result does not know about them yet.
	added   []model.Snippet
	listErr string

	login    *LoginForm
	form     *Form
	authErr  string
	oauthURL string
}

// NewShell creates a Shell in the Bootstrapping phase. A nil logger
// discards output.
func NewShell(store SessionStore, repo SnippetRepository, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Shell{
		store:  store,
		repo:   repo,
		logger: logger,
		phase:  Bootstrapping,
		login:  NewLoginForm(store),
	}
}

func (s *Shell) Phase() Phase { return s.phase }

// User is the signed-in user, or nil.
func (s *Shell) User() *model.User { return s.user }

// Snippets is the current list, newest first.
func (s *Shell) Snippets() []model.Snippet { return s.snippets }

// List returns the list view for the current snippets.
func (s *Shell) List() ListView { return ListView{Snippets: s.snippets} }

// Loading reports whether a snippet load is in flight.
func (s *Shell) Loading() bool { return s.loading }

// ListErr is the message of the last failed load, or "".
func (s *Shell) ListErr() string { return s.listErr }

// AuthErr is the message of the last failed session operation, or "".
func (s *Shell) AuthErr() string { return s.authErr }

// OAuthURL is the URL of a federated sign-in waiting in the browser.
func (s *Shell) OAuthURL() string { return s.oauthURL }

// Login is the password form shown while signed out.
func (s *Shell) Login() *LoginForm { return s.login }

// Form is the open creation form, or nil.
func (s *Shell) Form() *Form { return s.form }

// Init starts the session check that ends Bootstrapping.
func (s *Shell) Init() Cmd {
	store := s.store
	return func(ctx context.Context) Msg {
		user, err := store.CurrentUser(ctx)
		return sessionResolvedMsg{user: user, err: err}
	}
}

// Update applies msg and returns follow-up work, if any. Messages the Shell
// does not know are ignored.
func (s *Shell) Update(msg Msg) Cmd {
	switch msg := msg.(type) {
	case sessionResolvedMsg:
		if s.phase != Bootstrapping {
			return nil
		}
		if msg.err != nil {
			s.logger.Error("session check failed", slog.String("error", msg.err.Error()))
			s.authErr = apperror.Message(msg.err)
		}
		s.phase = Unauthenticated
		return s.setUser(msg.user)

	case SessionChangedMsg:
		if s.phase == Bootstrapping {
			// The bootstrap check decides the first state.
			return nil
		}
		return s.setUser(msg.User)

	case sessionCheckedMsg:
		if s.phase == Bootstrapping {
			return nil
		}
		if msg.err != nil {
			s.logger.Error("session check failed", slog.String("error", msg.err.Error()))
			s.authErr = apperror.Message(msg.err)
			return nil
		}
		return s.setUser(msg.user)

	case snippetsLoadedMsg:
		s.applyLoad(msg)
		return nil

	case snippetInsertedMsg:
		if s.form == nil || msg.form != s.form {
			return nil
		}
		s.form.complete(msg)
		if s.form.Closed() {
			s.form = nil
		}
		return nil

	case loginResultMsg:
		if msg.form != s.login {
			return nil
		}
		s.login.complete(msg.err)
		if msg.err != nil {
			s.logger.Warn("password sign-in failed", slog.String("error", msg.err.Error()))
			return nil
		}
		return s.checkSession()

	case signedOutMsg:
		if msg.err != nil {
			s.logger.Error("sign-out failed", slog.String("error", msg.err.Error()))
			s.authErr = apperror.Message(msg.err)
			return nil
		}
		return s.setUser(nil)

	case oauthStartedMsg:
		if msg.err != nil {
			s.logger.Error("federated sign-in failed", slog.String("provider", msg.provider), slog.String("error", msg.err.Error()))
			s.authErr = apperror.Message(msg.err)
			return nil
		}
		if s.phase == Unauthenticated {
			s.oauthURL = msg.url
		}
		return nil

	case OAuthFailedMsg:
		s.logger.Warn("federated sign-in rejected", slog.String("error", msg.Err.Error()))
		s.oauthURL = ""
		s.authErr = apperror.Message(msg.Err)
		return nil
	}
	return nil
}

// setUser moves to the phase matching user. Seeing the user who is already
// signed in only refreshes the profile.
func (s *Shell) setUser(user *model.User) Cmd {
	if user == nil {
		if s.phase == Authenticated {
			s.logger.Info("signed out")
		}
		s.phase = Unauthenticated
		s.user = nil
		s.snippets = nil
		s.added = nil
		s.loading = false
		s.loadSeq++ // drop any load still in flight
		s.listErr = ""
		s.form = nil
		return nil
	}

	if s.phase == Authenticated && s.user != nil && s.user.ID == user.ID {
		s.user = user
		return nil
	}

	if s.phase == Authenticated {
		// A different account without a sign-out in between.
		s.setUser(nil)
	}

	s.logger.Info("signed in", slog.String("userID", user.ID))
	s.phase = Authenticated
	s.user = user
	s.authErr = ""
	s.oauthURL = ""
	s.login = NewLoginForm(s.store)
	return s.load()
}

func (s *Shell) checkSession() Cmd {
	store := s.store
	return func(ctx context.Context) Msg {
		user, err := store.CurrentUser(ctx)
		return sessionCheckedMsg{user: user, err: err}
	}
}

func (s *Shell) load() Cmd {
	s.loadSeq++
	s.loading = true
	s.added = nil

	repo, userID, seq := s.repo, s.user.ID, s.loadSeq
	return func(ctx context.Context) Msg {
		snippets, err := repo.ListForUser(ctx, userID)
		return snippetsLoadedMsg{userID: userID, seq: seq, snippets: snippets, err: err}
	}
}

func (s *Shell) applyLoad(msg snippetsLoadedMsg) {
	if s.phase != Authenticated || s.user == nil || msg.userID != s.user.ID || msg.seq != s.loadSeq {
		s.logger.Debug("dropping stale snippet load", slog.String("userID", msg.userID))
		return
	}
	s.loading = false

	if msg.err != nil {
		s.logger.Error("loading snippets failed", slog.String("error", msg.err.Error()))
		s.listErr = apperror.Message(msg.err)
		s.added = nil
		return
	}
	s.listErr = ""

	seen := make(map[string]bool, len(msg.snippets))
	for _, sn := range msg.snippets {
		seen[sn.ID] = true
	}
	list := make([]model.Snippet, 0, len(s.added)+len(msg.snippets))
	for _, sn := range s.added {
		if !seen[sn.ID] {
			list = append(list, sn)
		}
	}
	s.snippets = append(list, msg.snippets...)
	s.added = nil
}

// prepend puts a freshly inserted record at the head of the list.
func (s *Shell) prepend(sn model.Snippet) {
	s.snippets = append([]model.Snippet{sn}, s.snippets...)
	if s.loading {
		s.added = append([]model.Snippet{sn}, s.added...)
	}
}

// Reload fetches the list again. It does nothing while signed out or while
// a load is already running.
func (s *Shell) Reload() Cmd {
	if s.phase != Authenticated || s.loading {
		return nil
	}
	return s.load()
}

// OpenForm opens an empty creation form unless one is already open.
func (s *Shell) OpenForm() *Form {
	if s.phase != Authenticated {
		return nil
	}
	if s.form == nil {
		s.form = NewForm(s.repo, s.prepend)
	}
	return s.form
}

// CloseForm discards the creation form. A form with an insert in flight
// stays open.
func (s *Shell) CloseForm() {
	if s.form != nil && !s.form.Pending() {
		s.form = nil
	}
}

// SubmitForm submits the open creation form.
func (s *Shell) SubmitForm() Cmd {
	if s.form == nil || s.user == nil {
		return nil
	}
	return s.form.Submit(s.user.ID)
}

// SubmitLogin submits the password form.
func (s *Shell) SubmitLogin() Cmd {
	if s.phase != Unauthenticated {
		return nil
	}
	s.authErr = ""
	return s.login.Submit()
}

// SignInWith starts a federated sign-in with provider. The resulting URL is
// exposed through OAuthURL; the session change arrives later through the
// subscription.
func (s *Shell) SignInWith(provider string) Cmd {
	if s.phase != Unauthenticated {
		return nil
	}
	s.authErr = ""
	store := s.store
	return func(ctx context.Context) Msg {
		u, err := store.SignInWithOAuth(ctx, provider)
		return oauthStartedMsg{provider: provider, url: u, err: err}
	}
}

// SignOut ends the session.
func (s *Shell) SignOut() Cmd {
	if s.phase != Authenticated {
		return nil
	}
	store := s.store
	return func(ctx context.Context) Msg {
		return signedOutMsg{err: store.SignOut(ctx)}
	}
}
