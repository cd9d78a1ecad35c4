package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/snippet"
)

// =========================================================================
// FAKES
// =========================================================================

type fakeStore struct {
	user       *model.User
	userErr    error
	signInErr  error
	signOutErr error
	oauthURL   string
	oauthErr   error

	currentUserCalls int
	signIns          []string
	oauthProviders   []string
}

func (f *fakeStore) CurrentUser(context.Context) (*model.User, error) {
	f.currentUserCalls++
	return f.user, f.userErr
}

func (f *fakeStore) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.user = nil
	return nil
}

func (f *fakeStore) SignInWithPassword(_ context.Context, email, _ string) error {
	f.signIns = append(f.signIns, email)
	if f.signInErr != nil {
		return f.signInErr
	}
	f.user = &model.User{ID: "id-" + email, Email: email}
	return nil
}

func (f *fakeStore) SignInWithOAuth(_ context.Context, provider string) (string, error) {
	f.oauthProviders = append(f.oauthProviders, provider)
	return f.oauthURL, f.oauthErr
}

type fakeRepo struct {
	rows      map[string][]model.Snippet
	listErr   error
	insertErr error

	listCalls []string
	inserts   []snippet.NewSnippet
	nextID    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string][]model.Snippet{}}
}

func (f *fakeRepo) ListForUser(_ context.Context, userID string) ([]model.Snippet, error) {
	f.listCalls = append(f.listCalls, userID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Snippet(nil), f.rows[userID]...), nil
}

func (f *fakeRepo) Insert(_ context.Context, in snippet.NewSnippet) (*model.Snippet, error) {
	f.inserts = append(f.inserts, in)
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextID++
	sn := model.Snippet{
		ID:          fmt.Sprintf("s%d", f.nextID),
		UserID:      in.UserID,
		Title:       in.Title,
		CodeContent: in.CodeContent,
		Description: in.Description,
		Language:    in.Language,
		CreatedAt:   time.Now(),
	}
	f.rows[in.UserID] = append([]model.Snippet{sn}, f.rows[in.UserID]...)
	return &sn, nil
}

// exec runs cmd and returns its message.
func exec(t *testing.T, cmd Cmd) Msg {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")
	return cmd(context.Background())
}

// settle runs cmd and every follow-up until none is left.
func settle(t *testing.T, s *Shell, cmd Cmd) {
	t.Helper()
	for cmd != nil {
		cmd = s.Update(cmd(context.Background()))
	}
}

var (
	ada   = &model.User{ID: "u-ada", Email: "ada@example.com"}
	grace = &model.User{ID: "u-grace", Email: "grace@example.com"}
)

func snip(id, owner string) model.Snippet {
	return model.Snippet{ID: id, UserID: owner, Title: id, CodeContent: "code " + id, Language: "go"}
}

func signedInShell(t *testing.T, rows ...model.Snippet) (*Shell, *fakeStore, *fakeRepo) {
	t.Helper()
	store := &fakeStore{user: ada}
	repo := newFakeRepo()
	repo.rows[ada.ID] = rows
	s := NewShell(store, repo, nil)
	settle(t, s, s.Init())
	require.Equal(t, Authenticated, s.Phase())
	return s, store, repo
}

// =========================================================================
// BOOTSTRAP
// =========================================================================

func TestBootstrap_SignedIn(t *testing.T) {
	store := &fakeStore{user: ada}
	repo := newFakeRepo()
	s := NewShell(store, repo, nil)

	assert.Equal(t, Bootstrapping, s.Phase())
	assert.Nil(t, s.Reload(), "nothing is fetched while bootstrapping")
	assert.Nil(t, s.Update(SessionChangedMsg{User: ada}))
	assert.Equal(t, Bootstrapping, s.Phase())

	load := s.Update(exec(t, s.Init()))
	assert.Equal(t, Authenticated, s.Phase())
	assert.Equal(t, ada, s.User())
	assert.Empty(t, repo.listCalls, "the fetch is issued after the transition")
	assert.True(t, s.Loading())

	s.Update(exec(t, load))
	assert.Equal(t, []string{ada.ID}, repo.listCalls)
	assert.False(t, s.Loading())
	assert.Equal(t, 1, store.currentUserCalls)

	// Bootstrapping is left exactly once.
	assert.Nil(t, s.Update(sessionResolvedMsg{user: grace}))
	assert.Equal(t, ada, s.User())
}

func TestBootstrap_Anonymous(t *testing.T) {
	repo := newFakeRepo()
	s := NewShell(&fakeStore{}, repo, nil)

	next := s.Update(exec(t, s.Init()))
	assert.Nil(t, next)
	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Nil(t, s.User())
	assert.Empty(t, repo.listCalls)
	assert.Nil(t, s.Reload())
}

func TestBootstrap_FailureEndsSignedOut(t *testing.T) {
	store := &fakeStore{userErr: apperror.AuthFailed("connection refused", nil)}
	s := NewShell(store, newFakeRepo(), nil)

	settle(t, s, s.Init())
	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Equal(t, "connection refused", s.AuthErr())
}

// =========================================================================
// SESSION CHANGES
// =========================================================================

func TestSignOut_DiscardsList(t *testing.T) {
	s, _, _ := signedInShell(t, snip("b", ada.ID), snip("a", ada.ID))
	require.Len(t, s.Snippets(), 2)
	s.OpenForm()

	settle(t, s, s.SignOut())

	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Nil(t, s.User())
	assert.Empty(t, s.Snippets())
	assert.Nil(t, s.Form())
	assert.True(t, s.List().Empty())
}

func TestSignOut_FailureKeepsSession(t *testing.T) {
	s, store, _ := signedInShell(t, snip("a", ada.ID))
	store.signOutErr = apperror.AuthFailed("network is down", nil)

	settle(t, s, s.SignOut())

	assert.Equal(t, Authenticated, s.Phase())
	assert.Len(t, s.Snippets(), 1)
	assert.Equal(t, "network is down", s.AuthErr())
}

func TestSameUserTwice_ChangesNothing(t *testing.T) {
	s, _, repo := signedInShell(t, snip("a", ada.ID))
	before := s.Snippets()

	refreshed := *ada
	refreshed.DisplayName = "Ada L."
	assert.Nil(t, s.Update(SessionChangedMsg{User: &refreshed}))
	assert.Nil(t, s.Update(SessionChangedMsg{User: &refreshed}))

	assert.Equal(t, before, s.Snippets())
	assert.Len(t, repo.listCalls, 1)
	assert.Equal(t, "Ada L.", s.User().Name())
}

func TestSignedOutTwice_IsHarmless(t *testing.T) {
	s, _, _ := signedInShell(t)
	assert.Nil(t, s.Update(SessionChangedMsg{}))
	assert.Nil(t, s.Update(SessionChangedMsg{}))
	assert.Equal(t, Unauthenticated, s.Phase())
}

func TestAccountSwitch_LoadsNewUser(t *testing.T) {
	s, _, repo := signedInShell(t, snip("a", ada.ID))
	repo.rows[grace.ID] = []model.Snippet{snip("g", grace.ID)}

	settle(t, s, s.Update(SessionChangedMsg{User: grace}))

	assert.Equal(t, grace, s.User())
	require.Len(t, s.Snippets(), 1)
	assert.Equal(t, "g", s.Snippets()[0].ID)
}

func TestStaleLoadIsDropped(t *testing.T) {
	store := &fakeStore{user: ada}
	repo := newFakeRepo()
	repo.rows[ada.ID] = []model.Snippet{snip("a", ada.ID)}
	repo.rows[grace.ID] = []model.Snippet{snip("g", grace.ID)}
	s := NewShell(store, repo, nil)

	adaLoad := s.Update(exec(t, s.Init()))

	// Ada signs out and Grace signs in before Ada's list arrives.
	s.Update(SessionChangedMsg{})
	graceLoad := s.Update(SessionChangedMsg{User: grace})

	s.Update(exec(t, adaLoad))
	assert.Empty(t, s.Snippets())
	assert.True(t, s.Loading())

	s.Update(exec(t, graceLoad))
	require.Len(t, s.Snippets(), 1)
	assert.Equal(t, grace.ID, s.Snippets()[0].UserID)
}

func TestLoadAfterSignOutIsDropped(t *testing.T) {
	store := &fakeStore{user: ada}
	repo := newFakeRepo()
	repo.rows[ada.ID] = []model.Snippet{snip("a", ada.ID)}
	s := NewShell(store, repo, nil)

	load := s.Update(exec(t, s.Init()))
	s.Update(SessionChangedMsg{})
	s.Update(exec(t, load))

	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Empty(t, s.Snippets())
}

// =========================================================================
// LIST
// =========================================================================

func TestLoadFailure_IsVisibleAndKeepsList(t *testing.T) {
	s, _, repo := signedInShell(t, snip("b", ada.ID), snip("a", ada.ID))
	repo.listErr = apperror.RepoFailed("permission denied for table snippets", nil)

	settle(t, s, s.Reload())

	assert.Equal(t, "permission denied for table snippets", s.ListErr())
	assert.Len(t, s.Snippets(), 2)
	assert.False(t, s.Loading())

	repo.listErr = nil
	settle(t, s, s.Reload())
	assert.Empty(t, s.ListErr())
	assert.Len(t, repo.listCalls, 3)
}

func TestReload_IgnoredWhileLoading(t *testing.T) {
	s, _, _ := signedInShell(t)
	first := s.Reload()
	require.NotNil(t, first)
	assert.Nil(t, s.Reload())
}

// =========================================================================
// CREATION FORM
// =========================================================================

func TestSubmitForm_ValidationBlocksInsert(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		code    string
		wantErr string
	}{
		{name: "empty title", title: "", code: "non-empty", wantErr: "Title is required"},
		{name: "blank title", title: "   \t", code: "non-empty", wantErr: "Title is required"},
		{name: "empty code", title: "non-empty", code: "", wantErr: "Code content is required"},
		{name: "blank code", title: "non-empty", code: "\n\n  ", wantErr: "Code content is required"},
		{name: "both empty reports title first", title: "", code: "", wantErr: "Title is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, repo := signedInShell(t)
			f := s.OpenForm()
			f.Title, f.Code = tt.title, tt.code

			assert.Nil(t, s.SubmitForm())
			assert.Equal(t, tt.wantErr, f.Err())
			assert.False(t, f.Pending())
			assert.Empty(t, repo.inserts)
			assert.Same(t, f, s.Form())
		})
	}
}

func TestSubmitForm_SuccessPrependsWithoutReload(t *testing.T) {
	s, _, repo := signedInShell(t, snip("B", ada.ID), snip("A", ada.ID))
	f := s.OpenForm()
	f.Title = "  C  "
	f.Code = "  fmt.Println(\"c\")\n"
	f.Description = "   "

	cmd := s.SubmitForm()
	require.NotNil(t, cmd)
	assert.True(t, f.Pending())

	settle(t, s, cmd)

	require.Len(t, repo.inserts, 1)
	in := repo.inserts[0]
	assert.Equal(t, ada.ID, in.UserID)
	assert.Equal(t, "C", in.Title)
	assert.Equal(t, "  fmt.Println(\"c\")\n", in.CodeContent, "code is stored verbatim")
	assert.Nil(t, in.Description, "blank description becomes null")
	assert.Equal(t, model.DefaultLanguage, in.Language)

	ids := make([]string, 0, 3)
	for _, sn := range s.Snippets() {
		ids = append(ids, sn.ID)
	}
	assert.Equal(t, []string{"s1", "B", "A"}, ids)
	assert.Len(t, repo.listCalls, 1, "no refetch after insert")
	assert.Nil(t, s.Form(), "form closes on success")
	assert.False(t, f.Pending())
}

func TestSubmitForm_FailureKeepsFields(t *testing.T) {
	s, _, repo := signedInShell(t, snip("A", ada.ID))
	repo.insertErr = apperror.RepoFailed(`new row violates row-level security policy for table "snippets"`, nil)

	f := s.OpenForm()
	f.Title, f.Description, f.Code, f.Language = "title", "desc", "code", "rust"

	settle(t, s, s.SubmitForm())

	assert.Same(t, f, s.Form(), "form stays open")
	assert.Equal(t, `new row violates row-level security policy for table "snippets"`, f.Err())
	assert.False(t, f.Pending())
	assert.Equal(t, "title", f.Title)
	assert.Equal(t, "desc", f.Description)
	assert.Equal(t, "code", f.Code)
	assert.Equal(t, "rust", f.Language)
	assert.Len(t, s.Snippets(), 1)

	// The user retries without retyping.
	repo.insertErr = nil
	settle(t, s, s.SubmitForm())
	assert.Nil(t, s.Form())
	assert.Len(t, s.Snippets(), 2)
	assert.Len(t, repo.inserts, 2)
}

func TestSubmitForm_NoDoubleSubmit(t *testing.T) {
	s, _, _ := signedInShell(t)
	f := s.OpenForm()
	f.Title, f.Code = "t", "c"

	require.NotNil(t, s.SubmitForm())
	assert.Nil(t, s.SubmitForm())

	s.CloseForm()
	assert.Same(t, f, s.Form(), "a pending form cannot be closed")
}

func TestInsertDuringLoad_SurvivesLoadResult(t *testing.T) {
	s, _, repo := signedInShell(t, snip("A", ada.ID))
	staleRows := append([]model.Snippet(nil), repo.rows[ada.ID]...)

	load := s.Reload()
	require.NotNil(t, load)

	f := s.OpenForm()
	f.Title, f.Code = "new", "code"
	settle(t, s, s.SubmitForm())
	require.Len(t, s.Snippets(), 2)

	// The load was answered before the insert reached the platform.
	msg := exec(t, load).(snippetsLoadedMsg)
	msg.snippets = staleRows
	s.Update(msg)

	ids := []string{}
	for _, sn := range s.Snippets() {
		ids = append(ids, sn.ID)
	}
	assert.Equal(t, []string{"s1", "A"}, ids)
}

func TestInsertResultAfterSignOutIsDropped(t *testing.T) {
	s, _, _ := signedInShell(t)
	f := s.OpenForm()
	f.Title, f.Code = "t", "c"
	insert := s.SubmitForm()

	s.Update(SessionChangedMsg{})
	s.Update(exec(t, insert))

	assert.Empty(t, s.Snippets())
	assert.Nil(t, s.Form())
}

func TestOpenForm_OnlyWhenSignedIn(t *testing.T) {
	s := NewShell(&fakeStore{}, newFakeRepo(), nil)
	settle(t, s, s.Init())
	assert.Nil(t, s.OpenForm())
	assert.Nil(t, s.SubmitForm())
}

// =========================================================================
// AUTH GATE
// =========================================================================

func TestSubmitLogin_Validation(t *testing.T) {
	tests := []struct {
		name, email, password, wantErr string
	}{
		{"no email", "", "secret", "Email is required"},
		{"blank email", "   ", "secret", "Email is required"},
		{"no password", "ada@example.com", "", "Password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			s := NewShell(store, newFakeRepo(), nil)
			settle(t, s, s.Init())

			s.Login().Email, s.Login().Password = tt.email, tt.password
			assert.Nil(t, s.SubmitLogin())
			assert.Equal(t, tt.wantErr, s.Login().Err())
			assert.Empty(t, store.signIns)
		})
	}
}

func TestSubmitLogin_FailureIsShown(t *testing.T) {
	store := &fakeStore{signInErr: apperror.AuthFailed("Invalid login credentials", nil)}
	s := NewShell(store, newFakeRepo(), nil)
	settle(t, s, s.Init())

	s.Login().Email, s.Login().Password = "ada@example.com", "wrong"
	settle(t, s, s.SubmitLogin())

	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Equal(t, "Invalid login credentials", s.Login().Err())
	assert.False(t, s.Login().Pending())
	assert.Equal(t, "ada@example.com", s.Login().Email)
}

func TestSubmitLogin_SuccessSignsIn(t *testing.T) {
	store := &fakeStore{}
	repo := newFakeRepo()
	s := NewShell(store, repo, nil)
	settle(t, s, s.Init())

	s.Login().Email, s.Login().Password = " ada@example.com ", "hunter22"
	settle(t, s, s.SubmitLogin())

	assert.Equal(t, []string{"ada@example.com"}, store.signIns)
	assert.Equal(t, Authenticated, s.Phase())
	assert.Equal(t, "ada@example.com", s.User().Email)
	assert.Len(t, repo.listCalls, 1)
	assert.Empty(t, s.Login().Password)
}

func TestSubmitLogin_SessionCheckFailure(t *testing.T) {
	store := &fakeStore{}
	var logs bytes.Buffer
	s := NewShell(store, newFakeRepo(), slog.New(slog.NewTextHandler(&logs, nil)))
	settle(t, s, s.Init())

	store.userErr = apperror.AuthFailed("Platform unavailable", nil)
	s.Login().Email, s.Login().Password = "ada@example.com", "hunter22"
	settle(t, s, s.SubmitLogin())

	assert.Equal(t, Unauthenticated, s.Phase())
	assert.Nil(t, s.User())
	assert.Equal(t, "Platform unavailable", s.AuthErr())
	assert.Contains(t, logs.String(), "session check failed")
	assert.NotContains(t, logs.String(), "sign-out failed")
}

func TestSignInWith_ShowsURL(t *testing.T) {
	store := &fakeStore{oauthURL: "http://platform.test/auth/v1/authorize?provider=github"}
	s := NewShell(store, newFakeRepo(), nil)
	settle(t, s, s.Init())

	settle(t, s, s.SignInWith("github"))

	assert.Equal(t, []string{"github"}, store.oauthProviders)
	assert.Equal(t, store.oauthURL, s.OAuthURL())
	assert.Empty(t, s.AuthErr())

	// The browser comes back and the subscription reports the user.
	settle(t, s, s.Update(SessionChangedMsg{User: ada}))
	assert.Equal(t, Authenticated, s.Phase())
	assert.Empty(t, s.OAuthURL())
}

func TestSignInWith_ErrorIsShownNotRetried(t *testing.T) {
	store := &fakeStore{oauthErr: apperror.AuthFailed("Unsupported provider: provider is not enabled", nil)}
	s := NewShell(store, newFakeRepo(), nil)
	settle(t, s, s.Init())

	settle(t, s, s.SignInWith("google"))

	assert.Equal(t, "Unsupported provider: provider is not enabled", s.AuthErr())
	assert.Len(t, store.oauthProviders, 1)
	assert.Empty(t, s.OAuthURL())
}

func TestOAuthFailedMsg(t *testing.T) {
	s := NewShell(&fakeStore{oauthURL: "http://x"}, newFakeRepo(), nil)
	settle(t, s, s.Init())
	settle(t, s, s.SignInWith("github"))

	s.Update(OAuthFailedMsg{Err: apperror.AuthFailed("The user denied the request", errors.New("access_denied"))})

	assert.Equal(t, "The user denied the request", s.AuthErr())
	assert.Empty(t, s.OAuthURL())
	assert.Equal(t, Unauthenticated, s.Phase())
}

func TestActionsOutsideTheirPhase(t *testing.T) {
	s, _, _ := signedInShell(t)
	assert.Nil(t, s.SubmitLogin())
	assert.Nil(t, s.SignInWith("github"))

	anon := NewShell(&fakeStore{}, newFakeRepo(), nil)
	settle(t, anon, anon.Init())
	assert.Nil(t, anon.SignOut())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "bootstrapping", Bootstrapping.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
