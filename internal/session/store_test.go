package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/platform"
	"github.com/sakif/snippet-vault/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// =========================================================================
// TEST HELPERS
// =========================================================================

// fakeGitHub accepts the code "good-code" only.
type fakeGitHub struct{}

func (fakeGitHub) Name() string { return "github" }

func (fakeGitHub) AuthURL(state string, _ url.Values) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (fakeGitHub) Exchange(_ context.Context, code string) (*auth.ProviderUser, error) {
	if code != "good-code" {
		return nil, errors.New("bad verification code")
	}
	return &auth.ProviderUser{ID: "gh-7", Email: "octo@example.com", Name: "Octo Cat"}, nil
}

func newPlatform(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			ExternalURL:     "http://platform.test",
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "platform.db")},
		Auth: config.AuthConfig{
			JWTSecret:       "session-test-secret-0123",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			BcryptCost:      bcrypt.MinCost,
			CookieSecret:    "session-cookie-secret-0123",
		},
	}
	srv, err := server.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv.Providers().Add(fakeGitHub{})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

// newStore returns a Store with a callback listener on a free port.
func newStore(t *testing.T, baseURL string, storage platform.Storage) (*Store, *platform.Client, *CallbackServer) {
	t.Helper()

	client := platform.New(baseURL, platform.WithAutoRefresh(false), platform.WithStorage(storage))
	cs := NewCallbackServer(client, 0, nil)
	store := NewStore(client, WithCallbackServer(cs))
	t.Cleanup(func() {
		_ = store.Close()
		_ = client.Close()
	})
	return store, client, cs
}

// watch subscribes and returns the channel users arrive on.
func watch(t *testing.T, s *Store) (<-chan *model.User, func()) {
	t.Helper()
	ch := make(chan *model.User, 16)
	unsub, err := s.Subscribe(func(u *model.User) { ch <- u })
	require.NoError(t, err)
	t.Cleanup(unsub)
	return ch, unsub
}

func next(t *testing.T, ch <-chan *model.User) *model.User {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a session change")
		return nil
	}
}

// =========================================================================
// CURRENT USER
// =========================================================================

func TestCurrentUser_NoSession(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())

	user, err := store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUser_SignedIn(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "ada@example.com", "hunter22", "Ada"))

	user, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name())
}

func TestCurrentUser_RejectedSessionSignsOutLocally(t *testing.T) {
	ts := newPlatform(t)
	storage := platform.NewMemoryStorage()
	require.NoError(t, storage.Save(&model.Session{
		AccessToken:  "not-a-jwt",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		RefreshToken: "stale",
		User:         &model.User{ID: "ghost"},
	}))
	store, _, _ := newStore(t, ts.URL, storage)

	user, err := store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)

	stored, err := storage.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestCurrentUser_PlatformDown(t *testing.T) {
	ts := newPlatform(t)
	storage := platform.NewMemoryStorage()
	store, _, _ := newStore(t, ts.URL, storage)
	require.NoError(t, store.SignUp(context.Background(), "down@example.com", "hunter22", ""))
	ts.Close()

	_, err := store.CurrentUser(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAuth)
}

// =========================================================================
// SUBSCRIPTION
// =========================================================================

func TestSubscribe_FiresOnSignInAndOut(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())
	ctx := context.Background()

	ch, _ := watch(t, store)
	assert.Nil(t, next(t, ch), "initial state is signed out")

	require.NoError(t, store.SignUp(ctx, "grace@example.com", "hunter22", ""))
	u := next(t, ch)
	require.NotNil(t, u)
	assert.Equal(t, "grace@example.com", u.Email)

	require.NoError(t, store.SignOut(ctx))
	assert.Nil(t, next(t, ch))
}

func TestSubscribe_OnlyOneActive(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())

	unsub, err := store.Subscribe(func(*model.User) {})
	require.NoError(t, err)

	_, err = store.Subscribe(func(*model.User) {})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	unsub()
	unsub()

	again, err := store.Subscribe(func(*model.User) {})
	require.NoError(t, err)
	again()
}

func TestSubscribe_DisposeAfterClientClose(t *testing.T) {
	ts := newPlatform(t)
	store, client, _ := newStore(t, ts.URL, platform.NewMemoryStorage())

	unsub, err := store.Subscribe(func(*model.User) {})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.NotPanics(t, unsub)
}

// =========================================================================
// SIGN-IN / SIGN-OUT
// =========================================================================

func TestSignInWithPassword_WrongPassword(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "linus@example.com", "hunter22", ""))
	require.NoError(t, store.SignOut(ctx))

	err := store.SignInWithPassword(ctx, "linus@example.com", "wrong-password")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAuth)
	assert.Equal(t, "Invalid login credentials", apperror.Message(err))
}

func TestSignOut_WhenSignedOut(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())
	assert.NoError(t, store.SignOut(context.Background()))
}

// =========================================================================
// FEDERATED SIGN-IN
// =========================================================================

func TestSignInWithOAuth_BuildsAuthorizeURL(t *testing.T) {
	ts := newPlatform(t)
	store, _, cs := newStore(t, ts.URL, platform.NewMemoryStorage())

	raw, err := store.SignInWithOAuth(context.Background(), "github")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	assert.Equal(t, "github", u.Query().Get("provider"))
	assert.Equal(t, cs.RedirectURL(), u.Query().Get("redirect_to"))
	assert.True(t, strings.HasSuffix(cs.RedirectURL(), CallbackPath))
	assert.NotContains(t, cs.RedirectURL(), ":0/")
}

func TestSignInWithOAuth_UnsupportedProvider(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())

	_, err := store.SignInWithOAuth(context.Background(), "google")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAuth)
	assert.Equal(t, "Unsupported provider: provider is not enabled", apperror.Message(err))
}

func TestSignInWithOAuth_WithoutCallbackServer(t *testing.T) {
	ts := newPlatform(t)
	client := platform.New(ts.URL, platform.WithAutoRefresh(false))
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewStore(client).SignInWithOAuth(context.Background(), "github")
	assert.ErrorIs(t, err, apperror.ErrAuth)
}

// browser follows redirects like a real one, except to the provider, whose
// consent page only exists in the test's imagination.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			if req.URL.Host == "provider.example" {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

func TestSignInWithOAuth_FullRoundTrip(t *testing.T) {
	ts := newPlatform(t)
	store, _, _ := newStore(t, ts.URL, platform.NewMemoryStorage())
	ch, _ := watch(t, store)
	assert.Nil(t, next(t, ch))

	authURL, err := store.SignInWithOAuth(context.Background(), "github")
	require.NoError(t, err)

	b := browser(t)
	resp, err := b.Get(authURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	// The provider sends the browser back to the platform, which forwards
	// it to the local listener with a one-time code.
	resp, err = b.Get(ts.URL + "/auth/v1/callback?" + url.Values{
		"code":  {"good-code"},
		"state": {consent.Query().Get("state")},
	}.Encode())
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(page))
	assert.Contains(t, string(page), "Signed in")

	u := next(t, ch)
	require.NotNil(t, u)
	assert.Equal(t, "octo@example.com", u.Email)
	assert.Equal(t, "Octo Cat", u.Name())
}

func TestCallback_ProviderErrorIsReported(t *testing.T) {
	ts := newPlatform(t)
	store, _, cs := newStore(t, ts.URL, platform.NewMemoryStorage())

	errs := make(chan error, 1)
	cs.OnError(func(err error) { errs <- err })

	_, err := store.SignInWithOAuth(context.Background(), "github")
	require.NoError(t, err)

	resp, err := http.Get(cs.RedirectURL() + "?" + url.Values{
		"error":             {"access_denied"},
		"error_description": {"The user denied the request"},
	}.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, apperror.ErrAuth)
		assert.Equal(t, "The user denied the request", apperror.Message(err))
	case <-time.After(3 * time.Second):
		t.Fatal("error was not reported")
	}
}

func TestCallback_BadCode(t *testing.T) {
	ts := newPlatform(t)
	store, _, cs := newStore(t, ts.URL, platform.NewMemoryStorage())

	errs := make(chan error, 1)
	cs.OnError(func(err error) { errs <- err })
	_, err := store.SignInWithOAuth(context.Background(), "github")
	require.NoError(t, err)

	resp, err := http.Get(cs.RedirectURL() + "?code=forged")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	err = <-errs
	assert.Equal(t, "Invalid or expired authorization code", apperror.Message(err))
}

func TestCallbackServer_StartIsIdempotent(t *testing.T) {
	ts := newPlatform(t)
	_, _, cs := newStore(t, ts.URL, platform.NewMemoryStorage())

	require.NoError(t, cs.Start())
	first := cs.RedirectURL()
	require.NoError(t, cs.Start())
	assert.Equal(t, first, cs.RedirectURL())

	require.NoError(t, cs.Close())
	require.NoError(t, cs.Close())
}
