package platform

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sakif/snippet-vault/internal/model"
)

// Session is the session the platform issues on sign-in.
type Session = model.Session

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = errors.New("platform: no session")

// Auth holds the client's session and talks to /auth/v1.
//
// SESSION LIFECYCLE:
//   - The stored session is loaded lazily on first use.
//   - Session refreshes it when it is about to expire.
//   - A rejected refresh token (revoked, reused) signs the user out locally.
//   - Every change is persisted through the Storage and pushed to
//     subscribers in the order it happened.
type Auth struct {
	c *Client

	ctx    context.Context // cancelled by close
	cancel context.CancelFunc
	wg     sync.WaitGroup // auto-refresh loop + subscriber goroutines

	mu      sync.Mutex
	loaded  bool
	session *model.Session
	subs    map[int]*subscriber
	nextID  int
	closed  bool

	// refreshMu serialises refreshes: refresh tokens are single-use, so two
	// concurrent refreshes of the same token would sign the user out.
	refreshMu sync.Mutex
}

func newAuth(c *Client) *Auth {
	ctx, cancel := context.WithCancel(context.Background())
	return &Auth{
		c:      c,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]*subscriber),
	}
}

// Session returns the current session, refreshing it first when it expires
// within the refresh margin. It returns (nil, nil) when signed out.
func (a *Auth) Session(ctx context.Context) (*model.Session, error) {
	sess := a.current()
	if sess == nil {
		return nil, nil
	}
	if !a.expiresSoon(sess) {
		return sess, nil
	}

	refreshed, err := a.refresh(ctx, sess)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		if apiErr, ok := AsAPIError(err); ok && apiErr.IsInvalidGrant() {
			return nil, nil // refresh already signed the user out
		}
		return nil, err
	}
	return refreshed, nil
}

// User fetches the signed-in user from the platform, which also proves the
// access token is still accepted.
func (a *Auth) User(ctx context.Context) (*model.User, error) {
	sess, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}

	var user model.User
	err = a.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: sess.AccessToken}, &user)
	if err != nil {
		return nil, err
	}
	a.updateUser(sess.AccessToken, &user)
	return &user, nil
}

// updateUser refreshes the profile cached in the session and emits
// EventUserUpdated when it changed.
func (a *Auth) updateUser(accessToken string, user *model.User) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil || a.session.AccessToken != accessToken {
		return
	}
	if old := a.session.User; old != nil && old.ID == user.ID && old.Email == user.Email &&
		old.DisplayName == user.DisplayName && old.AvatarURL == user.AvatarURL {
		return
	}

	next := cloneSession(a.session)
	u := *user
	next.User = &u
	a.session = next
	if err := a.c.storage.Save(next); err != nil {
		a.c.logger.Error("failed to persist session", slog.String("error", err.Error()))
	}
	a.notifyLocked(EventUserUpdated, next)
}

// SignUp creates a password account and signs it in.
func (a *Auth) SignUp(ctx context.Context, email, password, displayName string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password, "display_name": displayName}
	return a.signIn(ctx, "/auth/v1/signup", nil, body)
}

// SignInWithPassword signs in with email and password.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}
	return a.signIn(ctx, "/auth/v1/token", url.Values{"grant_type": {"password"}}, body)
}

// ExchangeCodeForSession finishes a federated sign-in: code is the one-time
// code the platform appended to the redirect target.
func (a *Auth) ExchangeCodeForSession(ctx context.Context, code string) (*model.Session, error) {
	body := map[string]string{"code": code}
	return a.signIn(ctx, "/auth/v1/token", url.Values{"grant_type": {"authorization_code"}}, body)
}

func (a *Auth) signIn(ctx context.Context, path string, query url.Values, body any) (*model.Session, error) {
	var sess model.Session
	if err := a.c.do(ctx, request{method: http.MethodPost, path: path, query: query, body: body}, &sess); err != nil {
		return nil, err
	}
	a.set(&sess, EventSignedIn)
	return cloneSession(&sess), nil
}

// AuthorizeURL returns the URL that starts a federated sign-in with
// provider. The browser ends up at redirectTo with ?code= or ?error=.
// params are forwarded to the provider (e.g. access_type, prompt).
func (a *Auth) AuthorizeURL(provider, redirectTo string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	return a.c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// Settings describes what the platform has enabled.
type Settings struct {
	External []string `json:"external"` // OAuth provider names
}

// Settings fetches the platform's auth settings.
func (a *Auth) Settings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := a.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/settings"}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Refresh rotates the refresh token now.
func (a *Auth) Refresh(ctx context.Context) (*model.Session, error) {
	sess := a.current()
	if sess == nil {
		return nil, ErrNoSession
	}
	return a.refresh(ctx, sess)
}

// refresh exchanges stale's refresh token. If another caller already
// rotated it, the newer session is returned instead.
func (a *Auth) refresh(ctx context.Context, stale *model.Session) (*model.Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	cur := a.current()
	if cur == nil {
		return nil, ErrNoSession
	}
	if cur.RefreshToken != stale.RefreshToken {
		return cur, nil
	}

	var next model.Session
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": cur.RefreshToken},
	}, &next)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.IsInvalidGrant() {
			a.c.logger.Warn("refresh token rejected, signing out", slog.String("message", apiErr.Message))
			a.clear()
		}
		return nil, err
	}

	a.set(&next, EventTokenRefreshed)
	return cloneSession(&next), nil
}

// SignOut ends the session on the platform and locally. A token the
// platform no longer accepts still counts as signed out.
func (a *Auth) SignOut(ctx context.Context) error {
	if sess := a.current(); sess != nil {
		err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: sess.AccessToken}, nil)
		if err != nil {
			apiErr, ok := AsAPIError(err)
			if !ok || !apiErr.IsUnauthorized() {
				return err
			}
		}
	}
	a.clear()
	return nil
}

// OnAuthStateChange registers fn for auth events. fn first receives
// EventInitialSession, then every later change, in order, on a goroutine
// owned by this subscription. The returned function unsubscribes; it is
// idempotent and safe to call from inside fn.
func (a *Auth) OnAuthStateChange(fn AuthChangeFunc) (unsubscribe func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return func() {}
	}
	a.nextID++
	id := a.nextID
	s := newSubscriber(fn)
	a.subs[id] = s
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		s.run(a.ctx, func(ctx context.Context) *model.Session {
			sess, err := a.Session(ctx)
			if err != nil {
				a.c.logger.Warn("initial session check failed", slog.String("error", err.Error()))
				return a.current()
			}
			return sess
		})
	}()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
		s.stop()
	}
}

// current returns a copy of the in-memory session, loading the stored one
// on first use.
func (a *Auth) current() *model.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked()
	return cloneSession(a.session)
}

func (a *Auth) loadLocked() {
	if a.loaded {
		return
	}
	a.loaded = true

	sess, err := a.c.storage.Load()
	if err != nil {
		a.c.logger.Warn("ignoring unreadable stored session", slog.String("error", err.Error()))
		return
	}
	a.session = sess
}

// set stores sess and notifies subscribers.
func (a *Auth) set(sess *model.Session, event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loaded = true
	a.session = cloneSession(sess)
	if err := a.c.storage.Save(sess); err != nil {
		a.c.logger.Error("failed to persist session", slog.String("error", err.Error()))
	}
	a.notifyLocked(event, a.session)
}

// clear drops the session and notifies subscribers with EventSignedOut.
func (a *Auth) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loaded = true
	a.session = nil
	if err := a.c.storage.Delete(); err != nil {
		a.c.logger.Error("failed to delete stored session", slog.String("error", err.Error()))
	}
	a.notifyLocked(EventSignedOut, nil)
}

// notifyLocked pushes under a.mu so all subscribers see the same order.
func (a *Auth) notifyLocked(event Event, sess *model.Session) {
	for _, s := range a.subs {
		s.push(authEvent{event: event, session: cloneSession(sess)})
	}
}

func (a *Auth) expiresSoon(sess *model.Session) bool {
	if sess.ExpiresAt == 0 {
		return false
	}
	return !a.c.now().Add(a.c.refreshMargin).Before(time.Unix(sess.ExpiresAt, 0))
}

// accessToken returns the bearer token for table requests, or "" when
// signed out.
func (a *Auth) accessToken(ctx context.Context) (string, error) {
	sess, err := a.Session(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (a *Auth) startAutoRefresh() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.c.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
			}

			sess := a.current()
			if sess == nil || !a.expiresSoon(sess) {
				continue
			}
			if _, err := a.refresh(a.ctx, sess); err != nil && a.ctx.Err() == nil {
				// Network trouble is retried on the next tick.
				a.c.logger.Warn("auto refresh failed", slog.String("error", err.Error()))
			}
		}
	}()
}

func (a *Auth) close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	subs := a.subs
	a.subs = make(map[int]*subscriber)
	a.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	a.cancel()
	a.wg.Wait()
}

func cloneSession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User != nil {
		u := *s.User
		cp.User = &u
	}
	return &cp
}
