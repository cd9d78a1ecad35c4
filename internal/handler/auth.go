package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/service"
)

// OAuthCookieName is the signed cookie that carries the OAuth state between
// /auth/v1/authorize and /auth/v1/callback.
const OAuthCookieName = "sv_oauth"

// AuthHandler serves the /auth/v1 endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignUp     → create a password account
//   - HandleToken      → password, refresh_token and authorization_code grants
//   - HandleAuthorize  → redirect the browser to the provider's consent page
//   - HandleCallback   → receive the provider code, hand the client a one-time code
//   - HandleLogout     → revoke the caller's refresh tokens
//   - HandleUser       → return the caller's profile
type AuthHandler struct {
	svc       *service.AuthService
	providers auth.Providers
	cookies   sessions.Store
	redirects []string // allowed redirect_to prefixes besides loopback
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookies signs the OAuth state
// cookie; allowedRedirects lists non-loopback redirect_to prefixes.
func NewAuthHandler(
	svc *service.AuthService,
	providers auth.Providers,
	cookies sessions.Store,
	allowedRedirects []string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:       svc,
		providers: providers,
		cookies:   cookies,
		redirects: allowedRedirects,
		logger:    logger,
	}
}

// HandleSignUp creates a password account and returns its first session.
//
// HTTP: POST /auth/v1/signup
// REQUEST BODY: {"email": "...", "password": "...", "display_name": "..."}
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.svc.SignUp(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// tokenRequest is the union of the grant bodies accepted by HandleToken.
type tokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	Code         string `json:"code"`
}

// HandleToken issues sessions.
//
// HTTP: POST /auth/v1/token?grant_type=password|refresh_token|authorization_code
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	grant := r.URL.Query().Get("grant_type")

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var err error
	var result any
	switch grant {
	case "password":
		result, err = h.svc.SignInWithPassword(r.Context(), req.Email, req.Password)
	case "refresh_token":
		result, err = h.svc.Refresh(r.Context(), req.RefreshToken)
	case "authorization_code":
		result, err = h.svc.ExchangeCode(r.Context(), req.Code)
	default:
		writeBadRequest(w, "unsupported_grant_type", "Unsupported grant type: "+grant)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAuthorize starts a federated sign-in.
//
// HTTP: GET /auth/v1/authorize?provider=google&redirect_to=http://localhost:54321/auth/callback
//
// Extra query parameters listed in auth.AllowedAuthParams (access_type,
// prompt, login_hint) are forwarded to the provider.
//
// CSRF PROTECTION VIA STATE:
// We generate a random state and keep it, with the provider and redirect
// target, in a signed cookie (gorilla/sessions). The callback only proceeds
// when the provider echoes the same state back.
func (h *AuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	provider, ok := h.providers.Get(q.Get("provider"))
	if !ok {
		writeBadRequest(w, "validation_error", "Unsupported provider: provider is not enabled")
		return
	}

	redirectTo := q.Get("redirect_to")
	if !h.redirectAllowed(redirectTo) {
		h.logger.Warn("authorize: redirect_to rejected", slog.String("redirectTo", redirectTo))
		writeBadRequest(w, "validation_error", "redirect_to is not an allowed redirect URL")
		return
	}

	state, err := auth.NewOpaqueToken()
	if err != nil {
		writeError(w, err)
		return
	}

	sess, _ := h.cookies.New(r, OAuthCookieName)
	sess.Options = &sessions.Options{
		Path:     "/auth/v1",
		MaxAge:   600, // 10 minutes to finish the consent screen
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	sess.Values["state"] = state
	sess.Values["provider"] = provider.Name()
	sess.Values["redirect_to"] = redirectTo
	if err := sess.Save(r, w); err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, provider.AuthURL(state, q), http.StatusFound)
}

// HandleCallback completes the provider round trip.
//
// HTTP: GET /auth/v1/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Load and clear the state cookie; verify the state (CSRF check)
//  2. If the provider reported an error, forward it to redirect_to
//  3. Exchange the provider code for the provider's user profile
//  4. Find/create/link the user and mint a one-time code
//  5. Redirect to redirect_to?code=<one-time code>
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// --- Step 1: validate CSRF state ---
	sess, err := h.cookies.Get(r, OAuthCookieName)
	if err != nil {
		h.logger.Warn("auth callback: unreadable state cookie", slog.String("error", err.Error()))
	}
	state, _ := sess.Values["state"].(string)
	providerName, _ := sess.Values["provider"].(string)
	redirectTo, _ := sess.Values["redirect_to"].(string)

	// The state is single-use: delete the cookie whatever happens next.
	sess.Options = &sessions.Options{Path: "/auth/v1", MaxAge: -1}
	_ = sess.Save(r, w)

	if state == "" || q.Get("state") != state {
		h.logger.Warn("auth callback: state mismatch")
		renderAuthError(w, http.StatusBadRequest, "Sign-in failed", "The sign-in request has expired or was not started here. Please try again.")
		return
	}

	// --- Step 2: provider-side error (e.g. the user clicked "Cancel") ---
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned an error", slog.String("error", errParam))
		h.redirectWith(w, r, redirectTo, url.Values{
			"error":             {errParam},
			"error_description": {q.Get("error_description")},
		})
		return
	}

	provider, ok := h.providers.Get(providerName)
	if !ok {
		h.redirectWith(w, r, redirectTo, url.Values{"error": {"invalid_request"}, "error_description": {"Unsupported provider"}})
		return
	}

	// --- Step 3: exchange the code with the provider ---
	pu, err := provider.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Error("auth callback: provider exchange failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		h.redirectWith(w, r, redirectTo, url.Values{"error": {"server_error"}, "error_description": {"Unable to exchange external code"}})
		return
	}

	// --- Step 4: resolve the user, mint a one-time code ---
	code, err := h.svc.CompleteOAuth(r.Context(), providerName, pu)
	if err != nil {
		h.logger.Error("auth callback: completing sign-in failed", slog.String("error", err.Error()))
		h.redirectWith(w, r, redirectTo, url.Values{"error": {"server_error"}, "error_description": {"Database error saving new user"}})
		return
	}

	// --- Step 5: back to the client ---
	h.redirectWith(w, r, redirectTo, url.Values{"code": {code}})
}

// HandleLogout revokes the caller's refresh tokens.
//
// HTTP: POST /auth/v1/logout
// Auth: Required
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.svc.SignOut(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUser returns the currently authenticated user's profile.
//
// HTTP: GET /auth/v1/user
// Auth: Required
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		// A valid token for a deleted user is as good as no token.
		if errors.Is(err, apperror.ErrNotFound) {
			err = apperror.Unauthorized("user from token no longer exists")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleSettings lists the enabled providers so clients can grey out the rest.
//
// HTTP: GET /auth/v1/settings
func (h *AuthHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"external": h.providers.Names()})
}

// redirectAllowed accepts loopback http(s) URLs (native apps listen on a
// local port) and URLs under a configured entry. URLs with userinfo or dot
// segments are never accepted.
func (h *AuthHandler) redirectAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	for _, entry := range h.redirects {
		if redirectUnder(u, entry) {
			return true
		}
	}
	return false
}

// redirectUnder reports whether u has the same scheme, host and port as the
// allow-list entry and a path at or below the entry's path.
func redirectUnder(u *url.URL, entry string) bool {
	base, err := url.Parse(entry)
	if err != nil || base.Host == "" || base.User != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) ||
		!strings.EqualFold(u.Hostname(), base.Hostname()) ||
		u.Port() != base.Port() {
		return false
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	return prefix == "" || u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// redirectWith sends the browser to target with params merged into its query.
func (h *AuthHandler) redirectWith(w http.ResponseWriter, r *http.Request, target string, params url.Values) {
	u, err := url.Parse(target)
	if err != nil || target == "" {
		renderAuthError(w, http.StatusBadRequest, "Sign-in failed", "No valid redirect target for this sign-in.")
		return
	}
	q := u.Query()
	for k, vs := range params {
		if len(vs) > 0 && vs[0] != "" {
			q.Set(k, vs[0])
		}
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
