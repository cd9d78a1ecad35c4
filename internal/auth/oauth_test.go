package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProviderServer serves a token endpoint plus the given JSON documents at
// their paths, the way GitHub and Google would after a successful consent.
func fakeProviderServer(t *testing.T, docs map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"bearer"}`))
	})
	for path, doc := range docs {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer provider-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(doc)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// pointAt redirects a provider's endpoints to srv.
func pointAt(p Provider, srv *httptest.Server) {
	op := p.(*oauthProvider)
	op.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	op.userURL = srv.URL + "/user"
	op.emailURL = srv.URL + "/user/emails"
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user": map[string]any{"id": 42, "login": "octocat", "email": "", "avatar_url": "https://img/42"},
		"/user/emails": []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/auth/v1/callback")
	pointAt(p, srv)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "octocat", user.Name, "login is used when name is empty")
	assert.Equal(t, "octo@example.com", user.Email, "primary verified email wins")
	assert.Equal(t, "https://img/42", user.AvatarURL)
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user": map[string]any{
			"id": "g-7", "email": "g@example.com", "verified_email": true,
			"name": "Gopher", "picture": "https://img/g",
		},
	})
	p := NewGoogleProvider("id", "secret", "http://localhost/auth/v1/callback")
	pointAt(p, srv)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, &ProviderUser{ID: "g-7", Email: "g@example.com", Name: "Gopher", AvatarURL: "https://img/g"}, user)
}

func TestProvider_ExchangeBadCode(t *testing.T) {
	srv := fakeProviderServer(t, nil)
	p := NewGoogleProvider("id", "secret", "http://localhost/auth/v1/callback")
	pointAt(p, srv)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestProvider_ExchangeRejectsZeroID(t *testing.T) {
	srv := fakeProviderServer(t, map[string]any{
		"/user": map[string]any{"id": 0, "login": "ghost", "email": "x@example.com"},
	})
	p := NewGitHubProvider("id", "secret", "http://localhost/auth/v1/callback")
	pointAt(p, srv)

	_, err := p.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestAuthURL_ForwardsAllowedParams(t *testing.T) {
	p := NewGoogleProvider("client-1", "secret", "http://localhost:8080/auth/v1/callback")

	raw := p.AuthURL("state-xyz", url.Values{
		"access_type": {"offline"},
		"prompt":      {"consent"},
		"scope":       {"https://www.googleapis.com/auth/drive"}, // not forwarded
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/v1/callback", q.Get("redirect_uri"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
}

func TestNewProviders_OnlyConfigured(t *testing.T) {
	ps := NewProviders("http://cb", "gh-id", "gh-secret", "", "")

	assert.Equal(t, []string{"github"}, ps.Names())
	_, ok := ps.Get("google")
	assert.False(t, ok)
}
