package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "userID", id), ANY package that knows the string "userID"
// can read or shadow your value. Using a package-private type prevents collisions:
// only THIS package can create a key of type contextKey, so only this package
// can read or write userID values in the context.
type contextKey string

const userIDKey contextKey = "userID"

var errNoToken = errors.New("auth: no bearer token")

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "Authorization: Bearer <token>" header, validates
// it, and stores the userID in the request context. If the token is missing
// or invalid, it returns 401 Unauthorized and stops the request chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	        // ... do stuff after the handler ...
//	    })
//	}
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
//
// WHY A HEADER AND NOT A COOKIE?
// The platform's clients are SDKs (the terminal app, scripts), not browsers
// sharing our origin, so they hold the token themselves and send it
// explicitly on each request.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				msg := `{"error":"unauthorized","message":"valid authentication required"}`
				if errors.Is(err, ErrTokenExpired) {
					msg = `{"error":"unauthorized","message":"token has expired"}`
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="snippet-vault"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(msg))
				return
			}

			// Store userID in context so handlers can read it
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. Handlers under RequireAuth
// get this for free; tests use it to fake an authenticated request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
// Returns (id, true) if the user is authenticated.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	token, ok := BearerToken(r)
	if !ok {
		return "", errNoToken
	}
	return tokens.Validate(token)
}
