package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _, _ := ts.Generate("user-1", "")
	expired, _, _ := ts.GenerateWithDuration("user-1", "", -time.Minute)

	var gotUserID string
	protected := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid bearer token", "Bearer " + valid, http.StatusNoContent, "user-1"},
		{"scheme is case-insensitive", "bearer " + valid, http.StatusNoContent, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/rest/v1/snippets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if gotUserID != tt.wantUser {
				t.Errorf("userID in context = %q, want %q", gotUserID, tt.wantUser)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("401 should be JSON, got Content-Type %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id, ok := UserIDFromContext(req.Context()); ok || id != "" {
		t.Errorf("UserIDFromContext() = (%q, %v), want (\"\", false)", id, ok)
	}

	ctx := WithUserID(req.Context(), "user-9")
	if id, ok := UserIDFromContext(ctx); !ok || id != "user-9" {
		t.Errorf("UserIDFromContext() = (%q, %v), want (\"user-9\", true)", id, ok)
	}
}
