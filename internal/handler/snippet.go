package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/service"
)

// SnippetHandler serves the snippets collection under /rest/v1.
//
// The query syntax is a small subset of PostgREST's, which is what the
// platform SDK speaks:
//
//	GET /rest/v1/snippets?user_id=eq.<id>&order=created_at.desc
type SnippetHandler struct {
	svc    *service.SnippetService
	logger *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{svc: svc, logger: logger}
}

// HandleList returns the caller's snippets, newest first.
//
// HTTP: GET /rest/v1/snippets
// Auth: Required
//
// QUERY PARAMETERS:
//   - user_id=eq.<id>       optional owner filter; a foreign id yields []
//   - order=created_at.desc optional; it is the only supported ordering
//   - select=*              accepted and ignored
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	var owner string
	if raw := q.Get("user_id"); raw != "" {
		v, ok := strings.CutPrefix(raw, "eq.")
		if !ok {
			writeBadRequest(w, "validation_error", "user_id filter must use the eq operator")
			return
		}
		owner = v
	}

	if order := q.Get("order"); order != "" && order != "created_at.desc" {
		writeBadRequest(w, "validation_error", "Unsupported order: "+order)
		return
	}

	snippets, err := h.svc.List(r.Context(), callerID, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleCreate inserts a snippet owned by the caller.
//
// HTTP: POST /rest/v1/snippets
// Auth: Required
// REQUEST BODY: a single object or a one-element array:
//
//	[{"user_id":"...","title":"...","code_content":"...","description":null,"language":"go"}]
//
// RESPONSE: 201 with an array holding the stored row (id and created_at set
// by the server), the same shape PostgREST returns for Prefer: return=representation.
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	callerID, _ := auth.UserIDFromContext(r.Context())

	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		writeError(w, err)
		return
	}

	var rows []service.NewSnippet
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			writeBadRequest(w, "validation_error", "Invalid JSON body")
			return
		}
	} else {
		var one service.NewSnippet
		if err := json.Unmarshal(trimmed, &one); err != nil {
			writeBadRequest(w, "validation_error", "Invalid JSON body")
			return
		}
		rows = append(rows, one)
	}

	if len(rows) != 1 {
		writeBadRequest(w, "validation_error", "Exactly one snippet must be inserted per request")
		return
	}

	created, err := h.svc.Create(r.Context(), callerID, rows[0])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, []any{created})
}
