package handler

// RESPONSE HELPERS:
// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "user not found with id abc123"}
//
// so SDK clients always know what fields to expect, whatever the status.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/apperror"
)

// maxBodyBytes caps request bodies. Snippet code is limited to ~100KB, so
// this leaves headroom for JSON escaping.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is() walks the whole chain, so this works through any amount of
// fmt.Errorf("...: %w") wrapping added by the service layer.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrAuth):
			status = http.StatusBadRequest // 400, as OAuth 2.0 token endpoints do
			errorType = "invalid_grant"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		}

		if status == http.StatusInternalServerError {
			slog.Error("internal error", slog.String("error", err.Error()))
			appErr = &apperror.AppError{Message: "An internal error occurred"}
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: never expose internal details (SQL, file paths) to clients.
	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// writeBadRequest sends a 400 with the given machine-readable type.
func writeBadRequest(w http.ResponseWriter, errorType, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errorType, Message: message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("Request body must be %d bytes or less", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "Request body is required")
		default:
			return apperror.ValidationFailed("body", "Invalid JSON body")
		}
	}
	return nil
}
