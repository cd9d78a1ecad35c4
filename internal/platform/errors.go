package platform

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// APIError is an error response from the platform:
//
//	{"error": "invalid_grant", "message": "Invalid login credentials"}
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int `json:"-"`
	// Code is the machine-readable error type (e.g. "unauthorized").
	Code string `json:"error"`
	// Message is meant to be shown to the user as is.
	Message string `json:"message"`
}

// Error returns the platform's message verbatim.
func (e *APIError) Error() string {
	return e.Message
}

// IsUnauthorized reports a missing, invalid or expired access token.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsInvalidGrant reports rejected credentials, refresh tokens or codes.
func (e *APIError) IsInvalidGrant() bool {
	return e.Code == "invalid_grant"
}

// AsAPIError returns the *APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// parseError builds an APIError from a non-2xx response.
func parseError(statusCode int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = statusCode
		return &apiErr
	}

	// Fallback for proxies and plain-text errors.
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Code:       strings.ToLower(strings.ReplaceAll(http.StatusText(statusCode), " ", "_")),
		Message:    msg,
	}
}
