// Package handler contains the HTTP request handlers of the platform API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, headers)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic. They are the glue between
// HTTP and the services.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

// authErrorPage is shown in the browser when an OAuth callback cannot be
// redirected back to the client (bad state, no redirect target). Every
// other auth response is JSON.
//
// html/template escapes Title and Message, so provider-supplied text can't
// inject markup.
var authErrorPage = template.Must(template.New("auth_error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
main { max-width: 28rem; padding: 2rem; border-radius: 0.75rem; background: #1e293b; }
h1 { font-size: 1.25rem; margin-top: 0; }
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p>You can close this window and return to the terminal.</p>
</main>
</body>
</html>
`))

// renderAuthError writes the browser-facing auth error page.
func renderAuthError(w http.ResponseWriter, status int, title, message string) {
	data := map[string]string{
		"Title":   title,
		"Message": message,
	}

	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := authErrorPage.Execute(w, data); err != nil {
		slog.Error("failed to render template", slog.String("error", err.Error()))
	}
}
