package session

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/platform"
)

// CallbackPath is where the platform sends the browser after a federated
// sign-in.
const CallbackPath = "/auth/callback"

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; max-width: 32rem; margin: 4rem auto;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

// CallbackServer is the loopback listener that receives the browser at the
// end of a federated sign-in and trades the one-time code for a session.
// A successful exchange signs the user in, which reaches the application
// through the Store subscription like any other sign-in.
type CallbackServer struct {
	auth   *platform.Auth
	port   int
	logger *slog.Logger

	mu      sync.Mutex
	onError func(error)
	srv     *http.Server
	addr    string
	done    chan struct{}
}

// NewCallbackServer creates a listener for 127.0.0.1:port. Port 0 picks a
// free port when Start runs.
func NewCallbackServer(client *platform.Client, port int, logger *slog.Logger) *CallbackServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CallbackServer{
		auth:   client.Auth,
		port:   port,
		logger: logger,
	}
}

// OnError sets the function told about sign-ins that fail after the browser
// has left the application: provider denials and rejected codes.
func (cs *CallbackServer) OnError(fn func(error)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.onError = fn
}

// Start begins listening. Calling it again while running is a no-op.
func (cs *CallbackServer) Start() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(cs.port)))
	if err != nil {
		return fmt.Errorf("session: callback listener: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get(CallbackPath, cs.handleCallback)

	cs.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	cs.addr = ln.Addr().String()
	cs.done = make(chan struct{})

	srv, done := cs.srv, cs.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.logger.Error("callback listener stopped", slog.String("error", err.Error()))
		}
	}()

	cs.logger.Info("callback listener started", slog.String("addr", cs.addr))
	return nil
}

// RedirectURL is the URL the platform must send the browser to. It is only
// meaningful after Start.
func (cs *CallbackServer) RedirectURL() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	addr := cs.addr
	if addr == "" {
		addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(cs.port))
	}
	return "http://" + addr + CallbackPath
}

// Close stops the listener and waits for it to exit.
func (cs *CallbackServer) Close() error {
	cs.mu.Lock()
	srv, done := cs.srv, cs.done
	cs.srv, cs.addr, cs.done = nil, "", nil
	cs.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if code := q.Get("error"); code != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = code
		}
		cs.logger.Warn("federated sign-in failed", slog.String("error", code), slog.String("description", msg))
		cs.report(apperror.AuthFailed(msg, nil))
		renderPage(w, http.StatusBadRequest, "Sign-in failed", msg)
		return
	}

	code := q.Get("code")
	if code == "" {
		renderPage(w, http.StatusBadRequest, "Sign-in failed", "The sign-in response did not include a code.")
		return
	}

	if _, err := cs.auth.ExchangeCodeForSession(r.Context(), code); err != nil {
		cs.logger.Warn("code exchange failed", slog.String("error", err.Error()))
		cs.report(authError(err))
		renderPage(w, http.StatusBadRequest, "Sign-in failed", apperror.Message(authError(err)))
		return
	}

	renderPage(w, http.StatusOK, "Signed in", "You can close this tab and return to the terminal.")
}

func (cs *CallbackServer) report(err error) {
	cs.mu.Lock()
	fn := cs.onError
	cs.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, struct{ Title, Message string }{title, message})
}
