// Package platform is the Go client for the snippet-vault platform API: the
// auth endpoints under /auth/v1 and the table endpoints under /rest/v1.
//
// Use New to create a client:
//
//	client := platform.New("http://localhost:8080",
//	    platform.WithStorage(platform.NewFileStorage(path)),
//	)
//	defer client.Close()
//
//	_, err := client.Auth.SignInWithPassword(ctx, email, password)
//	var rows []model.Snippet
//	err = client.From("snippets").Eq("user_id", id).Order("created_at", platform.Desc).Find(ctx, &rows)
//
// The client keeps the current session, persists it through a Storage,
// refreshes it before it expires and reports every change to subscribers
// registered with Auth.OnAuthStateChange.
package platform

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRefreshInterval is how often the auto-refresh loop checks the
	// session expiry.
	DefaultRefreshInterval = 30 * time.Second

	// DefaultRefreshMargin is how long before expiry a session is refreshed.
	DefaultRefreshMargin = 90 * time.Second
)

// Client is the platform API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	storage         Storage
	autoRefresh     bool
	refreshInterval time.Duration
	refreshMargin   time.Duration
	now             func() time.Time

	// Auth manages the session: sign-in, sign-out, refresh, change events.
	Auth *Auth
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithStorage sets where the session is persisted. The default keeps it in
// memory only.
func WithStorage(s Storage) Option {
	return func(c *Client) {
		c.storage = s
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAutoRefresh enables or disables the background refresh loop
// (enabled by default).
func WithAutoRefresh(enabled bool) Option {
	return func(c *Client) {
		c.autoRefresh = enabled
	}
}

// WithRefreshTiming overrides how often the session is checked and how long
// before expiry it is refreshed.
func WithRefreshTiming(interval, margin time.Duration) Option {
	return func(c *Client) {
		c.refreshInterval = interval
		c.refreshMargin = margin
	}
}

// New creates a client for the platform at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		storage:         NewMemoryStorage(),
		autoRefresh:     true,
		refreshInterval: DefaultRefreshInterval,
		refreshMargin:   DefaultRefreshMargin,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Auth = newAuth(c)
	if c.autoRefresh {
		c.Auth.startAutoRefresh()
	}
	return c
}

// BaseURL returns the platform base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return newQuery(c, table)
}

// Close stops the auto-refresh loop and every auth subscriber, and waits
// for them to exit. Do not call it from inside an auth callback.
func (c *Client) Close() error {
	c.Auth.close()
	return nil
}
