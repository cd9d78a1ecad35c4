// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides how the server starts and stops gracefully.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB → SnippetService → SnippetHandler
//	            ↘ AuthService (+ TokenService, PasswordService) → AuthHandler
//	  auth.Providers (GitHub, Google) → AuthHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/handler"
	"github.com/sakif/snippet-vault/internal/middleware"
	sqliteRepo "github.com/sakif/snippet-vault/internal/repository/sqlite"
	"github.com/sakif/snippet-vault/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). Run closes it after the HTTP
// server has drained, which flushes the WAL and releases the file lock.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	registry  *prometheus.Registry
	providers auth.Providers
}

// New creates a new Server with the given config.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with the
// sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		providers: auth.NewProviders(
			cfg.Server.ExternalURL+"/auth/v1/callback",
			cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret,
			cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret,
		),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	logger.Info("oauth providers configured", slog.Any("providers", s.providers.Names()))
	return s, nil
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Providers returns the OAuth provider registry. Providers added to it
// after New are served by /auth/v1/authorize.
func (s *Server) Providers() auth.Providers {
	return s.providers
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                     → liveness + DB ping
// GET    /metrics                     → Prometheus
// POST   /auth/v1/signup              → create password account
// POST   /auth/v1/token               → password / refresh / code grants
// GET    /auth/v1/authorize           → start OAuth
// GET    /auth/v1/callback            → finish OAuth
// GET    /auth/v1/settings            → enabled providers
// POST   /auth/v1/logout              → revoke refresh tokens (auth)
// GET    /auth/v1/user                → current user (auth)
// GET    /rest/v1/snippets            → list (auth)
// POST   /rest/v1/snippets            → insert (auth)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Metrics: request counters and latency histograms
// 5. Recoverer: catches panics and returns 500 instead of crashing
// 6. CORS: browser clients on allowed origins
func (s *Server) setupRoutes() error {
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Handler)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.Server.CORSOrigins))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	tokenService, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// DEPENDENCY CHAIN:
	//   s.db implements UserRepository, TokenRepository and SnippetRepository.
	//   Services receive the repository interfaces; handlers receive services.
	authService := service.NewAuthService(
		s.db, s.db,
		tokenService,
		passwordService(s.config.Auth.BcryptCost),
		s.config.Auth.RefreshTokenTTL,
		s.logger,
	)
	snippetService := service.NewSnippetService(s.db, s.logger)

	// The cookie only lives for the OAuth round trip; it is signed, not
	// encrypted, since it holds nothing secret beyond the CSRF state.
	cookies := sessions.NewCookieStore([]byte(s.config.Auth.CookieSecret))

	authHandler := handler.NewAuthHandler(authService, s.providers, cookies, s.config.Auth.AllowedRedirects, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	requireAuth := auth.RequireAuth(tokenService)

	s.router.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/token", authHandler.HandleToken)
		r.Get("/authorize", authHandler.HandleAuthorize)
		r.Get("/callback", authHandler.HandleCallback)
		r.Get("/settings", authHandler.HandleSettings)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/user", authHandler.HandleUser)
		})
	})

	s.router.Route("/rest/v1", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/snippets", snippetHandler.HandleList)
		r.Post("/snippets", snippetHandler.HandleCreate)
	})

	return nil
}

// passwordService falls back to the default cost when none is configured.
func passwordService(cost int) *auth.PasswordService {
	if cost <= 0 {
		return auth.NewPasswordService()
	}
	return auth.NewPasswordServiceWithCost(cost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (server.shutdown_timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Run(ctx context.Context) error {
	// Ensure the database is closed when the server stops.
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", s.config.Server.ExternalURL),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
