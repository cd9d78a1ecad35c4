// Package main is the entry point for the snippet-vault platform server: the
// auth and data backend the terminal client talks to.
//
// main stays minimal. Its job is to:
// 1. Read configuration (config.yaml, .env, SNIPPETS_* env vars)
// 2. Create the logger
// 3. Start the server and stop it on SIGINT/SIGTERM
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Log levels (from least to most severe): Debug → Info → Warn → Error
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
