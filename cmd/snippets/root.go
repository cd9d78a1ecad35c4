package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/snippet-vault/internal/app"
	"github.com/sakif/snippet-vault/internal/config"
	"github.com/sakif/snippet-vault/internal/platform"
	"github.com/sakif/snippet-vault/internal/session"
	"github.com/sakif/snippet-vault/internal/snippet"
	"github.com/sakif/snippet-vault/internal/tui"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "snippets",
		Short: "Save and browse your code snippets",
		Long: `snippets keeps personal code snippets on a snippet-vault platform.

Run without a subcommand to open the interactive UI.

Examples:
  snippets
  snippets signup --email ada@example.com
  snippets login --provider github
  snippets add --title "Hello" --language go --file hello.go
  snippets list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "", "platform base URL (env SNIPPETS_API_URL)")
	flags.String("session-file", "", "where the session is kept between runs")
	flags.Int("callback-port", 0, "loopback port for federated sign-in callbacks")
	flags.String("log-file", "", "write logs to this file")

	for key, flag := range map[string]string{
		"api_url":       "api-url",
		"session_file":  "session-file",
		"callback_port": "callback-port",
		"log_file":      "log-file",
	} {
		// Unchanged flags fall through to env, config file and defaults.
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newSignUpCmd(v),
		newLoginCmd(v),
		newLogoutCmd(v),
		newWhoAmICmd(v),
		newListCmd(v),
		newAddCmd(v),
	)
	return root
}

// deps is everything a command needs, built from configuration.
type deps struct {
	cfg      *config.ClientConfig
	logger   *slog.Logger
	client   *platform.Client
	callback *session.CallbackServer
	store    *session.Store
	repo     *snippet.Repository
	logFile  *os.File
}

// newDeps builds the client stack. Interactive sessions keep the session
// fresh in the background; one-shot commands refresh on demand.
func newDeps(v *viper.Viper, interactive bool, stderr io.Writer) (*deps, error) {
	cfg, err := config.LoadClient(v)
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg}

	var out io.Writer = io.Discard
	level := slog.LevelInfo
	if !interactive {
		out, level = stderr, slog.LevelWarn
	}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		d.logFile = f
		out, level = f, slog.LevelDebug
	}
	d.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	d.client = platform.New(cfg.APIURL,
		platform.WithTimeout(cfg.HTTPTimeout),
		platform.WithStorage(platform.NewFileStorage(cfg.SessionFile)),
		platform.WithLogger(d.logger),
		platform.WithAutoRefresh(interactive),
	)
	d.callback = session.NewCallbackServer(d.client, cfg.CallbackPort, d.logger)
	d.store = session.NewStore(d.client, session.WithCallbackServer(d.callback), session.WithLogger(d.logger))
	d.repo = snippet.NewRepository(d.client, d.logger)
	return d, nil
}

func (d *deps) Close() {
	_ = d.store.Close()
	_ = d.client.Close()
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}

func runUI(cmd *cobra.Command, v *viper.Viper) error {
	d, err := newDeps(v, true, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer d.Close()

	shell := app.NewShell(d.store, d.repo, d.logger)
	return tui.Run(cmd.Context(), shell, d.store, d.callback,
		tui.WithLogger(d.logger),
		tui.WithBrowser(openBrowser),
	)
}
