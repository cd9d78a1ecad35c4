package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/snippet-vault/internal/app"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

func newSignUpCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		Long: `Create a password account and sign in.

The password is read from standard input when --password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")

			password, err := passwordOrStdin(cmd, password)
			if err != nil {
				return err
			}

			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.store.SignUp(cmd.Context(), email, password, name); err != nil {
				return err
			}
			return printUser(cmd, d)
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("name", "", "display name")
	return cmd
}

func newLoginCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password or a federated provider",
		Long: `Sign in and keep the session for later commands.

Examples:
  snippets login --email ada@example.com
  snippets login --provider github`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			if provider != "" {
				timeout, _ := cmd.Flags().GetDuration("timeout")
				return runOAuthLogin(cmd, v, provider, timeout)
			}

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			password, err := passwordOrStdin(cmd, password)
			if err != nil {
				return err
			}

			// Same checks as the login screen.
			form := app.NewLoginForm(nil)
			form.Email, form.Password = email, password
			if err := form.Validate(); err != nil {
				return err
			}

			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.store.SignInWithPassword(cmd.Context(), strings.TrimSpace(email), password); err != nil {
				return err
			}
			return printUser(cmd, d)
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("provider", "", "federated provider (github, google)")
	cmd.Flags().Duration("timeout", 3*time.Minute, "how long to wait for the browser sign-in")
	return cmd
}

// runOAuthLogin starts a federated sign-in and waits until the callback
// listener has turned the browser's code into a session.
func runOAuthLogin(cmd *cobra.Command, v *viper.Viper, provider string, timeout time.Duration) error {
	d, err := newDeps(v, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer d.Close()

	signedIn := make(chan *model.User, 1)
	failed := make(chan error, 1)

	// The first call reports the state before this sign-in; skip it.
	initial := true
	unsubscribe, err := d.store.Subscribe(func(u *model.User) {
		if initial {
			initial = false
			return
		}
		if u == nil {
			return
		}
		select {
		case signedIn <- u:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	d.callback.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	authURL, err := d.store.SignInWithOAuth(cmd.Context(), provider)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Continue in your browser. If it did not open, visit:")
	fmt.Fprintln(out, authURL)
	if err := openBrowser(authURL); err != nil {
		d.logger.Debug("could not open browser", slog.String("error", err.Error()))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case u := <-signedIn:
		fmt.Fprintf(out, "Signed in as %s\n", app.Verbatim(u.Name()))
		return nil
	case err := <-failed:
		return err
	case <-timer.C:
		return apperror.AuthFailed("Timed out waiting for the browser sign-in", nil)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}

func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.store.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()
			return printUser(cmd, d)
		},
	}
}

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in; run `snippets login` first")

func currentUser(cmd *cobra.Command, d *deps) (*model.User, error) {
	user, err := d.store.CurrentUser(cmd.Context())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNotSignedIn
	}
	return user, nil
}

func printUser(cmd *cobra.Command, d *deps) error {
	user, err := currentUser(cmd, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", app.Verbatim(user.Name()), user.ID)
	return nil
}

// passwordOrStdin returns password, or the first line of stdin when it is
// empty.
func passwordOrStdin(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
