package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/snippet-vault/internal/app"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your snippets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			user, err := currentUser(cmd, d)
			if err != nil {
				return err
			}
			snippets, err := d.repo.ListForUser(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snippets)
			}
			printList(out, app.ListView{Snippets: snippets})
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the raw records as JSON")
	return cmd
}

func printList(w io.Writer, view app.ListView) {
	if view.Empty() {
		fmt.Fprintln(w, app.EmptyListMessage)
		return
	}
	for i, c := range view.Cards() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s [%s] %s\n", c.Title, c.Language, c.CreatedAt)
		if c.Description != "" {
			fmt.Fprintln(w, c.Description)
		}
		fmt.Fprintln(w, strings.Repeat("-", 40))
		fmt.Fprintln(w, strings.TrimRight(c.Code, "\n"))
	}
}

func newAddCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new snippet",
		Long: `Save a new snippet. The code comes from --code, from --file, or from
standard input when neither is given (or --file is "-").

Examples:
  snippets add --title "Hello" --language go --file hello.go
  pbpaste | snippets add --title "From clipboard" --language python`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			language, _ := cmd.Flags().GetString("language")
			code, _ := cmd.Flags().GetString("code")
			file, _ := cmd.Flags().GetString("file")

			if code == "" {
				var err error
				if code, err = readCode(cmd, file); err != nil {
					return err
				}
			}

			d, err := newDeps(v, false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			user, err := currentUser(cmd, d)
			if err != nil {
				return err
			}

			var created *model.Snippet
			form := app.NewForm(d.repo, func(s model.Snippet) { created = &s })
			form.Title, form.Description, form.Code, form.Language = title, description, code, language

			insert := form.Submit(user.ID)
			if insert == nil {
				return apperror.ValidationFailed("", form.Err())
			}
			form.Update(insert(cmd.Context()))
			if created == nil {
				return apperror.RepoFailed(form.Err(), nil)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%s)\n", app.Verbatim(created.Title), created.ID)
			return nil
		},
	}
	cmd.Flags().String("title", "", "snippet title (required)")
	cmd.Flags().String("description", "", "optional description")
	cmd.Flags().String("language", model.DefaultLanguage, "one of: "+strings.Join(model.Languages, ", "))
	cmd.Flags().String("code", "", "the code itself")
	cmd.Flags().String("file", "", `read the code from this file ("-" for stdin)`)
	return cmd
}

func readCode(cmd *cobra.Command, file string) (string, error) {
	var (
		b   []byte
		err error
	)
	if file == "" || file == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading code: %w", err)
	}
	return string(b), nil
}
