package app

import (
	"context"
	"strings"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/snippet"
)

// Form is the snippet creation form. The host edits the exported fields
// directly; Submit validates them and returns the insert to run.
//
// A failed insert leaves every field as the user typed it.
type Form struct {
	Title       string
	Description string
	Code        string
	Language    string

	repo    SnippetRepository
	onAdded func(model.Snippet)
	pending bool
	err     string
	closed  bool
}

// NewForm returns an empty form with the default language selected.
// onAdded is called with the stored record after a successful insert.
func NewForm(repo SnippetRepository, onAdded func(model.Snippet)) *Form {
	return &Form{
		Language: model.DefaultLanguage,
		repo:     repo,
		onAdded:  onAdded,
	}
}

// Pending reports whether an insert is in flight.
func (f *Form) Pending() bool { return f.pending }

// Err is the message to show under the form, or "".
func (f *Form) Err() string { return f.err }

// Closed reports whether the form finished with a successful insert.
func (f *Form) Closed() bool { return f.closed }

// Validate checks the required fields in the order they appear.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return apperror.ValidationFailed("title", "Title is required")
	}
	if strings.TrimSpace(f.Code) == "" {
		return apperror.ValidationFailed("code_content", "Code content is required")
	}
	if !model.IsLanguage(f.Language) {
		return apperror.ValidationFailed("language", "Unsupported language: "+f.Language)
	}
	return nil
}

// CycleLanguage moves the language selection by delta, wrapping around.
func (f *Form) CycleLanguage(delta int) {
	n := len(model.Languages)
	i := 0
	for j, l := range model.Languages {
		if l == f.Language {
			i = j
			break
		}
	}
	f.Language = model.Languages[((i+delta)%n+n)%n]
}

// Submit validates the form and, when it passes, marks it pending and
// returns the insert for ownerID. It returns nil when there is nothing to
// run: a validation failure (now shown in Err) or an insert already in
// flight.
func (f *Form) Submit(ownerID string) Cmd {
	if f.pending || f.closed {
		return nil
	}
	if err := f.Validate(); err != nil {
		f.err = apperror.Message(err)
		return nil
	}

	f.pending = true
	f.err = ""

	in := snippet.NewSnippet{
		UserID:      ownerID,
		Title:       strings.TrimSpace(f.Title),
		CodeContent: f.Code,
		Language:    f.Language,
	}
	if d := strings.TrimSpace(f.Description); d != "" {
		in.Description = &d
	}

	repo := f.repo
	return func(ctx context.Context) Msg {
		created, err := repo.Insert(ctx, in)
		return snippetInsertedMsg{form: f, snippet: created, err: err}
	}
}

// Update applies the result of a Cmd returned by Submit. Messages meant for
// other forms are ignored.
func (f *Form) Update(msg Msg) {
	if m, ok := msg.(snippetInsertedMsg); ok && m.form == f {
		f.complete(m)
	}
}

// complete applies the outcome of the insert started by Submit.
func (f *Form) complete(msg snippetInsertedMsg) {
	f.pending = false

	if msg.err != nil {
		f.err = apperror.Message(msg.err)
		return
	}
	if f.onAdded != nil {
		f.onAdded(*msg.snippet)
	}
	f.closed = true
}
