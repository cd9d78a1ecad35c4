// Package tui is the terminal front end. It hosts an app.Shell inside a
// bubbletea program: keys become Shell actions, Shell commands run as
// tea.Cmds, and their results come back through Update.
package tui

import (
	"context"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sakif/snippet-vault/internal/app"
)

// Focus positions of the creation form.
const (
	fieldTitle = iota
	fieldDescription
	fieldLanguage
	fieldCode
	formFields
)

// Focus positions of the login form.
const (
	fieldEmail = iota
	fieldPassword
	loginFields
)

// appMsg carries the result of an app.Cmd back into the program.
type appMsg struct {
	msg app.Msg
}

// Model is the bubbletea model around a Shell.
type Model struct {
	ctx     context.Context
	shell   *app.Shell
	logger  *slog.Logger
	openURL func(string) error

	keys    keyMap
	help    help.Model
	styles  Styles
	spinner spinner.Model

	email    textinput.Model
	password textinput.Model
	title    textinput.Model
	desc     textinput.Model
	code     textarea.Model
	list     viewport.Model

	loginFocus int
	formFocus  int
	width      int
	height     int

	// The forms the inputs were last reset for.
	lastLogin *app.LoginForm
	lastForm  *app.Form
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. The terminal belongs to the UI, so it should
// write to a file.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithBrowser sets the function that opens federated sign-in URLs. Without
// one the URL is only displayed.
func WithBrowser(open func(string) error) Option {
	return func(m *Model) {
		m.openURL = open
	}
}

// WithStyles replaces the default styles.
func WithStyles(s Styles) Option {
	return func(m *Model) {
		m.styles = s
	}
}

// New creates a Model. Shell commands run with ctx.
func New(ctx context.Context, shell *app.Shell, opts ...Option) *Model {
	m := &Model{
		ctx:    ctx,
		shell:  shell,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		keys:   defaultKeyMap(),
		help:   help.New(),
		styles: DefaultStyles(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.spinner.Style = m.styles.Spinner

	m.email = textinput.New()
	m.email.Placeholder = "you@example.com"
	m.email.Prompt = "│ "
	m.email.CharLimit = 320
	m.email.Width = 40

	m.password = textinput.New()
	m.password.Placeholder = "password"
	m.password.Prompt = "│ "
	m.password.EchoMode = textinput.EchoPassword
	m.password.EchoCharacter = '•'
	m.password.CharLimit = 128
	m.password.Width = 40

	m.title = textinput.New()
	m.title.Placeholder = "Title"
	m.title.Prompt = "│ "
	m.title.CharLimit = 200
	m.title.Width = 60

	m.desc = textinput.New()
	m.desc.Placeholder = "Description (optional)"
	m.desc.Prompt = "│ "
	m.desc.CharLimit = 2000
	m.desc.Width = 60

	m.code = textarea.New()
	m.code.Placeholder = "Paste your code here..."
	m.code.ShowLineNumbers = true
	m.code.CharLimit = 100000
	m.code.SetWidth(80)
	m.code.SetHeight(10)

	// Static cursors: blink messages are not routed to the inputs.
	for _, c := range []*cursor.Model{&m.email.Cursor, &m.password.Cursor, &m.title.Cursor, &m.desc.Cursor} {
		c.SetMode(cursor.CursorStatic)
	}
	m.code.Cursor.SetMode(cursor.CursorStatic)

	m.list = viewport.New(80, 20)

	m.lastLogin = shell.Login()
	m.focusLogin(fieldEmail)
	return m
}

// Init starts the session check.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run(m.shell.Init()))
}

// run adapts an app.Cmd to a tea.Cmd.
func (m *Model) run(cmd app.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return appMsg{msg: cmd(ctx)}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case appMsg:
		return m, m.apply(msg.msg)

	// Sent from outside the program by Run.
	case app.SessionChangedMsg, app.OAuthFailedMsg:
		return m, m.apply(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		switch m.shell.Phase() {
		case app.Unauthenticated:
			return m, m.updateLogin(msg)
		case app.Authenticated:
			if m.shell.Form() != nil {
				return m, m.updateForm(msg)
			}
			return m, m.updateList(msg)
		}
	}
	return m, nil
}

// apply hands msg to the Shell and brings the widgets in line with the
// new state.
func (m *Model) apply(msg app.Msg) tea.Cmd {
	oldURL := m.shell.OAuthURL()
	cmd := m.run(m.shell.Update(msg))

	if u := m.shell.OAuthURL(); u != "" && u != oldURL && m.openURL != nil {
		if err := m.openURL(u); err != nil {
			m.logger.Warn("could not open browser", slog.String("error", err.Error()))
		}
	}
	m.syncLogin()
	m.syncForm()
	m.refreshList()
	return cmd
}

func (m *Model) updateLogin(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Next):
		m.focusLogin((m.loginFocus + 1) % loginFields)
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.focusLogin((m.loginFocus + loginFields - 1) % loginFields)
		return nil
	case key.Matches(msg, m.keys.GitHub):
		return m.run(m.shell.SignInWith("github"))
	case key.Matches(msg, m.keys.Google):
		return m.run(m.shell.SignInWith("google"))
	case key.Matches(msg, m.keys.Submit):
		if m.loginFocus == fieldEmail {
			m.focusLogin(fieldPassword)
			return nil
		}
		login := m.shell.Login()
		login.Email = m.email.Value()
		login.Password = m.password.Value()
		return m.run(m.shell.SubmitLogin())
	}

	var cmd tea.Cmd
	if m.loginFocus == fieldEmail {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m *Model) updateList(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.New):
		m.shell.OpenForm()
		m.syncForm()
		return nil
	case key.Matches(msg, m.keys.Reload):
		return m.run(m.shell.Reload())
	case key.Matches(msg, m.keys.SignOut):
		return m.run(m.shell.SignOut())
	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	form := m.shell.Form()

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.shell.CloseForm()
		m.syncForm()
		return nil
	case key.Matches(msg, m.keys.Save):
		m.copyToForm(form)
		cmd := m.shell.SubmitForm()
		m.refreshList()
		return m.run(cmd)
	case key.Matches(msg, m.keys.Next):
		m.focusForm((m.formFocus + 1) % formFields)
		return nil
	case key.Matches(msg, m.keys.Prev):
		m.focusForm((m.formFocus + formFields - 1) % formFields)
		return nil
	}

	if form.Pending() {
		return nil
	}

	var cmd tea.Cmd
	switch m.formFocus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldDescription:
		m.desc, cmd = m.desc.Update(msg)
	case fieldLanguage:
		switch {
		case key.Matches(msg, m.keys.LangNext):
			form.CycleLanguage(1)
		case key.Matches(msg, m.keys.LangPrev):
			form.CycleLanguage(-1)
		}
	case fieldCode:
		m.code, cmd = m.code.Update(msg)
	}
	m.copyToForm(form)
	return cmd
}

func (m *Model) copyToForm(form *app.Form) {
	form.Title = m.title.Value()
	form.Description = m.desc.Value()
	form.Code = m.code.Value()
}

// syncLogin clears the inputs when the Shell starts a new login form, which
// it does on every sign-in.
func (m *Model) syncLogin() {
	login := m.shell.Login()
	if login == m.lastLogin {
		return
	}
	m.lastLogin = login
	m.email.Reset()
	m.password.Reset()
	m.focusLogin(fieldEmail)
}

// syncForm resets the inputs when a different form opens.
func (m *Model) syncForm() {
	form := m.shell.Form()
	if form == m.lastForm {
		return
	}
	m.lastForm = form
	if form == nil {
		return
	}
	m.title.SetValue(form.Title)
	m.desc.SetValue(form.Description)
	m.code.SetValue(form.Code)
	m.focusForm(fieldTitle)
}

func (m *Model) focusLogin(field int) {
	m.loginFocus = field
	m.email.Blur()
	m.password.Blur()
	if field == fieldEmail {
		m.email.Focus()
	} else {
		m.password.Focus()
	}
}

func (m *Model) focusForm(field int) {
	m.formFocus = field
	m.title.Blur()
	m.desc.Blur()
	m.code.Blur()
	switch field {
	case fieldTitle:
		m.title.Focus()
	case fieldDescription:
		m.desc.Focus()
	case fieldCode:
		m.code.Focus()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width

	inner := max(width-6, 20)
	m.title.Width = inner
	m.desc.Width = inner
	m.code.SetWidth(inner)
	m.code.SetHeight(max(height-16, 5))

	m.list.Width = max(width-4, 20)
	m.list.Height = max(height-6, 5)
	m.refreshList()
}
