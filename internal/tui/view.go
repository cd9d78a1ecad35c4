package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/snippet-vault/internal/app"
)

// View renders the current screen.
func (m *Model) View() string {
	var body string
	switch m.shell.Phase() {
	case app.Bootstrapping:
		body = m.spinner.View() + " Checking your session..."
	case app.Unauthenticated:
		body = m.loginView()
	case app.Authenticated:
		if m.shell.Form() != nil {
			body = m.formView()
		} else {
			body = m.listView()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.styles.Content.Render(body),
	)
}

func (m *Model) headerView() string {
	title := "Snippet Vault"
	if u := m.shell.User(); u != nil {
		title += "  ·  " + app.Verbatim(u.Name())
	}
	style := m.styles.Header
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(title)
}

func (m *Model) loginView() string {
	var b strings.Builder
	login := m.shell.Login()

	b.WriteString(m.styles.Title.Render("Sign in"))
	b.WriteString("\n\n")
	b.WriteString(m.label("Email", m.loginFocus == fieldEmail))
	b.WriteString("\n" + m.email.View() + "\n\n")
	b.WriteString(m.label("Password", m.loginFocus == fieldPassword))
	b.WriteString("\n" + m.password.View() + "\n")

	if login.Pending() {
		b.WriteString("\n" + m.spinner.View() + " Signing in...\n")
	}
	if msg := login.Err(); msg != "" {
		b.WriteString("\n" + m.styles.Error.Render(msg) + "\n")
	}
	if msg := m.shell.AuthErr(); msg != "" {
		b.WriteString("\n" + m.styles.Error.Render(msg) + "\n")
	}
	if u := m.shell.OAuthURL(); u != "" {
		b.WriteString("\nContinue in your browser. If it did not open, visit:\n")
		b.WriteString(m.styles.Link.Render(u) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.loginHelp()))
	return b.String()
}

func (m *Model) listView() string {
	var b strings.Builder

	status := m.styles.Title.Render("My snippets")
	if m.shell.Loading() {
		status += " " + m.spinner.View()
	}
	b.WriteString(status + "\n\n")

	if msg := m.shell.ListErr(); msg != "" {
		b.WriteString(m.styles.Error.Render("Could not load snippets: "+msg) + "\n\n")
	}
	if msg := m.shell.AuthErr(); msg != "" {
		b.WriteString(m.styles.Error.Render(msg) + "\n\n")
	}

	b.WriteString(m.list.View())
	b.WriteString("\n" + m.help.ShortHelpView(m.keys.listHelp()))
	return b.String()
}

// refreshList re-renders the cards into the viewport.
func (m *Model) refreshList() {
	view := m.shell.List()
	if view.Empty() {
		if m.shell.Loading() {
			m.list.SetContent("")
		} else {
			m.list.SetContent(m.styles.Muted.Render(app.EmptyListMessage))
		}
		return
	}

	cards := view.Cards()
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		rendered = append(rendered, m.cardView(c))
	}
	m.list.SetContent(lipgloss.JoinVertical(lipgloss.Left, rendered...))
}

func (m *Model) cardView(c app.Card) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(c.Title))
	b.WriteString(" " + m.styles.Badge.Render(c.Language))
	b.WriteString(" " + m.styles.Muted.Render(c.CreatedAt))
	if c.Description != "" {
		b.WriteString("\n" + m.styles.Muted.Render(c.Description))
	}
	b.WriteString("\n\n" + m.styles.Code.Render(c.Code))

	style := m.styles.Card
	if m.list.Width > 0 {
		style = style.Width(m.list.Width - 2)
	}
	return style.Render(b.String())
}

func (m *Model) formView() string {
	var b strings.Builder
	form := m.shell.Form()

	b.WriteString(m.styles.Title.Render("New snippet"))
	b.WriteString("\n\n")
	b.WriteString(m.label("Title", m.formFocus == fieldTitle))
	b.WriteString("\n" + m.title.View() + "\n\n")
	b.WriteString(m.label("Description", m.formFocus == fieldDescription))
	b.WriteString("\n" + m.desc.View() + "\n\n")
	b.WriteString(m.label("Language", m.formFocus == fieldLanguage))
	b.WriteString("\n" + m.languageView(form.Language, m.formFocus == fieldLanguage) + "\n\n")
	b.WriteString(m.label("Code", m.formFocus == fieldCode))
	b.WriteString("\n" + m.code.View() + "\n")

	if form.Pending() {
		b.WriteString("\n" + m.spinner.View() + " Saving...\n")
	}
	if msg := form.Err(); msg != "" {
		b.WriteString("\n" + m.styles.Error.Render(msg) + "\n")
	}

	b.WriteString("\n" + m.help.ShortHelpView(m.keys.formHelp()))
	return b.String()
}

func (m *Model) languageView(lang string, focused bool) string {
	if focused {
		return fmt.Sprintf("‹ %s ›", m.styles.Selected.Render(lang))
	}
	return "  " + lang
}

func (m *Model) label(text string, focused bool) string {
	if focused {
		return m.styles.Focused.Render("› " + text)
	}
	return m.styles.Label.Render("  " + text)
}
