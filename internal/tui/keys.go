package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	Next       key.Binding
	Prev       key.Binding
	Submit     key.Binding
	GitHub     key.Binding
	Google     key.Binding
	New        key.Binding
	Reload     key.Binding
	SignOut    key.Binding
	Save       key.Binding
	Cancel     key.Binding
	LangNext   key.Binding
	LangPrev   key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:       key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in")),
		GitHub:     key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "sign in with GitHub")),
		Google:     key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "sign in with Google")),
		New:        key.NewBinding(key.WithKeys("n", "a"), key.WithHelp("n", "new snippet")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		SignOut:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sign out")),
		Save:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		LangNext:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next language")),
		LangPrev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous language")),
		ScrollUp:   key.NewBinding(key.WithKeys("up", "k", "pgup")),
		ScrollDown: key.NewBinding(key.WithKeys("down", "j", "pgdown")),
	}
}

func (k keyMap) loginHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.GitHub, k.Google, k.Quit}
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.New, k.Reload, k.SignOut, k.Quit}
}

func (k keyMap) formHelp() []key.Binding {
	return []key.Binding{k.Next, k.LangNext, k.Save, k.Cancel}
}
