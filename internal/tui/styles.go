package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.AdaptiveColor{Light: "#4f46e5", Dark: "#818cf8"}
	muted   = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	danger  = lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#f87171"}
	border  = lipgloss.AdaptiveColor{Light: "#d1d5db", Dark: "#374151"}
)

// Styles groups the lipgloss styles the views use.
type Styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Badge    lipgloss.Style
	Card     lipgloss.Style
	Code     lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	Link     lipgloss.Style
	Spinner  lipgloss.Style
	Content  lipgloss.Style
	Selected lipgloss.Style
}

// DefaultStyles returns the default theme.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(primary).
			Padding(0, 2).
			Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Error: lipgloss.NewStyle().
			Foreground(danger).
			Bold(true),
		Badge: lipgloss.NewStyle().
			Foreground(primary).
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(border).
			Padding(0, 1),
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1).
			MarginBottom(1),
		Code: lipgloss.NewStyle().
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(border),
		Label: lipgloss.NewStyle().
			Foreground(muted).
			Bold(true),
		Focused: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Link: lipgloss.NewStyle().
			Foreground(primary).
			Underline(true),
		Spinner: lipgloss.NewStyle().
			Foreground(primary),
		Content: lipgloss.NewStyle().
			Padding(1, 2),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(primary).
			Padding(0, 1),
	}
}
