package app

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sakif/snippet-vault/internal/model"
)

// EmptyListMessage is shown instead of cards when there are no snippets.
const EmptyListMessage = "No snippets found. Start adding some cool code!"

// Card is one snippet prepared for display. Every field is safe to write to
// a terminal as is.
type Card struct {
	ID          string
	Title       string
	Language    string
	Description string // "" when the snippet has none
	Code        string
	CreatedAt   string
}

// ListView renders the snippet list in the order it is given.
type ListView struct {
	Snippets []model.Snippet
}

// Empty reports whether the empty-state message should be shown.
func (v ListView) Empty() bool {
	return len(v.Snippets) == 0
}

// Cards returns one card per snippet.
func (v ListView) Cards() []Card {
	cards := make([]Card, 0, len(v.Snippets))
	for _, s := range v.Snippets {
		cards = append(cards, Card{
			ID:          s.ID,
			Title:       Verbatim(s.Title),
			Language:    Verbatim(s.Language),
			Description: Verbatim(s.DescriptionText()),
			Code:        Verbatim(s.CodeContent),
			CreatedAt:   s.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return cards
}

// Verbatim makes s printable without letting it drive the terminal: control
// characters other than newline and tab are shown as escapes (ESC becomes
// `\x1b`), so code is displayed exactly as stored and never interpreted.
// CRLF line endings are shown as plain newlines; a lone CR is escaped.
func Verbatim(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.ContainsFunc(s, needsEscape) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case needsEscape(r) && r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case needsEscape(r):
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func needsEscape(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.IsControl(r) || r == '\u2028' || r == '\u2029'
}
