package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/model"
)

func TestVerbatim(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "fmt.Println(\"hi\")", want: "fmt.Println(\"hi\")"},
		{name: "keeps newlines and tabs", in: "if x {\n\treturn\n}", want: "if x {\n\treturn\n}"},
		{name: "escape sequence", in: "\x1b[31mred\x1b[0m", want: `\x1b[31mred\x1b[0m`},
		{name: "carriage return", in: "a\rb", want: `a\x0db`},
		{name: "crlf line endings", in: "a := 1\r\nb := 2\r\n", want: "a := 1\nb := 2\n"},
		{name: "cr before crlf", in: "a\r\r\n", want: "a\\x0d\n"},
		{name: "bell and nul", in: "\a\x00", want: `\x07\x00`},
		{name: "C1 control", in: "\u009b2J", want: `\x9b2J`},
		{name: "line separator", in: "a\u2028b", want: `a\u2028b`},
		{name: "unicode text", in: "héllo 世界 🚀", want: "héllo 世界 🚀"},
		{name: "html is not interpreted", in: "<script>alert(1)</script>", want: "<script>alert(1)</script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verbatim(tt.in))
		})
	}
}

func TestListView_Empty(t *testing.T) {
	v := ListView{}
	assert.True(t, v.Empty())
	assert.Empty(t, v.Cards())
	assert.Equal(t, "No snippets found. Start adding some cool code!", EmptyListMessage)
}

func TestListView_CardsKeepOrder(t *testing.T) {
	desc := "adds two numbers"
	v := ListView{Snippets: []model.Snippet{
		{ID: "2", Title: "newer", CodeContent: "a+b", Description: &desc, Language: "python", CreatedAt: time.Now()},
		{ID: "1", Title: "older\x1b]0;pwned\a", CodeContent: "x", Language: "go", CreatedAt: time.Now().Add(-time.Hour)},
	}}

	cards := v.Cards()
	require.Len(t, cards, 2)
	assert.False(t, v.Empty())

	assert.Equal(t, "2", cards[0].ID)
	assert.Equal(t, "newer", cards[0].Title)
	assert.Equal(t, "python", cards[0].Language)
	assert.Equal(t, "adds two numbers", cards[0].Description)
	assert.Equal(t, "a+b", cards[0].Code)

	assert.Equal(t, "1", cards[1].ID)
	assert.Equal(t, `older\x1b]0;pwned\x07`, cards[1].Title)
	assert.Empty(t, cards[1].Description)
}
