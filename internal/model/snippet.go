// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// DefaultLanguage is preselected in the creation form and used by the
// platform when an insert omits the language.
const DefaultLanguage = "javascript"

// Languages is the closed set of recognised snippet languages, most common first.
var Languages = []string{
	"javascript",
	"typescript",
	"python",
	"java",
	"cpp",
	"csharp",
	"go",
	"rust",
	"php",
	"ruby",
	"swift",
	"kotlin",
	"sql",
	"html",
	"css",
	"bash",
	"json",
	"xml",
	"yaml",
	"markdown",
}

// IsLanguage reports whether lang is one of Languages.
func IsLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Snippet represents a saved code snippet owned by exactly one user.
//
// The `json:"..."` tags use the snake_case column names of the snippets
// collection, so the same struct travels over the wire and scans from SQL
// (`db:"..."` tags are read by sqlx).
//
// Description is a pointer because the column is nullable: an empty
// description is stored as NULL, not as "".
type Snippet struct {
	ID          string    `json:"id"           db:"id"`
	UserID      string    `json:"user_id"      db:"user_id"`
	Title       string    `json:"title"        db:"title"`
	CodeContent string    `json:"code_content" db:"code_content"`
	Description *string   `json:"description"  db:"description"`
	Language    string    `json:"language"     db:"language"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// DescriptionText returns the description or "" when it is NULL.
func (s Snippet) DescriptionText() string {
	if s.Description == nil {
		return ""
	}
	return *s.Description
}
