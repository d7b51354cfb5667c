// Package assistant answers free-text questions about the pharmacy stock.
// Responders only read the inventory sample handed to them; they have no
// path back into the core service.
package assistant

import (
	"context"
	"strings"

	"pharmacore/pkg/domain"
)

// Language selects the response string table.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// ParseLanguage maps s to a supported language, defaulting to English.
func ParseLanguage(s string) Language {
	if Language(strings.ToLower(strings.TrimSpace(s))) == Arabic {
		return Arabic
	}
	return English
}

// Query is one assistant request.
type Query struct {
	Prompt    string            `json:"prompt"`
	Language  Language          `json:"language"`
	Inventory []domain.Medicine `json:"-"`
}

// Responder produces an answer for a query.
type Responder interface {
	Respond(ctx context.Context, q Query) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, q Query) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, q Query) (string, error) { return f(ctx, q) }

// Noop answers every query with an empty string.
type Noop struct{}

// Respond implements Responder.
func (Noop) Respond(context.Context, Query) (string, error) { return "", nil }
