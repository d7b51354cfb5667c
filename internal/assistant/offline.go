package assistant

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pharmacore/pkg/domain"
)

// MaxMatches bounds the number of medicines listed in an offline answer.
const MaxMatches = 3

type phrases struct {
	intro, noMatch, found, stock, price string
}

var texts = map[Language]phrases{
	English: {
		intro:   "I am running in Offline Mode. I can only search your current inventory.",
		noMatch: "I couldn't find specific clinical info for that offline, but I can check your stock.",
		found:   "I found this in your stock:",
		stock:   "Stock",
		price:   "Price",
	},
	Arabic: {
		intro:   "أعمل في وضع عدم الاتصال. يمكنني فقط البحث في مخزونك الحالي.",
		noMatch: "لم أتمكن من العثور على معلومات سريرية محددة دون اتصال، ولكن يمكنني التحقق من توفر الدواء.",
		found:   "وجدت هذا في مخزونك:",
		stock:   "المخزون",
		price:   "السعر",
	},
}

// Offline answers by keyword matching against the inventory sample.
type Offline struct{}

// Respond implements Responder. It never fails.
func (Offline) Respond(_ context.Context, q Query) (string, error) {
	t, ok := texts[q.Language]
	if !ok {
		t = texts[English]
	}
	matches := Match(q.Prompt, q.Inventory)
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", t.intro)
	if len(matches) == 0 {
		b.WriteString(t.noMatch)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "%s\n\n", t.found)
	for _, m := range matches {
		fmt.Fprintf(&b, "- **%s** (%s)\n  %s: %d | %s: %s\n\n",
			m.Name, m.GenericName, t.stock, m.Stock, t.price, strconv.FormatFloat(m.Price, 'f', -1, 64))
	}
	return b.String(), nil
}

// Match returns up to MaxMatches medicines whose name or generic name occurs
// in prompt, or whose name contains the whole prompt. Comparison ignores case
// and empty names never match.
func Match(prompt string, inventory []domain.Medicine) []domain.Medicine {
	query := strings.ToLower(strings.TrimSpace(prompt))
	if query == "" {
		return nil
	}
	var out []domain.Medicine
	for _, m := range inventory {
		name := strings.ToLower(m.Name)
		generic := strings.ToLower(m.GenericName)
		if (name != "" && (strings.Contains(query, name) || strings.Contains(name, query))) ||
			(generic != "" && strings.Contains(query, generic)) {
			out = append(out, m)
			if len(out) == MaxMatches {
				break
			}
		}
	}
	return out
}
