package arbiter

import (
	"strings"
	"unicode/utf8"

	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/pkg/box"
)

// Payload is the user-supplied content of a claim.
type Payload struct {
	OwnerLabel string        `json:"owner_label"`
	Title      string        `json:"title"`
	Attribute  box.Attribute `json:"attribute"`
	Category   string        `json:"category,omitempty"`
	Origin     string        `json:"origin,omitempty"`
	Note       string        `json:"note,omitempty"`
}

var markup = strings.NewReplacer("<", "", ">", "")

// sanitizeText removes angle brackets, trims surrounding whitespace and caps
// the result at limit runes.
func sanitizeText(s string, limit int) string {
	s = strings.TrimSpace(markup.Replace(s))
	if utf8.RuneCountInString(s) > limit {
		s = strings.TrimSpace(string([]rune(s)[:limit]))
	}
	return s
}

// Sanitize returns a copy of the payload with every free-text field cleaned.
// The attribute is left untouched; it is validated, not rewritten.
func (p Payload) Sanitize(limits config.LimitsConfig) Payload {
	return Payload{
		OwnerLabel: sanitizeText(p.OwnerLabel, limits.OwnerLabel),
		Title:      sanitizeText(p.Title, limits.Title),
		Attribute:  p.Attribute,
		Category:   sanitizeText(p.Category, limits.Category),
		Origin:     sanitizeText(p.Origin, limits.Origin),
		Note:       sanitizeText(p.Note, limits.Note),
	}
}

// normalizeTitle is the form titles are compared in.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
