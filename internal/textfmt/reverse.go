// Package textfmt reverses user text without breaking formatting markers or
// multi-rune characters apart.
//
// Token grammar used by FormatReverser:
//   - a configured formatting token ("```", "**", "__", "~~" by default),
//     matched longest first, is one unit;
//   - otherwise a unit is one base rune followed by any combining marks,
//     variation selectors or emoji skin-tone modifiers, extended across
//     zero-width joiners; two regional indicators form one flag.
package textfmt

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Reverser transforms text for the fallback echo reply.
type Reverser interface {
	Reverse(text string) string
}

// DefaultTokens are the markdown-style markers kept intact by default.
var DefaultTokens = []string{"```", "**", "__", "~~"}

const zeroWidthJoiner = '\u200d'

// FormatReverser reverses text unit by unit.
type FormatReverser struct {
	tokens []string
}

// NewFormatReverser returns a reverser that keeps tokens atomic.
// With no tokens, DefaultTokens are used.
func NewFormatReverser(tokens ...string) *FormatReverser {
	if len(tokens) == 0 {
		tokens = DefaultTokens
	}
	sorted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok != "" {
			sorted = append(sorted, tok)
		}
	}
	// Longest first so "```" wins over a hypothetical "``"
	slices.SortStableFunc(sorted, func(a, b string) int {
		return len(b) - len(a)
	})
	return &FormatReverser{tokens: sorted}
}

// Reverse returns the units of text in reverse order.
func (r *FormatReverser) Reverse(text string) string {
	if text == "" {
		return ""
	}
	units := r.Split(text)
	slices.Reverse(units)
	return strings.Join(units, "")
}

// Split breaks NFC-normalised text into atomic units.
func (r *FormatReverser) Split(text string) []string {
	text = norm.NFC.String(text)
	units := make([]string, 0, len(text))

	for i := 0; i < len(text); {
		if tok := r.tokenAt(text[i:]); tok != "" {
			units = append(units, tok)
			i += len(tok)
			continue
		}
		n := clusterLen(text[i:])
		units = append(units, text[i:i+n])
		i += n
	}
	return units
}

func (r *FormatReverser) tokenAt(s string) string {
	for _, tok := range r.tokens {
		if strings.HasPrefix(s, tok) {
			return tok
		}
	}
	return ""
}

// clusterLen returns the byte length of the unit starting at s[0].
func clusterLen(s string) int {
	first, size := utf8.DecodeRuneInString(s)
	n := size

	if isRegionalIndicator(first) {
		if next, sz := utf8.DecodeRuneInString(s[n:]); isRegionalIndicator(next) {
			n += sz
		}
	}

	for n < len(s) {
		next, sz := utf8.DecodeRuneInString(s[n:])
		switch {
		case isExtender(next):
			n += sz
		case next == zeroWidthJoiner:
			n += sz
			// The joined rune belongs to this unit too
			if n < len(s) {
				_, joined := utf8.DecodeRuneInString(s[n:])
				n += joined
			}
		default:
			return n
		}
	}
	return n
}

func isExtender(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Me, unicode.Mc) ||
		unicode.Is(unicode.Variation_Selector, r) ||
		(r >= 0x1F3FB && r <= 0x1F3FF) // skin tone modifiers
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}
