package bot

import (
	"regexp"
	"slices"
	"strings"
)

// BuildWordRegex creates a case-insensitive regex matching any of words as a
// whole word anywhere in the text. Words are sorted longest first so
// multi-word phrases win over their prefixes. Panics if words is empty.
//
//	re := BuildWordRegex([]string{"hi", "hello"})
//	re.FindString("well HELLO there") // "HELLO"
//	re.FindString("this")             // "" (no word boundary)
func BuildWordRegex(words []string) *regexp.Regexp {
	if len(words) == 0 {
		panic("BuildWordRegex: words cannot be empty")
	}

	sorted := make([]string, len(words))
	for i, w := range words {
		sorted[i] = regexp.QuoteMeta(w)
	}
	slices.SortFunc(sorted, func(a, b string) int {
		return len(b) - len(a)
	})

	return regexp.MustCompile(`(?i)\b(` + strings.Join(sorted, "|") + `)\b`)
}

// ContainsAnyFold reports whether the lowercased text contains any of substrs.
// substrs must already be lowercase.
func ContainsAnyFold(text string, substrs []string) bool {
	lower := strings.ToLower(text)
	return slices.ContainsFunc(substrs, func(s string) bool {
		return strings.Contains(lower, s)
	})
}
