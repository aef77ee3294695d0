package query

import (
	"regexp"
	"strings"
)

// Splits on whitespace while keeping double-quoted phrases intact, so
// `my "best friends"` yields tokens ["my", "best friends"].
var searchTokenPattern = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// SearchTerms tokenizes a free-text search string. Quotes are stripped
// from phrase tokens and empty tokens are dropped.
func SearchTerms(s string) []string {
	matches := searchTokenPattern.FindAllStringSubmatch(strings.TrimSpace(s), -1)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		term := m[2]
		if strings.HasPrefix(m[0], `"`) {
			term = m[1]
		}
		term = strings.TrimSpace(term)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
