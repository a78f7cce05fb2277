// Package resolve normalizes company names and finds fuzzy candidates
// between a source name and a deduplicated target universe.
package resolve

import (
	"regexp"
	"strings"
)

// Normalizer builds comparison keys from raw company names by removing
// boilerplate terms (legal suffixes, generic business words).
type Normalizer struct {
	termsRe *regexp.Regexp
}

// NewNormalizer compiles the common terms into a single word-bounded,
// case-insensitive pattern. Terms are matched literally.
func NewNormalizer(commonTerms []string) *Normalizer {
	quoted := make([]string, 0, len(commonTerms))
	for _, term := range commonTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(term))
	}

	n := &Normalizer{}
	if len(quoted) > 0 {
		n.termsRe = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return n
}

// Normalize standardizes a company name for fuzzy comparison by:
//  1. Converting to lowercase
//  2. Removing every common term bounded by word edges
//  3. Collapsing whitespace runs into single spaces and trimming
//
// Steps 2 and 3 repeat until nothing changes, so Normalize is idempotent
// even for multi-word terms split by irregular spacing.
func (n *Normalizer) Normalize(name string) string {
	name = CollapseWhitespace(strings.ToLower(name))
	if name == "" || n.termsRe == nil {
		return name
	}

	for {
		stripped := CollapseWhitespace(n.termsRe.ReplaceAllString(name, ""))
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// CollapseWhitespace is the lightweight form used to pair judge output with
// the names sent to the judge. It keeps case and terms intact.
func CollapseWhitespace(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
