package resolve

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// indelParams prices a substitution as a deletion plus an insertion, which
// turns the Levenshtein distance into the indel distance.
var indelParams = levenshtein.NewParams().SubCost(2)

// Ratio returns the normalized indel similarity of two strings in [0,100].
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	dist := levenshtein.Distance(a, b, indelParams)
	return 100 * (1 - float64(dist)/float64(total))
}

// TokenSortRatio compares two strings after sorting their whitespace-separated
// tokens, so word order does not affect the score.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
