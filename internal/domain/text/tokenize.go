// Package text holds the pure text primitives the matching engine is built
// on: tokenization, date/number/comparator extraction, ticker boundary
// matching and title fingerprints. Everything in this package is a pure
// function of its inputs.
package text

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the title, strips punctuation and collapses whitespace
// into a token sequence. Digits survive so thresholds stay comparable.
func Tokenize(title string) []string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// TokenSet returns the deduplicated token set of a title.
func TokenSet(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(title) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity of two token sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TitleSimilarity is the Jaccard similarity of two raw titles.
func TitleSimilarity(left, right string) float64 {
	return Jaccard(TokenSet(left), TokenSet(right))
}
