package text

import (
	"regexp"
	"strings"
)

// Comparator is the canonical threshold direction of a market question.
type Comparator string

const (
	CompGE      Comparator = "GE"
	CompLE      Comparator = "LE"
	CompEQ      Comparator = "EQ"
	CompBetween Comparator = "BETWEEN"
	CompUnknown Comparator = "UNKNOWN"
)

// Compatible reports whether two comparators can describe the same question.
// UNKNOWN is compatible with anything; GE vs LE is a contradiction.
func (c Comparator) Compatible(other Comparator) bool {
	if c == CompUnknown || other == CompUnknown {
		return true
	}
	if (c == CompGE && other == CompLE) || (c == CompLE && other == CompGE) {
		return false
	}
	return true
}

var (
	reBetween = regexp.MustCompile(`(?i)\b(between|range)\b`)
	reGE      = regexp.MustCompile(`(?i)(\babove\b|\bover\b|\bexceeds?\b|\bhigher than\b|\bat least\b|\breach(?:es)?\b|≥|>=|>)`)
	reLE      = regexp.MustCompile(`(?i)(\bbelow\b|\bunder\b|\bless than\b|\blower than\b|\bat most\b|≤|<=|<)`)
	reEQ      = regexp.MustCompile(`(?i)(\bexactly\b|\bequal to\b)`)
)

// ExtractComparator collapses threshold aliases to the canonical enum.
// BETWEEN wins over the directional words because range titles often carry
// both ("between $99k and $101k").
func ExtractComparator(title string) Comparator {
	s := strings.ToLower(title)
	switch {
	case reBetween.MatchString(s):
		return CompBetween
	case reEQ.MatchString(s):
		return CompEQ
	case reGE.MatchString(s):
		return CompGE
	case reLE.MatchString(s):
		return CompLE
	default:
		return CompUnknown
	}
}
