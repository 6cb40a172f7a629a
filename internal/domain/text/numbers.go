package text

import (
	"regexp"
	"strconv"
	"strings"
)

// Number is one numeric mention extracted from a title, normalized by the
// suffix table (k/m/b/t) and flagged when it was written as money or percent.
type Number struct {
	Value     float64 `json:"value"`
	IsMoney   bool    `json:"is_money"`
	IsPercent bool    `json:"is_percent"`
	Raw       string  `json:"raw"`
}

var suffixMultipliers = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
	"t": 1e12,
}

// Matches an optional $, digits with optional thousands separators and
// decimals, then an optional magnitude suffix or percent sign.
var reNumber = regexp.MustCompile(`(?i)(\$)?\s?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s?(k|m|b|t)?\b\s?(%)?`)

// ExtractNumbers pulls every numeric mention from a title. Four-digit bare
// years are skipped; they belong to ExtractDates.
func ExtractNumbers(title string) []Number {
	var out []Number
	for _, m := range reNumber.FindAllStringSubmatch(title, -1) {
		dollar := m[1] == "$"
		digits := strings.ReplaceAll(m[2], ",", "")
		suffix := strings.ToLower(m[3])
		percent := m[4] == "%"

		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		if mult, ok := suffixMultipliers[suffix]; ok {
			v *= mult
		}
		// Bare 4-digit integers in the year range read as dates, not levels.
		if !dollar && !percent && suffix == "" && looksLikeYear(digits) {
			continue
		}
		out = append(out, Number{
			Value:     v,
			IsMoney:   dollar,
			IsPercent: percent,
			Raw:       strings.TrimSpace(m[0]),
		})
	}
	return out
}

// NumberRange returns the (min, max) of the extracted values, ignoring
// percents when any money value is present so "$100k with 90% odds" keys on
// the price.
func NumberRange(nums []Number) (min, max float64, ok bool) {
	money := false
	for _, n := range nums {
		if n.IsMoney {
			money = true
			break
		}
	}
	for _, n := range nums {
		if money && n.IsPercent {
			continue
		}
		if !ok {
			min, max, ok = n.Value, n.Value, true
			continue
		}
		if n.Value < min {
			min = n.Value
		}
		if n.Value > max {
			max = n.Value
		}
	}
	return min, max, ok
}

// NumberProximity scores how close two single values are: 1.0 when ranges
// overlap, then 0.9 / 0.7 / 0.4 as the relative gap passes 1% / 5% / 10%.
func NumberProximity(minL, maxL, minR, maxR float64) float64 {
	if minL <= maxR && minR <= maxL {
		return 1.0
	}
	var gap float64
	if maxL < minR {
		gap = minR - maxL
	} else {
		gap = minL - maxR
	}
	base := maxAbs(maxL, maxR)
	if base == 0 {
		return 0
	}
	rel := gap / base
	switch {
	case rel < 0.01:
		return 0.9
	case rel < 0.05:
		return 0.7
	case rel < 0.10:
		return 0.4
	default:
		return 0
	}
}

func maxAbs(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

func looksLikeYear(digits string) bool {
	if len(digits) != 4 {
		return false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return false
	}
	return v >= 1900 && v <= 2099
}
