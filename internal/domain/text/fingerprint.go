package text

import (
	"regexp"
	"time"
)

// Intent is a coarse read of what kind of question the title asks.
type Intent string

const (
	IntentThreshold Intent = "threshold"
	IntentRange     Intent = "range"
	IntentUpDown    Intent = "updown"
	IntentWinner    Intent = "winner"
	IntentOccurs    Intent = "occurs"
	IntentUnknown   Intent = "unknown"
)

// Fingerprint is the venue-agnostic summary of a market title used by the
// generic (UNIVERSAL) pipeline and as a building block by topic extractors.
type Fingerprint struct {
	Tokens        []string   `json:"tokens"`
	Dates         []DateRef  `json:"dates"`
	Numbers       []Number   `json:"numbers"`
	Comparator    Comparator `json:"comparator"`
	Intent        Intent     `json:"intent"`
	MacroEntities []string   `json:"macro_entities,omitempty"`
}

var (
	reUpDown = regexp.MustCompile(`(?i)\b(up or down|higher or lower|rise or fall)\b`)
	reWinner = regexp.MustCompile(`(?i)\b(win(?:s|ner)?|elected|champion)\b`)
	reOccurs = regexp.MustCompile(`(?i)\b(will there be|happen|occurs?|announced?)\b`)
)

var macroEntityPatterns = map[string]*regexp.Regexp{
	"CPI":            regexp.MustCompile(`(?i)\b(cpi|consumer price|inflation)\b`),
	"GDP":            regexp.MustCompile(`(?i)\b(gdp|gross domestic)\b`),
	"NFP":            regexp.MustCompile(`(?i)\b(nonfarm|non-farm|nfp|payrolls)\b`),
	"UNEMPLOYMENT":   regexp.MustCompile(`(?i)\bunemployment\b`),
	"PCE":            regexp.MustCompile(`(?i)\bpce\b`),
	"PMI":            regexp.MustCompile(`(?i)\bpmi\b`),
	"JOBLESS_CLAIMS": regexp.MustCompile(`(?i)\bjobless claims\b`),
	"RETAIL_SALES":   regexp.MustCompile(`(?i)\bretail sales\b`),
	"FED_FUNDS":      regexp.MustCompile(`(?i)\b(fed funds|federal funds)\b`),
}

// ExtractIntent classifies the question shape of a title.
func ExtractIntent(title string) Intent {
	switch {
	case reUpDown.MatchString(title):
		return IntentUpDown
	case reBetween.MatchString(title):
		return IntentRange
	case reWinner.MatchString(title):
		return IntentWinner
	}
	if ExtractComparator(title) != CompUnknown {
		return IntentThreshold
	}
	if reOccurs.MatchString(title) {
		return IntentOccurs
	}
	return IntentUnknown
}

// ExtractMacroEntities returns the macro series a title mentions, in a
// stable order.
func ExtractMacroEntities(title string) []string {
	var out []string
	for _, name := range []string{"CPI", "GDP", "NFP", "UNEMPLOYMENT", "PCE", "PMI", "JOBLESS_CLAIMS", "RETAIL_SALES", "FED_FUNDS"} {
		if macroEntityPatterns[name].MatchString(title) {
			out = append(out, name)
		}
	}
	return out
}

// BuildFingerprint derives the full fingerprint of a title. When the title
// carries no date mention at all, the market's close time (if any) is folded
// in at day precision so date-less intraday titles still bucket.
func BuildFingerprint(title string, closeTime *time.Time, _ map[string]any) Fingerprint {
	fp := Fingerprint{
		Tokens:        Tokenize(title),
		Dates:         ExtractDates(title),
		Numbers:       ExtractNumbers(title),
		Comparator:    ExtractComparator(title),
		Intent:        ExtractIntent(title),
		MacroEntities: ExtractMacroEntities(title),
	}
	if len(fp.Dates) == 0 && closeTime != nil {
		ct := closeTime.UTC()
		fp.Dates = append(fp.Dates, DateRef{
			Year:      ct.Year(),
			Month:     int(ct.Month()),
			Day:       ct.Day(),
			Precision: PrecisionDay,
			Raw:       "closeTime",
		})
	}
	return fp
}
