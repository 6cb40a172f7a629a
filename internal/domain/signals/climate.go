package signals

import (
	"regexp"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// ClimateKind is the weather or natural phenomenon a market settles on.
type ClimateKind string

const (
	ClimateHurricane   ClimateKind = "HURRICANE"
	ClimateTemperature ClimateKind = "TEMPERATURE"
	ClimateSnow        ClimateKind = "SNOW"
	ClimateRainfall    ClimateKind = "RAINFALL"
	ClimateDrought     ClimateKind = "DROUGHT"
	ClimateWildfire    ClimateKind = "WILDFIRE"
	ClimateFlood       ClimateKind = "FLOOD"
	ClimateEarthquake  ClimateKind = "EARTHQUAKE"
	ClimateVolcano     ClimateKind = "VOLCANO"
	ClimateOther       ClimateKind = "OTHER"
)

// ClimateSignals is the typed bundle for CLIMATE markets.
type ClimateSignals struct {
	Kind       ClimateKind     `json:"kind"`
	DateType   DateType        `json:"date_type"`
	SettleKey  string          `json:"settle_key,omitempty"` // normalized calendar key
	RegionKey  string          `json:"region_key,omitempty"`
	Thresholds []float64       `json:"thresholds,omitempty"`
	Comparator text.Comparator `json:"comparator"`
	Meta
}

var climatePatterns = []struct {
	kind ClimateKind
	re   *regexp.Regexp
}{
	{ClimateHurricane, regexp.MustCompile(`(?i)\b(hurricane|tropical storm|named storms?|cyclone)\b`)},
	{ClimateSnow, regexp.MustCompile(`(?i)\b(snow(?:fall)?|blizzard|white christmas)\b`)},
	{ClimateRainfall, regexp.MustCompile(`(?i)\b(rain(?:fall)?|precipitation)\b`)},
	{ClimateDrought, regexp.MustCompile(`(?i)\bdrought\b`)},
	{ClimateWildfire, regexp.MustCompile(`(?i)\b(wildfire|acres burned)\b`)},
	{ClimateFlood, regexp.MustCompile(`(?i)\bflood(?:ing)?\b`)},
	{ClimateEarthquake, regexp.MustCompile(`(?i)\b(earthquake|magnitude)\b`)},
	{ClimateVolcano, regexp.MustCompile(`(?i)\b(volcano|volcanic|erupt)\b`)},
	{ClimateTemperature, regexp.MustCompile(`(?i)\b(temperature|high temp|degrees|°f|°c|hottest|warmest|coldest|heat wave)\b`)},
}

var climateRegions = []string{
	"new york", "nyc", "los angeles", "chicago", "miami", "florida", "texas",
	"california", "atlantic", "gulf", "pacific", "denver", "seattle", "boston",
	"washington", "philadelphia", "austin", "phoenix", "london", "tokyo",
}

// ExtractClimate builds the climate bundle. The settle key is the normalized
// calendar key of the most precise date mention; markets without one fall
// back to the close-time day.
func ExtractClimate(m *model.Market) ClimateSignals {
	title := m.Title
	lower := strings.ToLower(title)
	sig := ClimateSignals{
		Kind:       ClimateOther,
		DateType:   DateUnknown,
		Comparator: text.ExtractComparator(title),
	}

	for _, cp := range climatePatterns {
		if cp.re.MatchString(title) {
			sig.Kind = cp.kind
			break
		}
	}

	if best, ok := text.BestDate(text.ExtractDates(title)); ok {
		sig.SettleKey = best.Key()
		switch best.Precision {
		case text.PrecisionDay:
			sig.DateType = DateDayExact
		case text.PrecisionMonth:
			sig.DateType = DateMonthEnd
		case text.PrecisionQuarter:
			sig.DateType = DateQuarter
		}
	} else if m.CloseTime != nil {
		sig.DateType = DateCloseTime
		sig.SettleKey = m.CloseTime.UTC().Format("2006-01-02")
	}

	for _, region := range climateRegions {
		if strings.Contains(lower, region) {
			sig.RegionKey = strings.ToUpper(strings.ReplaceAll(region, " ", "_"))
			break
		}
	}

	for _, n := range text.ExtractNumbers(title) {
		sig.Thresholds = append(sig.Thresholds, n.Value)
	}

	c := 0.0
	if sig.Kind != ClimateOther {
		c += 0.45
	}
	if sig.SettleKey != "" {
		c += 0.35
	}
	if sig.RegionKey != "" {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}
