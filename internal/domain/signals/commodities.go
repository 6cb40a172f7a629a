package signals

import (
	"regexp"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// AssetClass groups instruments for the COMMODITIES and FINANCE pipelines.
type AssetClass string

const (
	AssetEnergy   AssetClass = "ENERGY"
	AssetMetals   AssetClass = "METALS"
	AssetAgri     AssetClass = "AGRICULTURE"
	AssetEquities AssetClass = "EQUITIES"
	AssetFX       AssetClass = "FX"
	AssetUnknown  AssetClass = ""
)

// InstrumentSignals is the shared typed bundle for COMMODITIES and FINANCE
// markets: one instrument, a target level or range, and a timeframe.
type InstrumentSignals struct {
	AssetClass AssetClass      `json:"asset_class,omitempty"`
	Instrument string          `json:"instrument,omitempty"` // WTI, GOLD, SPX, ...
	Direction  string          `json:"direction,omitempty"`  // up | down
	Target     float64         `json:"target,omitempty"`
	RangeLow   float64         `json:"range_low,omitempty"`
	RangeHigh  float64         `json:"range_high,omitempty"`
	HasTarget  bool            `json:"has_target"`
	SettleKey  string          `json:"settle_key,omitempty"`
	Timeframe  string          `json:"timeframe,omitempty"` // day, month, quarter, year
	Comparator text.Comparator `json:"comparator"`
	Meta
}

var instrumentPatterns = []struct {
	class      AssetClass
	instrument string
	re         *regexp.Regexp
}{
	{AssetEnergy, "WTI", regexp.MustCompile(`(?i)\b(wti|crude oil|oil price)\b`)},
	{AssetEnergy, "BRENT", regexp.MustCompile(`(?i)\bbrent\b`)},
	{AssetEnergy, "NATGAS", regexp.MustCompile(`(?i)\bnatural gas\b`)},
	{AssetEnergy, "GASOLINE", regexp.MustCompile(`(?i)\b(gasoline|gas price)\b`)},
	{AssetMetals, "GOLD", regexp.MustCompile(`(?i)\bgold\b`)},
	{AssetMetals, "SILVER", regexp.MustCompile(`(?i)\bsilver\b`)},
	{AssetMetals, "COPPER", regexp.MustCompile(`(?i)\bcopper\b`)},
	{AssetAgri, "WHEAT", regexp.MustCompile(`(?i)\bwheat\b`)},
	{AssetAgri, "CORN", regexp.MustCompile(`(?i)\bcorn\b`)},
	{AssetEquities, "SPX", regexp.MustCompile(`(?i)\b(s&p ?500|spx)\b`)},
	{AssetEquities, "NASDAQ", regexp.MustCompile(`(?i)\b(nasdaq|ndx)\b`)},
	{AssetEquities, "DOW", regexp.MustCompile(`(?i)\b(dow jones|djia|the dow)\b`)},
	{AssetFX, "EURUSD", regexp.MustCompile(`(?i)\b(eur\/usd|euro against)\b`)},
	{AssetFX, "USDJPY", regexp.MustCompile(`(?i)\busd\/jpy\b`)},
}

// ExtractInstrument builds the commodities/finance bundle from a title.
func ExtractInstrument(m *model.Market) InstrumentSignals {
	title := m.Title
	sig := InstrumentSignals{Comparator: text.ExtractComparator(title)}

	for _, ip := range instrumentPatterns {
		if ip.re.MatchString(title) {
			sig.AssetClass = ip.class
			sig.Instrument = ip.instrument
			break
		}
	}

	switch sig.Comparator {
	case text.CompGE:
		sig.Direction = "up"
	case text.CompLE:
		sig.Direction = "down"
	}

	nums := text.ExtractNumbers(title)
	if min, max, ok := text.NumberRange(nums); ok {
		sig.HasTarget = true
		if sig.Comparator == text.CompBetween && min != max {
			sig.RangeLow, sig.RangeHigh = min, max
		} else {
			sig.Target = max
		}
	}

	if best, ok := text.BestDate(text.ExtractDates(title)); ok {
		sig.SettleKey = best.Key()
		sig.Timeframe = string(best.Precision)
	} else if m.CloseTime != nil {
		sig.SettleKey = m.CloseTime.UTC().Format("2006-01-02")
		sig.Timeframe = string(text.PrecisionDay)
	}

	c := 0.0
	if sig.Instrument != "" {
		c += 0.5
	}
	if sig.HasTarget {
		c += 0.3
	}
	if sig.SettleKey != "" {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}

// InstrumentKey is the index key: class|instrument|settleKey.
func (s InstrumentSignals) InstrumentKey() string {
	return strings.Join([]string{string(s.AssetClass), s.Instrument, s.SettleKey}, "|")
}
