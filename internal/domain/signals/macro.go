package signals

import (
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// PeriodKind describes how two macro reporting periods align. It is a
// property of a pair, not of one market, and is what the reason grammar
// carries as [<kind>].
type PeriodKind string

const (
	PeriodExact          PeriodKind = "exact"
	PeriodMonthInQuarter PeriodKind = "month_in_quarter"
	PeriodQuarterInYear  PeriodKind = "quarter_in_year"
	PeriodMonthInYear    PeriodKind = "month_in_year"
	PeriodMismatch       PeriodKind = "mismatch"
	PeriodUnknown        PeriodKind = "unknown"
)

// MacroSignals is the typed bundle for MACRO markets.
type MacroSignals struct {
	Entity     string          `json:"entity,omitempty"` // CPI, GDP, NFP, ...
	Period     text.DateRef    `json:"period"`
	HasPeriod  bool            `json:"has_period"`
	Year       int             `json:"year,omitempty"`
	Numbers    []text.Number   `json:"numbers,omitempty"`
	Comparator text.Comparator `json:"comparator"`
	Meta
}

// ExtractMacro builds the macro bundle: the strongest macro entity mention,
// the most precise reporting period and the threshold numbers.
func ExtractMacro(m *model.Market) MacroSignals {
	sig := MacroSignals{
		Comparator: text.ExtractComparator(m.Title),
		Numbers:    text.ExtractNumbers(m.Title),
	}
	if ents := text.ExtractMacroEntities(m.Title); len(ents) > 0 {
		sig.Entity = ents[0]
	}
	if best, ok := text.BestDate(text.ExtractDates(m.Title)); ok {
		sig.Period = best
		sig.HasPeriod = true
		sig.Year = best.Year
	} else if m.CloseTime != nil {
		ct := m.CloseTime.UTC()
		sig.Period = text.DateRef{Year: ct.Year(), Month: int(ct.Month()), Precision: text.PrecisionMonth, Raw: "closeTime"}
		sig.HasPeriod = true
		sig.Year = ct.Year()
	}

	c := 0.0
	if sig.Entity != "" {
		c += 0.6
	}
	if sig.HasPeriod {
		c += 0.4
	}
	sig.Meta = metaFor(m.Title, c, "")
	return sig
}

// AlignPeriods classifies how two reporting periods relate. STRONG-tier
// alignment is exact, month_in_quarter or quarter_in_year; month_in_year is
// deliberately weaker.
func AlignPeriods(l, r text.DateRef) PeriodKind {
	if l.Year != r.Year {
		return PeriodMismatch
	}
	if l.Precision == r.Precision {
		if l.Key() == r.Key() {
			return PeriodExact
		}
		return PeriodMismatch
	}
	// Normalize so l is the finer side.
	order := map[text.DatePrecision]int{
		text.PrecisionDay: 0, text.PrecisionMonth: 1, text.PrecisionQuarter: 2, text.PrecisionYear: 3,
	}
	if order[l.Precision] > order[r.Precision] {
		l, r = r, l
	}
	switch {
	case l.Precision == text.PrecisionDay && r.Precision == text.PrecisionMonth:
		if l.Month == r.Month {
			return PeriodExact
		}
		return PeriodMismatch
	case l.Precision == text.PrecisionMonth && r.Precision == text.PrecisionQuarter:
		if (l.Month-1)/3+1 == r.Quarter {
			return PeriodMonthInQuarter
		}
		return PeriodMismatch
	case l.Precision == text.PrecisionQuarter && r.Precision == text.PrecisionYear:
		return PeriodQuarterInYear
	case l.Precision == text.PrecisionMonth && r.Precision == text.PrecisionYear:
		return PeriodMonthInYear
	case l.Precision == text.PrecisionDay && r.Precision == text.PrecisionQuarter:
		if (l.Month-1)/3+1 == r.Quarter {
			return PeriodMonthInQuarter
		}
		return PeriodMismatch
	case l.Precision == text.PrecisionDay && r.Precision == text.PrecisionYear:
		return PeriodMonthInYear
	}
	return PeriodUnknown
}

// PeriodScore is the period sub-score for an alignment kind. month_in_year
// scores 0.18, below the 0.22 safe-confirm floor, keeping it out of STRONG
// on purpose.
func PeriodScore(kind PeriodKind) float64 {
	switch kind {
	case PeriodExact:
		return 1.0
	case PeriodMonthInQuarter:
		return 0.55
	case PeriodQuarterInYear:
		return 0.40
	case PeriodMonthInYear:
		return 0.18
	default:
		return 0
	}
}
