package pipeline

import (
	"fmt"
	"strconv"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// macroPipeline matches economic-release markets (CPI, NFP, GDP, ...).
// Periods rarely line up exactly across venues, hence the alignment-kind
// machinery instead of a flat date compare.
type macroPipeline struct {
	base
}

func newMacroPipeline() *macroPipeline {
	return &macroPipeline{base{
		topic:       model.TopicMacro,
		algoVersion: "v2.1.4",
		minScore:    0.60,
		autoConfirm: true,
		autoReject:  true,
	}}
}

// BuildIndex keys on entity|year: periods of different precision must still
// find each other, so the year is the widest key that keeps buckets small.
func (p *macroPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractMacro(v.Market)
		if sig.Entity == "" || sig.Year == 0 {
			continue
		}
		idx.Add(sig.Entity+"|"+strconv.Itoa(sig.Year), v)
	}
	return idx
}

func (p *macroPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractMacro(m.Market)
	if sig.Entity == "" || sig.Year == 0 {
		return nil
	}
	return idx[sig.Entity+"|"+strconv.Itoa(sig.Year)]
}

func (p *macroPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractMacro(left.Market)
	r := signals.ExtractMacro(right.Market)

	if l.Entity == "" || r.Entity == "" {
		return GateResult{FailReason: "macro entity missing"}
	}
	if l.Entity != r.Entity {
		return GateResult{FailReason: fmt.Sprintf("entity mismatch: %s vs %s", l.Entity, r.Entity)}
	}
	if !l.HasPeriod || !r.HasPeriod {
		return GateResult{FailReason: "period missing"}
	}
	if signals.AlignPeriods(l.Period, r.Period) == signals.PeriodMismatch {
		return GateResult{FailReason: fmt.Sprintf("period mismatch: %s vs %s", l.Period.Key(), r.Period.Key())}
	}
	if !l.Comparator.Compatible(r.Comparator) {
		return GateResult{FailReason: fmt.Sprintf("comparator contradiction: %s vs %s", l.Comparator, r.Comparator)}
	}
	return GateResult{Passed: true}
}

func (p *macroPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractMacro(left.Market)
	r := signals.ExtractMacro(right.Market)

	kind := signals.AlignPeriods(l.Period, r.Period)
	per := signals.PeriodScore(kind)
	num := macroNumberScore(l.Numbers, r.Numbers)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"me", 0.50, eqScore(l.Entity == r.Entity)},
		{"per", 0.35, per},
		{"num", 0.10, num},
		{"txt", 0.05, txt},
	}, 0)

	tier := TierWeak
	switch kind {
	case signals.PeriodExact, signals.PeriodMonthInQuarter, signals.PeriodQuarterInYear:
		// These alignments pin the same release; month_in_year does not.
		if num >= 0.6 {
			tier = TierStrong
		}
	}

	reason := fmt.Sprintf("MACRO: tier=%s me=%s per=%s[%s](%s/%s) num=%s txt=%s",
		tier, f2(breakdown["me"]), f2(per), kind, l.Period.Key(), r.Period.Key(), f2(num), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

// ShouldAutoConfirm mirrors the macro safe-confirm pack: STRONG tier with a
// period kind that pins the same release. month_in_year's 0.18 period score
// sits under the 0.22 floor and never confirms.
func (p *macroPipeline) ShouldAutoConfirm(left, right View, s *ScoreResult) ConfirmDecision {
	if s == nil || s.Tier != TierStrong {
		return ConfirmDecision{}
	}
	l := signals.ExtractMacro(left.Market)
	r := signals.ExtractMacro(right.Market)
	kind := signals.AlignPeriods(l.Period, r.Period)
	switch kind {
	case signals.PeriodExact, signals.PeriodMonthInQuarter, signals.PeriodQuarterInYear:
	default:
		return ConfirmDecision{}
	}
	if s.Components["me"] < 0.50 || s.Components["per"] < 0.22 || s.Components["txt"] < 0.10 {
		return ConfirmDecision{}
	}
	return ConfirmDecision{Confirm: true, Rule: "strong_period_" + string(kind), Confidence: s.Score}
}

func (p *macroPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractMacro(left.Market)
	r := signals.ExtractMacro(right.Market)
	if l.Entity != r.Entity {
		return RejectDecision{Reject: true, Rule: "entity_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Entity, r.Entity)}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

func macroNumberScore(l, r []text.Number) float64 {
	minL, maxL, okL := text.NumberRange(l)
	minR, maxR, okR := text.NumberRange(r)
	if !okL || !okR {
		// Release markets often carry no threshold at all; neutral rather
		// than punitive.
		return 0.5
	}
	return text.NumberProximity(minL, maxL, minR, maxR)
}
