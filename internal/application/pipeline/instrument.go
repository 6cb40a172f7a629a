package pipeline

import (
	"fmt"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// instrumentPipeline serves both COMMODITIES and FINANCE: one instrument, a
// level or range, and a timeframe. The two topics share extraction and
// scoring and differ only in which markets the classifier routes to them.
type instrumentPipeline struct {
	base
}

func newInstrumentPipeline(topic model.Topic) *instrumentPipeline {
	return &instrumentPipeline{base{
		topic:       topic,
		algoVersion: "v1.6.0",
		minScore:    0.60,
		autoReject:  true,
	}}
}

func (p *instrumentPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractInstrument(v.Market)
		if sig.Instrument == "" {
			continue
		}
		idx.Add(sig.InstrumentKey(), v)
		// Settle keys drift in precision across venues; the bare instrument
		// key is the fallback probe.
		idx.Add(string(sig.AssetClass)+"|"+sig.Instrument, v)
	}
	return idx
}

func (p *instrumentPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractInstrument(m.Market)
	if sig.Instrument == "" {
		return nil
	}
	var out []View
	seen := map[int64]struct{}{}
	add := func(views []View) {
		for _, v := range views {
			if _, dup := seen[v.Market.ID]; !dup {
				seen[v.Market.ID] = struct{}{}
				out = append(out, v)
			}
		}
	}
	add(idx[sig.InstrumentKey()])
	add(idx[string(sig.AssetClass)+"|"+sig.Instrument])
	return out
}

func (p *instrumentPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractInstrument(left.Market)
	r := signals.ExtractInstrument(right.Market)

	if l.Instrument == "" || l.Instrument != r.Instrument {
		return GateResult{FailReason: fmt.Sprintf("instrument mismatch: %s vs %s", orDash(l.Instrument), orDash(r.Instrument))}
	}
	if !l.Comparator.Compatible(r.Comparator) {
		return GateResult{FailReason: fmt.Sprintf("comparator contradiction: %s vs %s", l.Comparator, r.Comparator)}
	}
	if l.SettleKey != "" && r.SettleKey != "" && monthOfKey(l.SettleKey) != monthOfKey(r.SettleKey) {
		return GateResult{FailReason: fmt.Sprintf("settle mismatch: %s vs %s", l.SettleKey, r.SettleKey)}
	}
	return GateResult{Passed: true}
}

func (p *instrumentPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractInstrument(left.Market)
	r := signals.ExtractInstrument(right.Market)

	date := eqScore(l.SettleKey != "" && l.SettleKey == r.SettleKey)
	if date == 0 && monthOfKey(l.SettleKey) == monthOfKey(r.SettleKey) {
		date = 0.7
	}
	num := instrumentNumberScore(l, r)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"instrument", 0.40, eqScore(l.Instrument == r.Instrument)},
		{"date", 0.25, date},
		{"num", 0.20, num},
		{"text", 0.15, txt},
	}, 0)

	tier := TierWeak
	if l.SettleKey == r.SettleKey && num >= 0.6 {
		tier = TierStrong
	}

	header := "COMMODITIES"
	if p.topic == model.TopicFinance {
		header = "FINANCE"
	}
	reason := fmt.Sprintf("%s: tier=%s inst=%s settle=%s/%s date=%s num=%s text=%s",
		header, tier, l.Instrument, orDash(l.SettleKey), orDash(r.SettleKey), f2(date), f2(num), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *instrumentPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractInstrument(left.Market)
	r := signals.ExtractInstrument(right.Market)
	if l.Instrument != r.Instrument {
		return RejectDecision{Reject: true, Rule: "instrument_mismatch",
			Reason: fmt.Sprintf("%s vs %s", orDash(l.Instrument), orDash(r.Instrument))}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

func instrumentNumberScore(l, r signals.InstrumentSignals) float64 {
	if !l.HasTarget || !r.HasTarget {
		return 0.5
	}
	minL, maxL := l.Target, l.Target
	if l.RangeHigh != 0 {
		minL, maxL = l.RangeLow, l.RangeHigh
	}
	minR, maxR := r.Target, r.Target
	if r.RangeHigh != 0 {
		minR, maxR = r.RangeLow, r.RangeHigh
	}
	return text.NumberProximity(minL, maxL, minR, maxR)
}
