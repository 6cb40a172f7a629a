package pipeline

import (
	"fmt"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// climatePipeline matches weather and natural-phenomenon markets. The settle
// key carries most of the signal; regions disagree in granularity across
// venues ("Miami" vs "Florida"), so region only gates when both sides name one.
type climatePipeline struct {
	base
}

func newClimatePipeline() *climatePipeline {
	return &climatePipeline{base{
		topic:       model.TopicClimate,
		algoVersion: "v1.1.0",
		minScore:    0.60,
		autoReject:  true,
	}}
}

// BuildIndex keys on kind|settleKey, with a kind|month fallback so a
// day-keyed market still finds its month-keyed counterpart.
func (p *climatePipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractClimate(v.Market)
		if sig.Kind == signals.ClimateOther || sig.SettleKey == "" {
			continue
		}
		idx.Add(string(sig.Kind)+"|"+sig.SettleKey, v)
		if month := monthOfKey(sig.SettleKey); month != sig.SettleKey {
			idx.Add(string(sig.Kind)+"|m:"+month, v)
		}
	}
	return idx
}

func (p *climatePipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractClimate(m.Market)
	if sig.Kind == signals.ClimateOther || sig.SettleKey == "" {
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
	add(idx[string(sig.Kind)+"|"+sig.SettleKey])
	month := monthOfKey(sig.SettleKey)
	add(idx[string(sig.Kind)+"|m:"+month])
	add(idx[string(sig.Kind)+"|"+month])
	return out
}

func (p *climatePipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractClimate(left.Market)
	r := signals.ExtractClimate(right.Market)

	if l.Kind == signals.ClimateOther || l.Kind != r.Kind {
		return GateResult{FailReason: fmt.Sprintf("kind mismatch: %s vs %s", l.Kind, r.Kind)}
	}
	if monthOfKey(l.SettleKey) != monthOfKey(r.SettleKey) {
		return GateResult{FailReason: fmt.Sprintf("settle mismatch: %s vs %s", l.SettleKey, r.SettleKey)}
	}
	if l.RegionKey != "" && r.RegionKey != "" && l.RegionKey != r.RegionKey {
		return GateResult{FailReason: fmt.Sprintf("region mismatch: %s vs %s", l.RegionKey, r.RegionKey)}
	}
	if !l.Comparator.Compatible(r.Comparator) {
		return GateResult{FailReason: fmt.Sprintf("comparator contradiction: %s vs %s", l.Comparator, r.Comparator)}
	}
	return GateResult{Passed: true}
}

func (p *climatePipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractClimate(left.Market)
	r := signals.ExtractClimate(right.Market)

	date := climateDateScore(l, r)
	thresholds := climateThresholdScore(l.Thresholds, r.Thresholds)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"kind", 0.35, eqScore(l.Kind == r.Kind)},
		{"date", 0.30, date},
		{"region", 0.20, eqScore(l.RegionKey != "" && l.RegionKey == r.RegionKey)},
		{"thresholds", 0.10, thresholds},
		{"text", 0.05, txt},
	}, 0)

	tier := TierWeak
	if l.SettleKey == r.SettleKey && thresholds >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("CLIMATE: tier=%s kind=%s settle=%s/%s region=%s/%s date=%s thr=%s text=%s",
		tier, l.Kind, l.SettleKey, r.SettleKey, orDash(l.RegionKey), orDash(r.RegionKey),
		f2(date), f2(thresholds), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *climatePipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractClimate(left.Market)
	r := signals.ExtractClimate(right.Market)
	if l.Kind != r.Kind {
		return RejectDecision{Reject: true, Rule: "kind_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Kind, r.Kind)}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

// climateDateScore: identical settle keys 1.0, same month at different
// precision 0.7, anything else was gated out.
func climateDateScore(l, r signals.ClimateSignals) float64 {
	if l.SettleKey == r.SettleKey {
		return 1.0
	}
	if monthOfKey(l.SettleKey) == monthOfKey(r.SettleKey) {
		return 0.7
	}
	return 0
}

func climateThresholdScore(l, r []float64) float64 {
	if len(l) == 0 || len(r) == 0 {
		return 0.5
	}
	minL, maxL := minMax(l)
	minR, maxR := minMax(r)
	return text.NumberProximity(minL, maxL, minR, maxR)
}

func minMax(vals []float64) (float64, float64) {
	min, max := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// monthOfKey truncates a settle key to YYYY-MM; quarter and year keys pass
// through unchanged.
func monthOfKey(key string) string {
	if len(key) == 10 && strings.Count(key, "-") == 2 {
		return key[:7]
	}
	return key
}
