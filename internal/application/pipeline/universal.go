package pipeline

import (
	"fmt"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// universalPipeline is the catch-all for UNIVERSAL markets: no topic
// extractor fits, so it works from the raw fingerprint. It never
// auto-confirms; everything it writes waits for a human.
type universalPipeline struct {
	base
}

func newUniversalPipeline() *universalPipeline {
	return &universalPipeline{base{
		topic:       model.TopicUniversal,
		algoVersion: "v1.0.2",
		minScore:    0.50,
	}}
}

func fingerprintOf(v View) text.Fingerprint {
	return text.BuildFingerprint(v.Market.Title, v.Market.CloseTime, v.Market.Metadata)
}

// BuildIndex keys on intent plus the best date key; date-less markets all
// share one bucket per intent, which the per-candidate cap keeps bounded.
func (p *universalPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		fp := fingerprintOf(v)
		idx.Add(universalKey(fp), v)
	}
	return idx
}

func universalKey(fp text.Fingerprint) string {
	key := string(fp.Intent)
	if best, ok := text.BestDate(fp.Dates); ok {
		key += "|" + best.Key()
	}
	return key
}

func (p *universalPipeline) FindCandidates(m View, idx Index) []View {
	return idx[universalKey(fingerprintOf(m))]
}

func (p *universalPipeline) CheckHardGates(left, right View) GateResult {
	l := fingerprintOf(left)
	r := fingerprintOf(right)

	if l.Intent != r.Intent {
		return GateResult{FailReason: fmt.Sprintf("intent mismatch: %s vs %s", l.Intent, r.Intent)}
	}
	if !l.Comparator.Compatible(r.Comparator) {
		return GateResult{FailReason: fmt.Sprintf("comparator contradiction: %s vs %s", l.Comparator, r.Comparator)}
	}
	return GateResult{Passed: true}
}

func (p *universalPipeline) Score(left, right View) *ScoreResult {
	l := fingerprintOf(left)
	r := fingerprintOf(right)

	date := universalDateScore(l, r)
	num := universalNumberScore(l, r)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"text", 0.45, txt},
		{"date", 0.25, date},
		{"num", 0.20, num},
		{"intent", 0.10, eqScore(l.Intent == r.Intent)},
	}, 0)

	// Catch-all pairs are never STRONG; the evidence is too thin.
	reason := fmt.Sprintf("UNIVERSAL: tier=%s intent=%s date=%s num=%s text=%s",
		TierWeak, l.Intent, f2(date), f2(num), f2(txt))

	return &ScoreResult{Score: score, Tier: TierWeak, Reason: reason, Components: breakdown}
}

func universalDateScore(l, r text.Fingerprint) float64 {
	bl, okL := text.BestDate(l.Dates)
	br, okR := text.BestDate(r.Dates)
	if !okL || !okR {
		return 0.5
	}
	if bl.Key() == br.Key() {
		return 1.0
	}
	if bl.Year == br.Year {
		return 0.3
	}
	return 0
}

func universalNumberScore(l, r text.Fingerprint) float64 {
	minL, maxL, okL := text.NumberRange(l.Numbers)
	minR, maxR, okR := text.NumberRange(r.Numbers)
	if !okL || !okR {
		return 0.5
	}
	return text.NumberProximity(minL, maxL, minR, maxR)
}
