package pipeline

import (
	"fmt"
	"strconv"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// entertainmentPipeline matches award-show markets. Ceremony + year + folded
// category is nearly a primary key; nominees disambiguate within a category.
type entertainmentPipeline struct {
	base
}

func newEntertainmentPipeline() *entertainmentPipeline {
	return &entertainmentPipeline{base{
		topic:       model.TopicEntertainment,
		algoVersion: "v1.2.3",
		minScore:    0.60,
		autoReject:  true,
	}}
}

func (p *entertainmentPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractEntertainment(v.Market)
		if sig.Award == signals.AwardUnknown {
			continue
		}
		key := string(sig.Award)
		if sig.Year != 0 {
			key += "|" + strconv.Itoa(sig.Year)
		}
		idx.Add(key, v)
	}
	return idx
}

func (p *entertainmentPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractEntertainment(m.Market)
	if sig.Award == signals.AwardUnknown {
		return nil
	}
	key := string(sig.Award)
	if sig.Year != 0 {
		key += "|" + strconv.Itoa(sig.Year)
	}
	return idx[key]
}

func (p *entertainmentPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractEntertainment(left.Market)
	r := signals.ExtractEntertainment(right.Market)

	if l.Award == signals.AwardUnknown || l.Award != r.Award {
		return GateResult{FailReason: fmt.Sprintf("award mismatch: %s vs %s", l.Award, r.Award)}
	}
	if l.Year != 0 && r.Year != 0 && l.Year != r.Year {
		return GateResult{FailReason: fmt.Sprintf("year mismatch: %d vs %d", l.Year, r.Year)}
	}
	if l.Category != "" && r.Category != "" && l.Category != r.Category {
		return GateResult{FailReason: fmt.Sprintf("category mismatch: %s vs %s", l.Category, r.Category)}
	}
	return GateResult{Passed: true}
}

func (p *entertainmentPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractEntertainment(left.Market)
	r := signals.ExtractEntertainment(right.Market)

	nominees := setOverlapScore(l.Nominees, r.Nominees)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"award", 0.30, eqScore(l.Award == r.Award)},
		{"category", 0.25, eqScore(l.Category != "" && l.Category == r.Category)},
		{"year", 0.15, eqScore(l.Year != 0 && l.Year == r.Year)},
		{"nominees", 0.20, nominees},
		{"text", 0.10, txt},
	}, 0)

	tier := TierWeak
	if l.Category != "" && l.Category == r.Category && l.Year == r.Year && nominees >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("ENT: tier=%s award=%s category=%s/%s year=%d nom=%s text=%s",
		tier, l.Award, orDash(l.Category), orDash(r.Category), l.Year, f2(nominees), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *entertainmentPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractEntertainment(left.Market)
	r := signals.ExtractEntertainment(right.Market)
	if l.Award != r.Award {
		return RejectDecision{Reject: true, Rule: "award_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Award, r.Award)}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}
