package pipeline

import (
	"fmt"
	"strconv"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// geoPipeline matches conflict/diplomacy markets. Titles are wordy and
// idiosyncratic, so scoring leans on the region/country sets rather than
// raw text.
type geoPipeline struct {
	base
}

func newGeopoliticsPipeline() *geoPipeline {
	return &geoPipeline{base{
		topic:       model.TopicGeopolitics,
		algoVersion: "v1.5.2",
		minScore:    0.55,
		autoReject:  true,
	}}
}

// BuildIndex keys every market under each of its regions plus the event
// type, year-qualified when the title is dated.
func (p *geoPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractGeo(v.Market)
		for _, region := range sig.Regions {
			idx.Add(region+"|"+string(sig.EventType), v)
			if sig.Year != 0 {
				idx.Add(region+"|"+strconv.Itoa(sig.Year), v)
			}
		}
	}
	return idx
}

func (p *geoPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractGeo(m.Market)
	var out []View
	seen := map[int64]struct{}{}
	for _, region := range sig.Regions {
		for _, v := range idx[region+"|"+string(sig.EventType)] {
			if _, dup := seen[v.Market.ID]; !dup {
				seen[v.Market.ID] = struct{}{}
				out = append(out, v)
			}
		}
		if sig.Year != 0 {
			for _, v := range idx[region+"|"+strconv.Itoa(sig.Year)] {
				if _, dup := seen[v.Market.ID]; !dup {
					seen[v.Market.ID] = struct{}{}
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func (p *geoPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractGeo(left.Market)
	r := signals.ExtractGeo(right.Market)

	if setOverlap(l.Regions, r.Regions) == 0 && setOverlap(l.Countries, r.Countries) == 0 {
		return GateResult{FailReason: "no shared region or country"}
	}
	if l.EventType != signals.GeoUnknown && r.EventType != signals.GeoUnknown && l.EventType != r.EventType {
		return GateResult{FailReason: fmt.Sprintf("event type mismatch: %s vs %s", l.EventType, r.EventType)}
	}
	if l.Year != 0 && r.Year != 0 && l.Year != r.Year {
		return GateResult{FailReason: fmt.Sprintf("year mismatch: %d vs %d", l.Year, r.Year)}
	}
	return GateResult{Passed: true}
}

func (p *geoPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractGeo(left.Market)
	r := signals.ExtractGeo(right.Market)

	region := setOverlapScore(l.Regions, r.Regions)
	country := setOverlapScore(l.Countries, r.Countries)
	actors := setOverlapScore(l.Actors, r.Actors)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"region", 0.30, region},
		{"country", 0.25, country},
		{"type", 0.20, eqScore(l.EventType != signals.GeoUnknown && l.EventType == r.EventType)},
		{"actors", 0.15, actors},
		{"text", 0.10, txt},
	}, 0)

	tier := TierWeak
	if l.EventType == r.EventType && l.Deadline != "" && l.Deadline == r.Deadline {
		tier = TierStrong
	}

	reason := fmt.Sprintf("GEO: tier=%s type=%s region=%s country=%s actors=%s deadline=%s/%s text=%s",
		tier, orDash(string(l.EventType)), f2(region), f2(country), f2(actors),
		orDash(l.Deadline), orDash(r.Deadline), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *geoPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractGeo(left.Market)
	r := signals.ExtractGeo(right.Market)
	if l.EventType != signals.GeoUnknown && r.EventType != signals.GeoUnknown && l.EventType != r.EventType {
		return RejectDecision{Reject: true, Rule: "event_type_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.EventType, r.EventType)}
	}
	if s != nil && s.Score < 0.35 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

func setOverlap(l, r []string) int {
	return overlapCount(l, r)
}

// setOverlapScore is overlap over the smaller set; 0.5 neutral when either
// side is empty.
func setOverlapScore(l, r []string) float64 {
	if len(l) == 0 || len(r) == 0 {
		return 0.5
	}
	smaller := len(l)
	if len(r) < smaller {
		smaller = len(r)
	}
	return float64(overlapCount(l, r)) / float64(smaller)
}
