package pipeline

import (
	"fmt"
	"strconv"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// electionsPipeline matches race markets. The race key concentrates
// candidates; the gates are strict because near-miss races (same office,
// neighboring year) read almost identically.
type electionsPipeline struct {
	base
}

func newElectionsPipeline() *electionsPipeline {
	return &electionsPipeline{base{
		topic:       model.TopicElections,
		algoVersion: "v3.0.15",
		minScore:    0.65,
		autoConfirm: true,
		autoReject:  true,
	}}
}

// BuildIndex keys on the race key, with a country|year secondary and
// per-candidate keys so candidate-named markets find races whose office
// wording differs.
func (p *electionsPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractElections(v.Market)
		if sig.Country == signals.CountryUnknown {
			continue
		}
		idx.Add(sig.RaceKeyString(), v)
		if sig.Year != 0 {
			idx.Add(string(sig.Country)+"|"+strconv.Itoa(sig.Year), v)
			for _, cand := range sig.Candidates {
				idx.Add("cand:"+cand+"|"+strconv.Itoa(sig.Year), v)
			}
		}
	}
	return idx
}

func (p *electionsPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractElections(m.Market)
	if sig.Country == signals.CountryUnknown {
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
	add(idx[sig.RaceKeyString()])
	if sig.Year != 0 {
		add(idx[string(sig.Country)+"|"+strconv.Itoa(sig.Year)])
		for _, cand := range sig.Candidates {
			add(idx["cand:"+cand+"|"+strconv.Itoa(sig.Year)])
		}
	}
	return out
}

func (p *electionsPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractElections(left.Market)
	r := signals.ExtractElections(right.Market)

	// UNKNOWN never matches a known country.
	if l.Country == signals.CountryUnknown || r.Country == signals.CountryUnknown || l.Country != r.Country {
		return GateResult{FailReason: fmt.Sprintf("Country mismatch: %s vs %s", l.Country, r.Country)}
	}
	if !signals.OfficesCompatible(l.Office, r.Office) {
		return GateResult{FailReason: fmt.Sprintf("Office mismatch: %s vs %s", l.Office, r.Office)}
	}
	// Null vs non-null year is a mismatch; an undated race market is a
	// different question.
	if l.Year != r.Year {
		return GateResult{FailReason: fmt.Sprintf("Year mismatch: %d vs %d", l.Year, r.Year)}
	}
	if l.State != "" && r.State != "" && l.State != r.State {
		return GateResult{FailReason: fmt.Sprintf("State mismatch: %s vs %s", l.State, r.State)}
	}
	return GateResult{Passed: true}
}

func (p *electionsPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractElections(left.Market)
	r := signals.ExtractElections(right.Market)

	cand := candidateOverlapScore(l.Candidates, r.Candidates)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"country", 0.20, eqScore(l.Country == r.Country)},
		{"office", 0.20, eqScore(l.Office == r.Office || signals.OfficesCompatible(l.Office, r.Office))},
		{"year", 0.15, eqScore(l.Year != 0 && l.Year == r.Year)},
		{"cand", 0.25, cand},
		{"text", 0.20, txt},
	}, overlapBonus(left.Market.Title, right.Market.Title))

	tier := TierWeak
	if l.Year != 0 && l.Year == r.Year && cand >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("ELECTIONS: tier=%s race=%s country=%s office=%s year=%s cand=%s text=%s",
		tier, l.RaceKeyString(), f2(breakdown["country"]), f2(breakdown["office"]),
		f2(breakdown["year"]), f2(cand), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

// ShouldAutoConfirm is the v3.0.15 pack: a near-perfect race match with
// candidate agreement when both sides name names.
func (p *electionsPipeline) ShouldAutoConfirm(left, right View, s *ScoreResult) ConfirmDecision {
	if s == nil || s.Score < 0.95 {
		return ConfirmDecision{}
	}
	if s.Components["country"] < 1 || s.Components["office"] < 1 || s.Components["year"] < 1 {
		return ConfirmDecision{}
	}
	l := signals.ExtractElections(left.Market)
	r := signals.ExtractElections(right.Market)
	if len(l.Candidates) > 0 && len(r.Candidates) > 0 && overlapCount(l.Candidates, r.Candidates) < 1 {
		return ConfirmDecision{}
	}
	return ConfirmDecision{Confirm: true, Rule: "exact_race_candidate_overlap", Confidence: s.Score}
}

func (p *electionsPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractElections(left.Market)
	r := signals.ExtractElections(right.Market)
	if l.Country != r.Country {
		return RejectDecision{Reject: true, Rule: "country_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Country, r.Country)}
	}
	if len(l.Candidates) > 0 && len(r.Candidates) > 0 && overlapCount(l.Candidates, r.Candidates) == 0 {
		return RejectDecision{Reject: true, Rule: "disjoint_candidates"}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

// candidateOverlapScore is |intersection| / |smaller side|, neutral 0.5 when
// either side names nobody.
func candidateOverlapScore(l, r []string) float64 {
	if len(l) == 0 || len(r) == 0 {
		return 0.5
	}
	smaller := len(l)
	if len(r) < smaller {
		smaller = len(r)
	}
	return float64(overlapCount(l, r)) / float64(smaller)
}

func overlapCount(l, r []string) int {
	set := make(map[string]struct{}, len(l))
	for _, s := range l {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range r {
		if _, ok := set[s]; ok {
			n++
		}
	}
	return n
}
