package pipeline

import (
	"fmt"
	"strconv"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// ratesPipeline matches central-bank decision markets. The meeting period
// reuses the macro alignment machinery; magnitude is bps or the "N or more
// cuts" count.
type ratesPipeline struct {
	base
}

func newRatesPipeline() *ratesPipeline {
	return &ratesPipeline{base{
		topic:       model.TopicRates,
		algoVersion: "v1.8.1",
		minScore:    0.60,
		autoReject:  true,
	}}
}

func (p *ratesPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractRates(v.Market)
		if sig.Bank == signals.BankUnknown {
			continue
		}
		if sig.HasMeeting {
			idx.Add(string(sig.Bank)+"|"+strconv.Itoa(sig.Meeting.Year), v)
		}
	}
	return idx
}

func (p *ratesPipeline) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractRates(m.Market)
	if sig.Bank == signals.BankUnknown || !sig.HasMeeting {
		return nil
	}
	return idx[string(sig.Bank)+"|"+strconv.Itoa(sig.Meeting.Year)]
}

func (p *ratesPipeline) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractRates(left.Market)
	r := signals.ExtractRates(right.Market)

	if l.Bank == signals.BankUnknown || r.Bank == signals.BankUnknown {
		return GateResult{FailReason: "bank missing"}
	}
	if l.Bank != r.Bank {
		return GateResult{FailReason: fmt.Sprintf("bank mismatch: %s vs %s", l.Bank, r.Bank)}
	}
	if l.Action != signals.ActionUnknown && r.Action != signals.ActionUnknown && l.Action != r.Action {
		return GateResult{FailReason: fmt.Sprintf("action mismatch: %s vs %s", l.Action, r.Action)}
	}
	if l.HasMeeting && r.HasMeeting &&
		signals.AlignPeriods(l.Meeting, r.Meeting) == signals.PeriodMismatch {
		return GateResult{FailReason: fmt.Sprintf("meeting mismatch: %s vs %s", l.Meeting.Key(), r.Meeting.Key())}
	}
	if l.Bps != 0 && r.Bps != 0 && l.Bps != r.Bps {
		return GateResult{FailReason: fmt.Sprintf("bps mismatch: %d vs %d", l.Bps, r.Bps)}
	}
	if l.ActionCount != 0 && r.ActionCount != 0 && l.ActionCount != r.ActionCount {
		return GateResult{FailReason: fmt.Sprintf("action count mismatch: %d vs %d", l.ActionCount, r.ActionCount)}
	}
	return GateResult{Passed: true}
}

func (p *ratesPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractRates(left.Market)
	r := signals.ExtractRates(right.Market)

	meet := 0.0
	kind := signals.PeriodUnknown
	if l.HasMeeting && r.HasMeeting {
		kind = signals.AlignPeriods(l.Meeting, r.Meeting)
		meet = signals.PeriodScore(kind)
	}
	action := 0.5 // one side silent on direction
	if l.Action != signals.ActionUnknown && r.Action != signals.ActionUnknown {
		action = eqScore(l.Action == r.Action)
	}
	magnitude := ratesMagnitudeScore(l, r)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"bank", 0.35, eqScore(l.Bank == r.Bank)},
		{"action", 0.25, action},
		{"meet", 0.20, meet},
		{"mag", 0.10, magnitude},
		{"text", 0.10, txt},
	}, 0)

	tier := TierWeak
	if kind == signals.PeriodExact && magnitude >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("RATES: tier=%s bank=%s action=%s meet=%s(%s/%s) mag=%s text=%s",
		tier, l.Bank, orDash(string(l.Action)), f2(meet),
		meetingKey(l), meetingKey(r), f2(magnitude), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *ratesPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractRates(left.Market)
	r := signals.ExtractRates(right.Market)
	if l.Bank != r.Bank {
		return RejectDecision{Reject: true, Rule: "bank_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Bank, r.Bank)}
	}
	if s != nil && s.Score < 0.40 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

func meetingKey(s signals.RatesSignals) string {
	if !s.HasMeeting {
		return "-"
	}
	return s.Meeting.Key()
}

func ratesMagnitudeScore(l, r signals.RatesSignals) float64 {
	switch {
	case l.Bps != 0 && r.Bps != 0:
		return eqScore(l.Bps == r.Bps)
	case l.ActionCount != 0 && r.ActionCount != 0:
		return eqScore(l.ActionCount == r.ActionCount)
	case l.TargetHigh != 0 && r.TargetHigh != 0:
		return eqScore(l.TargetLow == r.TargetLow && l.TargetHigh == r.TargetHigh)
	default:
		return 0.5
	}
}
