package pipeline

import (
	"fmt"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// cryptoIntraday matches hourly up/down markets. Pairs hang almost entirely
// off entity + time bucket; titles carry little else.
type cryptoIntraday struct {
	base
}

func newCryptoIntradayPipeline() *cryptoIntraday {
	return &cryptoIntraday{base{
		topic:       model.TopicCryptoIntraday,
		algoVersion: "v1.3.0",
		minScore:    0.75,
		autoReject:  true,
	}}
}

func (p *cryptoIntraday) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractCrypto(v.Market)
		if sig.Entity == signals.EntityUnknown || !sig.Intraday() || sig.TimeBucket.IsZero() {
			continue
		}
		idx.Add(string(sig.Entity)+"|"+sig.TimeBucket.Format(time.RFC3339), v)
	}
	return idx
}

func (p *cryptoIntraday) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractCrypto(m.Market)
	if sig.Entity == signals.EntityUnknown || sig.TimeBucket.IsZero() {
		return nil
	}
	return idx[string(sig.Entity)+"|"+sig.TimeBucket.Format(time.RFC3339)]
}

func (p *cryptoIntraday) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)

	if !l.Intraday() || !r.Intraday() {
		return GateResult{FailReason: "daily market in intraday pipeline"}
	}
	if l.Entity == signals.EntityUnknown || l.Entity != r.Entity {
		return GateResult{FailReason: fmt.Sprintf("entity mismatch: %s vs %s", l.Entity, r.Entity)}
	}
	if l.TimeBucket.IsZero() || r.TimeBucket.IsZero() {
		return GateResult{FailReason: "time bucket missing"}
	}
	if !l.TimeBucket.Equal(r.TimeBucket) {
		return GateResult{FailReason: fmt.Sprintf("bucket mismatch: %s vs %s",
			l.TimeBucket.Format(time.RFC3339), r.TimeBucket.Format(time.RFC3339))}
	}
	if l.Direction != "" && r.Direction != "" && l.Direction != r.Direction {
		return GateResult{FailReason: fmt.Sprintf("direction mismatch: %s vs %s", l.Direction, r.Direction)}
	}
	return GateResult{Passed: true}
}

func (p *cryptoIntraday) Score(left, right View) *ScoreResult {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"entity", 0.60, eqScore(l.Entity == r.Entity)},
		{"bucket", 0.30, eqScore(l.TimeBucket.Equal(r.TimeBucket))},
		{"text", 0.10, txt},
	}, 0)

	tier := TierWeak
	if l.TimeBucket.Equal(r.TimeBucket) && l.Direction != "" && l.Direction == r.Direction {
		tier = TierStrong
	}

	reason := fmt.Sprintf("entity=%s bucket=%s dir=%s/%s text=%s",
		l.Entity, l.TimeBucket.Format(time.RFC3339), orDash(l.Direction), orDash(r.Direction), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *cryptoIntraday) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)
	if l.Entity != r.Entity {
		return RejectDecision{Reject: true, Rule: "entity_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Entity, r.Entity)}
	}
	if !l.TimeBucket.Equal(r.TimeBucket) {
		return RejectDecision{Reject: true, Rule: "bucket_mismatch"}
	}
	return RejectDecision{}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
