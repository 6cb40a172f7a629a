package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/predmatch/predmatch/internal/domain/eligibility"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
	"github.com/predmatch/predmatch/internal/persistence"
)

// cryptoDaily matches daily/periodic crypto threshold and range markets.
// The densest topic by market count, and the one with the bracket-ladder
// problem, so it carries the full dedup treatment.
type cryptoDaily struct {
	base
}

func newCryptoDailyPipeline() *cryptoDaily {
	return &cryptoDaily{base{
		topic:       model.TopicCryptoDaily,
		algoVersion: "v2.6.8",
		minScore:    0.70,
		autoConfirm: true,
		autoReject:  true,
	}}
}

var cryptoFullNames = []string{"bitcoin", "ethereum", "solana", "ripple", "dogecoin"}
var cryptoTickers = []string{"btc", "eth", "sol", "xrp", "doge"}

// CryptoListParamsFor renders the crypto-specific fetch: full names match as
// keywords, short tickers as boundary-safe regexes composed into the query.
// Shared with the crypto diagnostics commands.
func CryptoListParamsFor(venue model.Venue, lookbackHours, limit int) persistence.CryptoListParams {
	if lookbackHours <= 0 {
		lookbackHours = eligibility.LookbackHoursCrypto
	}
	patterns := make([]string, len(cryptoTickers))
	for i, t := range cryptoTickers {
		patterns[i] = text.TickerPattern(t)
	}
	return persistence.CryptoListParams{
		ListParams: persistence.ListParams{
			Venue:         venue,
			LookbackHours: lookbackHours,
			ForwardHours:  eligibility.ForwardHoursCryptoDaily,
			GraceMinutes:  eligibility.DefaultGraceMinutes,
			Limit:         limit,
			// Keyword fetches can pull sports titles that mention a ticker.
			ExcludeSports: true,
		},
		FullNameKeywords: cryptoFullNames,
		TickerPatterns:   patterns,
	}
}

func (p *cryptoDaily) FetchMarkets(ctx context.Context, repo persistence.Repository, opts FetchOptions) ([]View, error) {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = eligibility.LookbackHoursCrypto
	}
	markets, err := repo.ListEligibleCryptoMarkets(ctx, CryptoListParamsFor(opts.Venue, lookback, opts.Limit))
	if err != nil {
		return nil, fmt.Errorf("crypto daily fetch %s: %w", opts.Venue, err)
	}
	views := filterEligible(markets, p.topic, opts.Now, lookback)
	// Intraday up/down markets leak into keyword fetches; they belong to the
	// intraday pipeline.
	kept := views[:0]
	for _, v := range views {
		if !signals.ExtractCrypto(v.Market).Intraday() {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

// BuildIndex keys on entity|settleDate, with an entity|settlePeriod
// secondary for month-end and quarter markets.
func (p *cryptoDaily) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		sig := signals.ExtractCrypto(v.Market)
		if sig.Entity == signals.EntityUnknown {
			continue
		}
		idx.Add(string(sig.Entity)+"|"+sig.SettleDate, v)
		if sig.SettlePeriod != "" {
			idx.Add(string(sig.Entity)+"|p:"+sig.SettlePeriod, v)
		}
	}
	return idx
}

// FindCandidates probes the exact settle date plus one day either side; the
// day gate tolerates |dayDiff| = 1 for venue timezone drift.
func (p *cryptoDaily) FindCandidates(m View, idx Index) []View {
	sig := signals.ExtractCrypto(m.Market)
	if sig.Entity == signals.EntityUnknown {
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
	if sig.SettleDate != "" {
		add(idx[string(sig.Entity)+"|"+sig.SettleDate])
		if day, err := time.Parse("2006-01-02", sig.SettleDate); err == nil {
			add(idx[string(sig.Entity)+"|"+day.AddDate(0, 0, -1).Format("2006-01-02")])
			add(idx[string(sig.Entity)+"|"+day.AddDate(0, 0, 1).Format("2006-01-02")])
		}
	}
	if sig.SettlePeriod != "" {
		add(idx[string(sig.Entity)+"|p:"+sig.SettlePeriod])
	}
	return out
}

// dayExactTypes are the date types the day-diff gate applies to; period
// types compare their period strings instead.
func dayGateApplies(t signals.DateType) bool {
	return t == signals.DateDayExact || t == signals.DateCloseTime
}

func (p *cryptoDaily) CheckHardGates(left, right View) GateResult {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)

	if l.Entity == signals.EntityUnknown || r.Entity == signals.EntityUnknown {
		return GateResult{FailReason: "entity missing"}
	}
	if l.Entity != r.Entity {
		return GateResult{FailReason: fmt.Sprintf("entity mismatch: %s vs %s", l.Entity, r.Entity)}
	}
	if l.Intraday() || r.Intraday() {
		return GateResult{FailReason: "intraday market in daily pipeline"}
	}

	switch {
	case dayGateApplies(l.DateType) && dayGateApplies(r.DateType):
		diff, ok := dayDiff(l.SettleDate, r.SettleDate)
		if !ok {
			return GateResult{FailReason: "settle date unparseable"}
		}
		if abs(diff) > 1 {
			return GateResult{FailReason: fmt.Sprintf("dayDiff %d", diff)}
		}
	case l.DateType == r.DateType:
		// MONTH_END and QUARTER pair only on identical periods.
		if l.SettlePeriod != r.SettlePeriod {
			return GateResult{FailReason: fmt.Sprintf("period mismatch: %s vs %s", l.SettlePeriod, r.SettlePeriod)}
		}
	default:
		return GateResult{FailReason: fmt.Sprintf("date types incompatible: %s vs %s", l.DateType, r.DateType)}
	}
	return GateResult{Passed: true}
}

func (p *cryptoDaily) Score(left, right View) *ScoreResult {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)

	dateScore, diff := cryptoDateScore(l, r)
	numScore, numCtx := cryptoNumberScore(l, r)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"entity", 0.45, eqScore(l.Entity == r.Entity)},
		{"date", 0.35, dateScore},
		{"numbers", 0.15, numScore},
		{"text", 0.05, txt},
	}, 0)

	tier := TierWeak
	if dateScore >= 1.0 && numScore >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("entity=%s dateType=%s date=%s(%dd) num=%s[%s] text=%s",
		l.Entity, l.DateType, f2(dateScore), diff, f2(numScore), numCtx, f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *cryptoDaily) ApplyDedup(cands []Candidate, limits DedupLimits) []Candidate {
	return bracketDedup(cands, limits)
}

// ShouldAutoConfirm is the v2.6.8 safe-confirm pack evaluated at suggestion
// time, with live signals instead of a parsed reason.
func (p *cryptoDaily) ShouldAutoConfirm(left, right View, s *ScoreResult) ConfirmDecision {
	if s == nil || s.Score < 0.88 {
		return ConfirmDecision{}
	}
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)
	if l.Entity == signals.EntityUnknown {
		return ConfirmDecision{}
	}
	diff, ok := dayDiff(l.SettleDate, r.SettleDate)
	if !ok || diff != 0 {
		return ConfirmDecision{}
	}
	if !l.Comparator.Compatible(r.Comparator) {
		return ConfirmDecision{}
	}
	if !cryptoNumbersWithinTolerance(l, r) {
		return ConfirmDecision{}
	}
	if s.Components["text"] < 0.12 || s.Components["date"] < 0.90 {
		return ConfirmDecision{}
	}
	return ConfirmDecision{Confirm: true, Rule: "exact_date_number_tolerance", Confidence: s.Score}
}

func (p *cryptoDaily) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractCrypto(left.Market)
	r := signals.ExtractCrypto(right.Market)
	if l.Entity != r.Entity {
		return RejectDecision{Reject: true, Rule: "entity_mismatch",
			Reason: fmt.Sprintf("%s vs %s", l.Entity, r.Entity)}
	}
	if s != nil && s.Score < 0.45 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

// cryptoDateScore: 1.0 same day or equal period, 0.6 for adjacent days.
// Anything further was already dropped by the gate.
func cryptoDateScore(l, r signals.CryptoSignals) (float64, int) {
	if dayGateApplies(l.DateType) && dayGateApplies(r.DateType) {
		diff, ok := dayDiff(l.SettleDate, r.SettleDate)
		if !ok {
			return 0, 0
		}
		if diff == 0 {
			return 1.0, 0
		}
		return 0.6, diff
	}
	if l.SettlePeriod != "" && l.SettlePeriod == r.SettlePeriod {
		return 1.0, 0
	}
	return 0, 0
}

func cryptoNumberScore(l, r signals.CryptoSignals) (float64, string) {
	minL, maxL, okL := l.PriceRange()
	minR, maxR, okR := r.PriceRange()
	if !okL || !okR {
		return 0, "none"
	}
	return text.NumberProximity(minL, maxL, minR, maxR), numberContext(l)
}

// numberContext names the dominant context tag for the reason string.
func numberContext(s signals.CryptoSignals) string {
	for _, n := range s.Numbers {
		if n.Context == signals.ContextPrice {
			return "price"
		}
	}
	for _, n := range s.Numbers {
		if n.Context == signals.ContextThreshold {
			return "threshold"
		}
	}
	return "unknown"
}

// cryptoNumbersWithinTolerance: absolute gap <= 1 or relative gap <= 0.1%.
func cryptoNumbersWithinTolerance(l, r signals.CryptoSignals) bool {
	minL, maxL, okL := l.PriceRange()
	minR, maxR, okR := r.PriceRange()
	if !okL || !okR {
		return false
	}
	gap := rangeGap(minL, maxL, minR, maxR)
	if gap <= 1 {
		return true
	}
	scale := math.Max(maxL, maxR)
	return scale > 0 && gap/scale <= 0.001
}

// rangeGap is 0 when the ranges overlap, else the distance between them.
func rangeGap(minL, maxL, minR, maxR float64) float64 {
	if maxL >= minR && maxR >= minL {
		return 0
	}
	if maxL < minR {
		return minR - maxL
	}
	return minL - maxR
}

func dayDiff(l, r string) (int, bool) {
	if l == "" || r == "" {
		return 0, false
	}
	lt, errL := time.Parse("2006-01-02", l)
	rt, errR := time.Parse("2006-01-02", r)
	if errL != nil || errR != nil {
		return 0, false
	}
	return int(rt.Sub(lt).Hours() / 24), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
