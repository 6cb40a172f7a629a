package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/predmatch/predmatch/internal/domain/eligibility"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/persistence"
)

// sportsPipeline matches single-game markets. The event key does nearly all
// the work; everything else distinguishes bet shapes within one game.
// MVE/parlay markets never enter: their legs have no per-outcome counterpart.
type sportsPipeline struct {
	base
}

func newSportsPipeline() *sportsPipeline {
	return &sportsPipeline{base{
		topic:       model.TopicSports,
		algoVersion: "v2.2.0",
		minScore:    0.80,
		autoReject:  true,
	}}
}

// FetchMarkets enriches exchange markets with their parent events, which
// carry authoritative team pairs and strike times.
func (p *sportsPipeline) FetchMarkets(ctx context.Context, repo persistence.Repository, opts FetchOptions) ([]View, error) {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = eligibility.LookbackHoursMacro
	}
	markets, err := repo.ListMarketsByDerivedTopic(ctx, p.topic, persistence.TopicFilters{
		Venue:         opts.Venue,
		LookbackHours: lookback,
		Limit:         opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sports fetch %s: %w", opts.Venue, err)
	}

	views := filterEligible(markets, p.topic, opts.Now, lookback)
	kept := views[:0]
	var tickers []string
	for _, v := range views {
		if v.Market.IsMve {
			continue
		}
		kept = append(kept, v)
		if v.Market.Venue == model.VenueKalshi && v.Market.EventTicker != "" {
			tickers = append(tickers, v.Market.EventTicker)
		}
	}
	if len(tickers) > 0 {
		events, err := repo.GetEventsByTickers(ctx, tickers)
		if err != nil {
			return nil, fmt.Errorf("sports events lookup: %w", err)
		}
		for i := range kept {
			kept[i].Event = events[kept[i].Market.EventTicker]
		}
	}
	return kept, nil
}

func (p *sportsPipeline) BuildIndex(markets []View) Index {
	idx := Index{}
	for _, v := range markets {
		idx.Add(signals.ExtractSports(v.Market, v.Event).EventKey(), v)
	}
	return idx
}

func (p *sportsPipeline) FindCandidates(m View, idx Index) []View {
	key := signals.ExtractSports(m.Market, m.Event).EventKey()
	if key == "" {
		return nil
	}
	return idx[key]
}

// marketTypesCompatible: identical shapes pair; a moneyline pairs with a
// winner-phrased prop on the other venue; everything else does not cross.
func marketTypesCompatible(l, r signals.SportsMarketType) bool {
	if l == r {
		return true
	}
	pair := func(a, b signals.SportsMarketType) bool {
		return (l == a && r == b) || (l == b && r == a)
	}
	return pair(signals.SportsMoneyline, signals.SportsProp)
}

func (p *sportsPipeline) CheckHardGates(left, right View) GateResult {
	if left.Market.IsMve || right.Market.IsMve {
		return GateResult{FailReason: "mve market"}
	}
	l := signals.ExtractSports(left.Market, left.Event)
	r := signals.ExtractSports(right.Market, right.Event)

	if l.League == "" || l.League != r.League {
		return GateResult{FailReason: fmt.Sprintf("league mismatch: %s vs %s", orDash(l.League), orDash(r.League))}
	}
	if l.TeamA == "" || l.TeamA != r.TeamA || l.TeamB != r.TeamB {
		return GateResult{FailReason: "team pair mismatch"}
	}
	if l.StartBucket.IsZero() || !l.StartBucket.Equal(r.StartBucket) {
		return GateResult{FailReason: "start bucket mismatch"}
	}
	if !marketTypesCompatible(l.MarketType, r.MarketType) {
		return GateResult{FailReason: fmt.Sprintf("market type mismatch: %s vs %s", l.MarketType, r.MarketType)}
	}
	return GateResult{Passed: true}
}

func (p *sportsPipeline) Score(left, right View) *ScoreResult {
	l := signals.ExtractSports(left.Market, left.Event)
	r := signals.ExtractSports(right.Market, right.Event)

	eventKey := eqScore(l.EventKey() != "" && l.EventKey() == r.EventKey())
	line := sportsLineScore(l, r)
	txt := textScore(left.Market.Title, right.Market.Title)

	score, breakdown := weightedScore([]component{
		{"event", 0.60, eventKey},
		{"mtype", 0.20, eqScore(l.MarketType == r.MarketType)},
		{"line", 0.10, line},
		{"text", 0.10, txt},
	}, 0)

	tier := TierWeak
	if eventKey == 1 && l.MarketType == r.MarketType && line >= 0.6 {
		tier = TierStrong
	}

	reason := fmt.Sprintf("SPORTS: tier=%s key=%s mtype=%s/%s line=%s text=%s",
		tier, orDash(l.EventKey()), l.MarketType, r.MarketType, f2(line), f2(txt))

	return &ScoreResult{Score: score, Tier: tier, Reason: reason, Components: breakdown}
}

func (p *sportsPipeline) ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision {
	l := signals.ExtractSports(left.Market, left.Event)
	r := signals.ExtractSports(right.Market, right.Event)
	if l.TeamA != r.TeamA || l.TeamB != r.TeamB {
		return RejectDecision{Reject: true, Rule: "team_mismatch"}
	}
	if s != nil && s.Score < 0.60 {
		return RejectDecision{Reject: true, Rule: "below_hard_floor", Reason: f2(s.Score)}
	}
	return RejectDecision{}
}

// sportsLineScore compares spread/total lines: exact 1.0, half-point apart
// 0.6, otherwise 0. Moneylines have no line and score neutral.
func sportsLineScore(l, r signals.SportsSignals) float64 {
	if !l.HasLine && !r.HasLine {
		return 0.5
	}
	if l.HasLine != r.HasLine {
		return 0
	}
	gap := math.Abs(l.LineValue - r.LineValue)
	switch {
	case gap == 0:
		return 1.0
	case gap <= 0.5:
		return 0.6
	default:
		return 0
	}
}
