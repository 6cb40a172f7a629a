package pipeline

import (
	"context"
	"time"

	"github.com/predmatch/predmatch/internal/domain/eligibility"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// base carries the descriptor fields and the default behaviors every topic
// pipeline shares. Concrete pipelines embed it and override what differs.
type base struct {
	topic       model.Topic
	algoVersion string
	minScore    float64
	autoConfirm bool
	autoReject  bool
}

func (b base) Topic() model.Topic        { return b.topic }
func (b base) AlgoVersion() string       { return b.algoVersion }
func (b base) MinScore() float64         { return b.minScore }
func (b base) SupportsAutoConfirm() bool { return b.autoConfirm }
func (b base) SupportsAutoReject() bool  { return b.autoReject }

// FetchMarkets lists by derived topic, then applies the canonical
// eligibility filter in-process. Pipelines with a store-side fetch path
// (crypto) override this.
func (b base) FetchMarkets(ctx context.Context, repo persistence.Repository, opts FetchOptions) ([]View, error) {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = eligibility.ForTopic(b.topic).LookbackHours
	}
	markets, err := repo.ListMarketsByDerivedTopic(ctx, b.topic, persistence.TopicFilters{
		Venue:         opts.Venue,
		LookbackHours: lookback,
		Limit:         opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	return filterEligible(markets, b.topic, opts.Now, lookback), nil
}

// ApplyDedup defaults to the per-side caps; crypto overrides with bracket
// grouping on top.
func (b base) ApplyDedup(cands []Candidate, limits DedupLimits) []Candidate {
	return capCandidates(cands, limits)
}

// Hooks default to "no opinion"; pipelines with a rule pack override.
func (b base) ShouldAutoConfirm(View, View, *ScoreResult) ConfirmDecision {
	return ConfirmDecision{}
}

func (b base) ShouldAutoReject(View, View, *ScoreResult) RejectDecision {
	return RejectDecision{}
}

// filterEligible wraps markets into Views, dropping anything outside the
// eligibility window. The repository already filters server-side; this is
// the authoritative recheck with the topic's exact options.
func filterEligible(markets []*model.Market, topic model.Topic, now time.Time, lookbackHours int) []View {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	opts := eligibility.ForTopic(topic)
	if lookbackHours > 0 {
		opts.LookbackHours = lookbackHours
	}
	views := make([]View, 0, len(markets))
	for _, m := range markets {
		if eligibility.Eligible(m, now, opts) {
			views = append(views, View{Market: m})
		}
	}
	return views
}
