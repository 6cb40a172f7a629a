// Package match runs the v3 matching orchestration: fetch both venues,
// index one side, walk the other through the topic pipeline's funnel and
// upsert the surviving links.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/predmatch/predmatch/internal/application/pipeline"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/metrics"
	"github.com/predmatch/predmatch/internal/persistence"
)

// Mode controls whether the run writes links.
type Mode string

const (
	ModeDryRun  Mode = "dry-run"
	ModeSuggest Mode = "suggest"
)

// Params drives one orchestration run for one topic.
type Params struct {
	FromVenue model.Venue
	ToVenue   model.Venue
	Topic     model.Topic
	// LookbackHours zero means the topic default (crypto 168h, others 720h).
	LookbackHours int
	Limit         int
	// MinScore zero means the pipeline's own floor.
	MinScore    float64
	Mode        Mode
	AutoConfirm bool
	AutoReject  bool
	Dedup       pipeline.DedupLimits
}

// Result is the funnel accounting for one run.
type Result struct {
	Topic       model.Topic `json:"topic"`
	AlgoVersion string      `json:"algo_version"`
	Mode        Mode        `json:"mode"`
	LeftCount   int         `json:"left_count"`
	RightCount  int         `json:"right_count"`
	Pairs       int         `json:"pairs"`
	SelfPairs   int         `json:"self_pairs"`
	GateFailed  int         `json:"gate_failed"`
	Unscored    int         `json:"unscored"`
	BelowFloor  int         `json:"below_floor"`
	Survivors   int         `json:"survivors"`
	Suggested   int         `json:"suggested"`
	Confirmed   int         `json:"confirmed"`
	Rejected    int         `json:"rejected"`

	Outcomes map[persistence.UpsertOutcome]int `json:"outcomes"`
	// ScoreBuckets is the coarse distribution of accepted scores.
	ScoreBuckets map[string]int `json:"score_buckets"`
	Duration     time.Duration  `json:"duration"`
}

// Orchestrator wires pipelines to the repository.
type Orchestrator struct {
	repo    persistence.Repository
	metrics *metrics.Registry
	now     func() time.Time
}

// NewOrchestrator builds an orchestrator. metrics may be nil.
func NewOrchestrator(repo persistence.Repository, m *metrics.Registry) *Orchestrator {
	return &Orchestrator{repo: repo, metrics: m, now: func() time.Time { return time.Now().UTC() }}
}

// Run executes the full funnel for one topic. Candidate iteration is
// sequential and ordered, so reruns against unchanged data produce the
// same upsert sequence.
func (o *Orchestrator) Run(ctx context.Context, params Params) (*Result, error) {
	p, ok := pipeline.Lookup(params.Topic)
	if !ok {
		return nil, fmt.Errorf("no pipeline registered for topic %s", params.Topic)
	}
	if params.Mode == "" {
		params.Mode = ModeDryRun
	}
	minScore := params.MinScore
	if minScore <= 0 {
		minScore = p.MinScore()
	}
	limits := params.Dedup
	if limits == (pipeline.DedupLimits{}) {
		limits = pipeline.DefaultDedupLimits
	}

	start := o.now()
	res := &Result{
		Topic:        params.Topic,
		AlgoVersion:  p.AlgoVersion(),
		Mode:         params.Mode,
		Outcomes:     map[persistence.UpsertOutcome]int{},
		ScoreBuckets: map[string]int{},
	}

	left, right, err := o.fetchBothSides(ctx, p, params, start)
	if err != nil {
		return nil, err
	}
	res.LeftCount = len(left)
	res.RightCount = len(right)
	o.countStage(params.Topic, "fetched_left", len(left))
	o.countStage(params.Topic, "fetched_right", len(right))

	idx := p.BuildIndex(right)

	var kept []pipeline.Candidate
	for _, l := range left {
		for _, r := range p.FindCandidates(l, idx) {
			res.Pairs++
			if l.Market.ID == r.Market.ID && l.Market.Venue == r.Market.Venue {
				res.SelfPairs++
				continue
			}
			if gate := p.CheckHardGates(l, r); !gate.Passed {
				res.GateFailed++
				log.Debug().
					Int64("left", l.Market.ID).
					Int64("right", r.Market.ID).
					Str("reason", gate.FailReason).
					Msg("Gate failed")
				continue
			}
			s := p.Score(l, r)
			if s == nil {
				res.Unscored++
				continue
			}
			if s.Score < minScore {
				res.BelowFloor++
				continue
			}
			kept = append(kept, pipeline.Candidate{Left: l, Right: r, Result: *s})
		}
	}
	o.countStage(params.Topic, "scored", len(kept))

	kept = p.ApplyDedup(kept, limits)
	res.Survivors = len(kept)
	o.countStage(params.Topic, "deduped", len(kept))

	for _, c := range kept {
		res.ScoreBuckets[scoreBucket(c.Result.Score)]++
		if o.metrics != nil {
			o.metrics.MatchScores.WithLabelValues(string(params.Topic)).Observe(c.Result.Score)
		}

		status := model.LinkSuggested
		if params.AutoConfirm && p.SupportsAutoConfirm() {
			if d := p.ShouldAutoConfirm(c.Left, c.Right, &c.Result); d.Confirm {
				status = model.LinkConfirmed
				log.Info().
					Int64("left", c.Left.Market.ID).
					Int64("right", c.Right.Market.ID).
					Str("rule", d.Rule).
					Float64("score", c.Result.Score).
					Msg("Auto-confirmed at suggestion time")
			}
		}
		if status == model.LinkSuggested && params.AutoReject && p.SupportsAutoReject() {
			if d := p.ShouldAutoReject(c.Left, c.Right, &c.Result); d.Reject {
				status = model.LinkRejected
				log.Debug().
					Int64("left", c.Left.Market.ID).
					Int64("right", c.Right.Market.ID).
					Str("rule", d.Rule).
					Msg("Auto-rejected at suggestion time")
			}
		}
		switch status {
		case model.LinkConfirmed:
			res.Confirmed++
		case model.LinkRejected:
			res.Rejected++
		default:
			res.Suggested++
		}

		if params.Mode == ModeDryRun {
			continue
		}
		outcome, err := o.repo.UpsertSuggestionV3(ctx, persistence.SuggestionUpsert{
			LeftVenue:     c.Left.Market.Venue,
			LeftMarketID:  c.Left.Market.ID,
			RightVenue:    c.Right.Market.Venue,
			RightMarketID: c.Right.Market.ID,
			Score:         c.Result.Score,
			Reason:        c.Result.Reason,
			AlgoVersion:   p.AlgoVersion(),
			Topic:         params.Topic,
			Status:        status,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert link %d->%d: %w", c.Left.Market.ID, c.Right.Market.ID, err)
		}
		res.Outcomes[outcome]++
		if o.metrics != nil {
			o.metrics.LinkUpserts.WithLabelValues(string(params.Topic), string(outcome)).Inc()
		}
	}

	res.Duration = o.now().Sub(start)
	log.Info().
		Str("topic", string(params.Topic)).
		Str("mode", string(params.Mode)).
		Int("left", res.LeftCount).
		Int("right", res.RightCount).
		Int("survivors", res.Survivors).
		Int("confirmed", res.Confirmed).
		Int("rejected", res.Rejected).
		Dur("duration", res.Duration).
		Msg("Orchestration run complete")
	return res, nil
}

// fetchBothSides loads the left and right market sets concurrently.
func (o *Orchestrator) fetchBothSides(ctx context.Context, p pipeline.Pipeline, params Params, now time.Time) (left, right []pipeline.View, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var ferr error
		left, ferr = p.FetchMarkets(gctx, o.repo, pipeline.FetchOptions{
			Venue:         params.FromVenue,
			LookbackHours: params.LookbackHours,
			Limit:         params.Limit,
			Now:           now,
		})
		if ferr != nil {
			return fmt.Errorf("fetch %s: %w", params.FromVenue, ferr)
		}
		return nil
	})
	g.Go(func() error {
		var ferr error
		right, ferr = p.FetchMarkets(gctx, o.repo, pipeline.FetchOptions{
			Venue:         params.ToVenue,
			LookbackHours: params.LookbackHours,
			Limit:         params.Limit,
			Now:           now,
		})
		if ferr != nil {
			return fmt.Errorf("fetch %s: %w", params.ToVenue, ferr)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (o *Orchestrator) countStage(topic model.Topic, stage string, n int) {
	if o.metrics != nil && n > 0 {
		o.metrics.MatchCandidates.WithLabelValues(string(topic), stage).Add(float64(n))
	}
}

// scoreBucket maps a score into the coarse reporting distribution.
func scoreBucket(score float64) string {
	switch {
	case score >= 0.9:
		return ">=0.9"
	case score >= 0.8:
		return "0.8-0.9"
	case score >= 0.7:
		return "0.7-0.8"
	case score >= 0.6:
		return "0.6-0.7"
	default:
		return "<0.6"
	}
}
