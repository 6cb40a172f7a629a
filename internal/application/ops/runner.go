// Package ops is the operational loop: preflight, per-topic orchestration,
// watchlist rebuild, quote freshness probe and the KPI summary, all under a
// single-writer lock. Steps are isolated; one failing step is recorded and
// the loop moves on.
package ops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/application/match"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/metrics"
	"github.com/predmatch/predmatch/internal/persistence"
)

// ErrNoMatchableTopics means preflight removed every requested topic.
var ErrNoMatchableTopics = errors.New("no topic has active markets on both venues")

// ErrLockHeld means another operational run is in flight.
var ErrLockHeld = errors.New("operational lock is held by another run")

const lockKey = "predmatch:ops:run"

// TaxonomySyncer is the optional collaborator for incremental event/series
// maintenance before matching. The kalshi smart sync implements it.
type TaxonomySyncer interface {
	SyncTaxonomy(ctx context.Context) error
}

// Options configures one operational run.
type Options struct {
	Topics    []model.Topic
	FromVenue model.Venue
	ToVenue   model.Venue
	// Apply false runs every orchestration in dry-run mode.
	Apply         bool
	AutoConfirm   bool
	AutoReject    bool
	LookbackHours int
	Limit         int
	SyncTaxonomy  bool
	Watchlist     WatchlistCaps
	LockTTL       time.Duration

	FreshnessWindow  time.Duration
	StuckThreshold   time.Duration
	MaxFailuresInRow int
}

// StepResult records one step's outcome. Err is a string so the result
// serializes cleanly.
type StepResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"err,omitempty"`
}

// Result is the full accounting of one run.
type Result struct {
	RunID         string                        `json:"run_id"`
	StartedAt     time.Time                     `json:"started_at"`
	Steps         []StepResult                  `json:"steps"`
	DroppedTopics []model.Topic                 `json:"dropped_topics,omitempty"`
	PerTopic      map[model.Topic]*match.Result `json:"per_topic"`
	WatchlistSize int                           `json:"watchlist_size"`
	KPI           *KPIReport                    `json:"kpi,omitempty"`
	Healthy       bool                          `json:"healthy"`
}

// Runner executes operational runs.
type Runner struct {
	repo     persistence.Repository
	orch     *match.Orchestrator
	locker   Locker
	taxonomy TaxonomySyncer
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewRunner wires the loop. taxonomy and m may be nil; a nil locker falls
// back to the in-process lock.
func NewRunner(repo persistence.Repository, orch *match.Orchestrator, locker Locker, taxonomy TaxonomySyncer, m *metrics.Registry) *Runner {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Runner{
		repo:     repo,
		orch:     orch,
		locker:   locker,
		taxonomy: taxonomy,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the loop once. The returned Result is non-nil whenever the
// lock was acquired, even if every step failed.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.FromVenue == "" {
		opts.FromVenue = model.VenueKalshi
	}
	if opts.ToVenue == "" {
		opts.ToVenue = model.VenuePolymarket
	}
	if opts.Watchlist == (WatchlistCaps{}) {
		opts.Watchlist = DefaultWatchlistCaps
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	release, ok, err := r.locker.Acquire(ctx, lockKey, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	defer release()

	if r.metrics != nil {
		r.metrics.RunsTotal.Inc()
		r.metrics.ActiveRuns.Inc()
		defer r.metrics.ActiveRuns.Dec()
	}

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		PerTopic:  map[model.Topic]*match.Result{},
	}
	log.Info().
		Str("run_id", res.RunID).
		Bool("apply", opts.Apply).
		Interface("topics", opts.Topics).
		Msg("Operational run starting")

	if err := r.step(res, "preflight", func() error {
		kept, dropped, perr := r.preflight(ctx, opts)
		res.DroppedTopics = dropped
		if perr != nil {
			return perr
		}
		opts.Topics = kept
		return nil
	}); err != nil {
		return res, err
	}

	if opts.SyncTaxonomy && r.taxonomy != nil {
		r.step(res, "taxonomy_sync", func() error {
			return r.taxonomy.SyncTaxonomy(ctx)
		})
	}

	mode := match.ModeDryRun
	if opts.Apply {
		mode = match.ModeSuggest
	}
	for _, topic := range opts.Topics {
		topic := topic
		r.step(res, "match_"+string(topic), func() error {
			out, err := r.orch.Run(ctx, match.Params{
				FromVenue:     opts.FromVenue,
				ToVenue:       opts.ToVenue,
				Topic:         topic,
				LookbackHours: opts.LookbackHours,
				Limit:         opts.Limit,
				Mode:          mode,
				AutoConfirm:   opts.AutoConfirm,
				AutoReject:    opts.AutoReject,
			})
			if err != nil {
				return err
			}
			res.PerTopic[topic] = out
			return nil
		})
	}

	r.step(res, "watchlist_sync", func() error {
		n, err := syncWatchlist(ctx, r.repo, opts.Topics, opts.Watchlist)
		if err != nil {
			return err
		}
		res.WatchlistSize = n
		return nil
	})

	r.step(res, "kpi", func() error {
		kpi, err := buildKPI(ctx, r.repo, opts.Topics, kpiOptions{
			Now:              r.now(),
			FreshnessWindow:  opts.FreshnessWindow,
			StuckThreshold:   opts.StuckThreshold,
			MaxFailuresInRow: opts.MaxFailuresInRow,
		})
		if err != nil {
			return err
		}
		res.KPI = kpi
		return nil
	})

	res.Healthy = r.healthy(res)
	log.Info().
		Str("run_id", res.RunID).
		Bool("healthy", res.Healthy).
		Int("topics", len(res.PerTopic)).
		Msg("Operational run complete")
	return res, nil
}

// preflight drops topics with zero active markets on either side.
func (r *Runner) preflight(ctx context.Context, opts Options) (kept, dropped []model.Topic, err error) {
	lookback := opts.LookbackHours
	if lookback <= 0 {
		lookback = 720
	}
	leftCounts, err := r.repo.CountActiveByTopic(ctx, opts.FromVenue, lookback)
	if err != nil {
		return nil, nil, fmt.Errorf("count %s markets: %w", opts.FromVenue, err)
	}
	rightCounts, err := r.repo.CountActiveByTopic(ctx, opts.ToVenue, lookback)
	if err != nil {
		return nil, nil, fmt.Errorf("count %s markets: %w", opts.ToVenue, err)
	}
	for _, topic := range opts.Topics {
		if leftCounts[topic] == 0 || rightCounts[topic] == 0 {
			log.Warn().
				Str("topic", string(topic)).
				Int("left", leftCounts[topic]).
				Int("right", rightCounts[topic]).
				Msg("Topic dropped, no overlap between venues")
			dropped = append(dropped, topic)
			continue
		}
		kept = append(kept, topic)
	}
	if len(kept) == 0 {
		return nil, dropped, ErrNoMatchableTopics
	}
	return kept, dropped, nil
}

// step runs fn with timing and error capture; failures never abort the run.
func (r *Runner) step(res *Result, name string, fn func() error) error {
	timer := r.metrics.StartStepTimer(name)
	start := r.now()
	err := fn()
	sr := StepResult{Name: name, Duration: r.now().Sub(start)}
	result := "success"
	if err != nil {
		sr.Err = err.Error()
		result = "error"
		log.Error().Err(err).Str("step", name).Msg("Step failed")
	}
	timer.Stop(result)
	res.Steps = append(res.Steps, sr)
	return err
}

// healthy means every step succeeded and the KPI probe found no issues.
func (r *Runner) healthy(res *Result) bool {
	for _, s := range res.Steps {
		if s.Err != "" {
			return false
		}
	}
	return res.KPI == nil || res.KPI.Healthy
}
