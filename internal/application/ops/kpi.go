package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// Ingestion health thresholds; overridable through config.
const (
	DefaultStuckThreshold     = 30 * time.Minute
	DefaultMaxFailuresInRow   = 5
	DefaultFreshnessWindow    = 5 * time.Minute
	confirmedRecentlyLookback = 24 * time.Hour
)

// TopicKPI is the link breakdown for one topic.
type TopicKPI struct {
	Suggested int `json:"suggested"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
}

// KPIReport is the operational health summary.
type KPIReport struct {
	GeneratedAt      time.Time                `json:"generated_at"`
	TotalSuggested   int                      `json:"total_suggested"`
	TotalConfirmed   int                      `json:"total_confirmed"`
	ConfirmedLast24h int                      `json:"confirmed_last_24h"`
	WatchlistTotal   int                      `json:"watchlist_total"`
	WatchlistByVenue map[model.Venue]int      `json:"watchlist_by_venue"`
	PerTopic         map[model.Topic]TopicKPI `json:"per_topic"`
	StaleQuoteVenues []model.Venue            `json:"stale_quote_venues,omitempty"`
	StuckJobs        []string                 `json:"stuck_jobs,omitempty"`
	Healthy          bool                     `json:"healthy"`
}

// Snapshot builds the KPI report outside an operational run, for the
// standalone KPI command. Zero thresholds get the defaults.
func Snapshot(ctx context.Context, repo persistence.Repository, topics []model.Topic, now time.Time, stuckThreshold time.Duration, maxFailuresInRow int) (*KPIReport, error) {
	return buildKPI(ctx, repo, topics, kpiOptions{
		Now:              now,
		StuckThreshold:   stuckThreshold,
		MaxFailuresInRow: maxFailuresInRow,
	})
}

// kpiOptions carries the health thresholds.
type kpiOptions struct {
	Now              time.Time
	FreshnessWindow  time.Duration
	StuckThreshold   time.Duration
	MaxFailuresInRow int
}

// buildKPI assembles the summary. Healthy means no stale venues and no
// stuck ingestion jobs; link counts are informational.
func buildKPI(ctx context.Context, repo persistence.Repository, topics []model.Topic, opts kpiOptions) (*KPIReport, error) {
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = DefaultFreshnessWindow
	}
	if opts.StuckThreshold <= 0 {
		opts.StuckThreshold = DefaultStuckThreshold
	}
	if opts.MaxFailuresInRow <= 0 {
		opts.MaxFailuresInRow = DefaultMaxFailuresInRow
	}
	report := &KPIReport{
		GeneratedAt: opts.Now,
		PerTopic:    map[model.Topic]TopicKPI{},
	}

	for _, topic := range topics {
		counts, err := repo.CountLinksByStatus(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("count links for %s: %w", topic, err)
		}
		kpi := TopicKPI{
			Suggested: counts[model.LinkSuggested],
			Confirmed: counts[model.LinkConfirmed],
			Rejected:  counts[model.LinkRejected],
		}
		report.PerTopic[topic] = kpi
		report.TotalSuggested += kpi.Suggested
		report.TotalConfirmed += kpi.Confirmed
	}

	recent, err := repo.CountConfirmedSince(ctx, opts.Now.Add(-confirmedRecentlyLookback))
	if err != nil {
		return nil, fmt.Errorf("count recent confirmations: %w", err)
	}
	report.ConfirmedLast24h = recent

	total, perVenue, err := repo.CountWatchlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("count watchlist: %w", err)
	}
	report.WatchlistTotal = total
	report.WatchlistByVenue = perVenue

	for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
		n, err := repo.CountRecentQuotes(ctx, venue, opts.FreshnessWindow)
		if err != nil {
			return nil, fmt.Errorf("count quotes for %s: %w", venue, err)
		}
		if n == 0 {
			report.StaleQuoteVenues = append(report.StaleQuoteVenues, venue)
			log.Warn().Str("venue", string(venue)).Msg("No quotes inside the freshness window")
		}
	}

	states, err := repo.ListIngestionStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingestion states: %w", err)
	}
	for _, s := range states {
		if job, stuck := stuckJob(s, opts); stuck {
			report.StuckJobs = append(report.StuckJobs, job)
		}
	}

	report.Healthy = len(report.StaleQuoteVenues) == 0 && len(report.StuckJobs) == 0
	return report, nil
}

// stuckJob flags an ingestion loop that either has not succeeded inside the
// stuck threshold or keeps failing back to back.
func stuckJob(s *model.IngestionState, opts kpiOptions) (string, bool) {
	name := fmt.Sprintf("%s/%s", s.Venue, s.JobName)
	if s.ConsecutiveFailures >= opts.MaxFailuresInRow {
		log.Warn().
			Str("job", name).
			Int("failures", s.ConsecutiveFailures).
			Msg("Ingestion job failing repeatedly")
		return name, true
	}
	if s.LastSuccessAt == nil || opts.Now.Sub(*s.LastSuccessAt) > opts.StuckThreshold {
		log.Warn().Str("job", name).Msg("Ingestion job has no recent success")
		return name, true
	}
	return "", false
}
