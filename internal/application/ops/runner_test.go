package ops

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/application/match"
	"github.com/predmatch/predmatch/internal/application/pipeline"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

type fakeRepo struct {
	markets      []*model.Market
	activeCounts map[model.Venue]map[model.Topic]int
	links        []*model.MarketLink
	quoteCounts  map[model.Venue]int
	ingestion    []*model.IngestionState
	watchlist    []model.WatchlistEntry

	watchlistErr error
	upserts      int
}

func newOpsRepo() *fakeRepo {
	return &fakeRepo{
		activeCounts: map[model.Venue]map[model.Topic]int{},
		quoteCounts:  map[model.Venue]int{model.VenueKalshi: 5, model.VenuePolymarket: 5},
	}
}

func (f *fakeRepo) setActive(venue model.Venue, topic model.Topic, n int) {
	if f.activeCounts[venue] == nil {
		f.activeCounts[venue] = map[model.Topic]int{}
	}
	f.activeCounts[venue][topic] = n
}

func (f *fakeRepo) CountActiveByTopic(_ context.Context, venue model.Venue, _ int) (map[model.Topic]int, error) {
	return f.activeCounts[venue], nil
}

func (f *fakeRepo) ListMarketsByDerivedTopic(_ context.Context, topic model.Topic, filters persistence.TopicFilters) ([]*model.Market, error) {
	var out []*model.Market
	for _, m := range f.markets {
		if m.DerivedTopic == topic && m.Venue == filters.Venue {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListEligibleMarkets(context.Context, persistence.ListParams) ([]*model.Market, error) {
	return nil, nil
}

func (f *fakeRepo) ListEligibleCryptoMarkets(context.Context, persistence.CryptoListParams) ([]*model.Market, error) {
	return nil, nil
}

func (f *fakeRepo) GetMarket(context.Context, int64) (*model.Market, error) { return nil, nil }

func (f *fakeRepo) UpdateMarketTaxonomy(context.Context, int64, persistence.TaxonomyUpdate) error {
	return nil
}

func (f *fakeRepo) UpsertSuggestionV3(context.Context, persistence.SuggestionUpsert) (persistence.UpsertOutcome, error) {
	f.upserts++
	return persistence.UpsertInserted, nil
}

func (f *fakeRepo) GetLink(context.Context, int64) (*model.MarketLink, error) { return nil, nil }

func (f *fakeRepo) ListLinks(_ context.Context, q persistence.LinkQuery) ([]*model.MarketLink, error) {
	var out []*model.MarketLink
	for _, l := range f.links {
		if q.Topic != "" && l.Topic != q.Topic {
			continue
		}
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRepo) UpdateLinkStatus(context.Context, int64, model.LinkStatus, string) error {
	return nil
}

func (f *fakeRepo) CountLinksByStatus(_ context.Context, topic model.Topic) (map[model.LinkStatus]int, error) {
	counts := map[model.LinkStatus]int{}
	for _, l := range f.links {
		if l.Topic == topic {
			counts[l.Status]++
		}
	}
	return counts, nil
}

func (f *fakeRepo) CountConfirmedSince(context.Context, time.Time) (int, error) { return 1, nil }

func (f *fakeRepo) GetEventsByTickers(context.Context, []string) (map[string]*model.KalshiEvent, error) {
	return map[string]*model.KalshiEvent{}, nil
}

func (f *fakeRepo) GetSeries(context.Context, string) (*model.KalshiSeries, error) { return nil, nil }

func (f *fakeRepo) UpsertEvents(context.Context, []model.KalshiEvent) (int, error) { return 0, nil }

func (f *fakeRepo) UpsertSeries(context.Context, []model.KalshiSeries) (int, error) { return 0, nil }

func (f *fakeRepo) ReplaceWatchlist(_ context.Context, entries []model.WatchlistEntry) error {
	if f.watchlistErr != nil {
		return f.watchlistErr
	}
	f.watchlist = entries
	return nil
}

func (f *fakeRepo) CountWatchlist(context.Context) (int, map[model.Venue]int, error) {
	perVenue := map[model.Venue]int{}
	for _, e := range f.watchlist {
		perVenue[e.Venue]++
	}
	return len(f.watchlist), perVenue, nil
}

func (f *fakeRepo) CountRecentQuotes(_ context.Context, venue model.Venue, _ time.Duration) (int, error) {
	return f.quoteCounts[venue], nil
}

func (f *fakeRepo) ListIngestionStates(context.Context) ([]*model.IngestionState, error) {
	return f.ingestion, nil
}

func healthyIngestion() []*model.IngestionState {
	t := time.Now().Add(-time.Minute)
	return []*model.IngestionState{
		{Venue: model.VenueKalshi, JobName: "markets", LastSuccessAt: &t},
	}
}

func withMacroOverlap(repo *fakeRepo) {
	repo.setActive(model.VenueKalshi, model.TopicMacro, 10)
	repo.setActive(model.VenuePolymarket, model.TopicMacro, 8)
	repo.markets = append(repo.markets,
		&model.Market{ID: 1, Venue: model.VenueKalshi, Title: "CPI above 3.5% for March 2026",
			Status: model.StatusActive, DerivedTopic: model.TopicMacro},
		&model.Market{ID: 2, Venue: model.VenuePolymarket, Title: "Will CPI exceed 3.5% in March 2026?",
			Status: model.StatusActive, DerivedTopic: model.TopicMacro},
	)
	repo.ingestion = healthyIngestion()
}

func newRunner(repo *fakeRepo) *Runner {
	pipeline.RegisterAllPipelines()
	return NewRunner(repo, match.NewOrchestrator(repo, nil), nil, nil, nil)
}

func TestRunDropsTopicsWithoutOverlap(t *testing.T) {
	repo := newOpsRepo()
	withMacroOverlap(repo)
	// Sports exists on one side only.
	repo.setActive(model.VenueKalshi, model.TopicSports, 4)

	runner := newRunner(repo)
	res, err := runner.Run(context.Background(), Options{
		Topics: []model.Topic{model.TopicMacro, model.TopicSports},
		Apply:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []model.Topic{model.TopicSports}, res.DroppedTopics)
	require.Contains(t, res.PerTopic, model.TopicMacro)
	assert.NotContains(t, res.PerTopic, model.TopicSports)
	assert.Equal(t, 1, res.PerTopic[model.TopicMacro].Survivors)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Healthy)
}

func TestRunAllTopicsDropped(t *testing.T) {
	repo := newOpsRepo()
	runner := newRunner(repo)

	_, err := runner.Run(context.Background(), Options{
		Topics: []model.Topic{model.TopicMacro},
	})
	assert.ErrorIs(t, err, ErrNoMatchableTopics)
}

func TestRunStepIsolation(t *testing.T) {
	repo := newOpsRepo()
	withMacroOverlap(repo)
	repo.watchlistErr = errors.New("replace failed")

	runner := newRunner(repo)
	res, err := runner.Run(context.Background(), Options{
		Topics: []model.Topic{model.TopicMacro},
		Apply:  true,
	})
	require.NoError(t, err)

	var watchlistStep, kpiStep *StepResult
	for i := range res.Steps {
		switch res.Steps[i].Name {
		case "watchlist_sync":
			watchlistStep = &res.Steps[i]
		case "kpi":
			kpiStep = &res.Steps[i]
		}
	}
	require.NotNil(t, watchlistStep)
	assert.Contains(t, watchlistStep.Err, "replace failed")
	// The KPI step still ran after the failure.
	require.NotNil(t, kpiStep)
	assert.Empty(t, kpiStep.Err)
	assert.False(t, res.Healthy)
}

func TestRunLockHeld(t *testing.T) {
	repo := newOpsRepo()
	withMacroOverlap(repo)

	locker := NewLocalLocker()
	release, ok, err := locker.Acquire(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	pipeline.RegisterAllPipelines()
	runner := NewRunner(repo, match.NewOrchestrator(repo, nil), locker, nil, nil)
	_, err = runner.Run(context.Background(), Options{Topics: []model.Topic{model.TopicMacro}})
	assert.ErrorIs(t, err, ErrLockHeld)
}

type failingSyncer struct{}

func (failingSyncer) SyncTaxonomy(context.Context) error { return fmt.Errorf("kalshi 503") }

func TestRunTaxonomyFailureDoesNotAbort(t *testing.T) {
	repo := newOpsRepo()
	withMacroOverlap(repo)

	pipeline.RegisterAllPipelines()
	runner := NewRunner(repo, match.NewOrchestrator(repo, nil), nil, failingSyncer{}, nil)
	res, err := runner.Run(context.Background(), Options{
		Topics:       []model.Topic{model.TopicMacro},
		Apply:        true,
		SyncTaxonomy: true,
	})
	require.NoError(t, err)

	assert.Contains(t, res.PerTopic, model.TopicMacro)
	assert.False(t, res.Healthy)
}

func TestSyncWatchlistPrioritiesAndCaps(t *testing.T) {
	repo := newOpsRepo()
	repo.links = []*model.MarketLink{
		{ID: 1, Topic: model.TopicCryptoDaily, Status: model.LinkConfirmed, Score: 0.96,
			LeftVenue: model.VenueKalshi, LeftMarketID: 1, RightVenue: model.VenuePolymarket, RightMarketID: 2},
		{ID: 2, Topic: model.TopicCryptoDaily, Status: model.LinkSuggested, Score: 0.90,
			LeftVenue: model.VenueKalshi, LeftMarketID: 3, RightVenue: model.VenuePolymarket, RightMarketID: 4},
		{ID: 3, Topic: model.TopicCryptoDaily, Status: model.LinkSuggested, Score: 0.72,
			LeftVenue: model.VenueKalshi, LeftMarketID: 5, RightVenue: model.VenuePolymarket, RightMarketID: 6},
	}

	n, err := syncWatchlist(context.Background(), repo, []model.Topic{model.TopicCryptoDaily}, DefaultWatchlistCaps)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	byMarket := map[int64]int{}
	for _, e := range repo.watchlist {
		byMarket[e.MarketID] = e.Priority
	}
	assert.Equal(t, model.PriorityConfirmed, byMarket[1])
	// Score 0.90 clears the crypto safe-confirm floor.
	assert.Equal(t, model.PriorityCandidateSafe, byMarket[3])
	assert.Equal(t, model.PriorityTopSuggested, byMarket[5])
}

func TestSyncWatchlistMaxSuggestedCap(t *testing.T) {
	repo := newOpsRepo()
	repo.links = []*model.MarketLink{
		{ID: 1, Topic: model.TopicMacro, Status: model.LinkSuggested, Score: 0.80,
			LeftVenue: model.VenueKalshi, LeftMarketID: 1, RightVenue: model.VenuePolymarket, RightMarketID: 2},
		{ID: 2, Topic: model.TopicMacro, Status: model.LinkSuggested, Score: 0.70,
			LeftVenue: model.VenueKalshi, LeftMarketID: 3, RightVenue: model.VenuePolymarket, RightMarketID: 4},
	}

	caps := DefaultWatchlistCaps
	caps.MaxSuggested = 2
	n, err := syncWatchlist(context.Background(), repo, []model.Topic{model.TopicMacro}, caps)
	require.NoError(t, err)
	// Two suggested slots cover only the best link's two sides.
	assert.Equal(t, 2, n)
	for _, e := range repo.watchlist {
		assert.Contains(t, e.Reason, "link:1")
	}
}

func TestKPIFlagsStaleVenueAndStuckJobs(t *testing.T) {
	repo := newOpsRepo()
	repo.quoteCounts[model.VenuePolymarket] = 0
	old := time.Now().Add(-2 * time.Hour)
	repo.ingestion = []*model.IngestionState{
		{Venue: model.VenueKalshi, JobName: "markets", LastSuccessAt: &old},
		{Venue: model.VenueKalshi, JobName: "events", ConsecutiveFailures: 6},
	}

	kpi, err := buildKPI(context.Background(), repo, []model.Topic{model.TopicMacro}, kpiOptions{Now: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, []model.Venue{model.VenuePolymarket}, kpi.StaleQuoteVenues)
	assert.Len(t, kpi.StuckJobs, 2)
	assert.False(t, kpi.Healthy)
}
