package match

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/application/pipeline"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

type fakeRepo struct {
	markets []*model.Market
	links   map[string]*model.MarketLink
	nextID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{links: map[string]*model.MarketLink{}}
}

func (f *fakeRepo) addMarket(id int64, venue model.Venue, topic model.Topic, title string) *model.Market {
	m := &model.Market{
		ID: id, Venue: venue, Title: title,
		Status: model.StatusActive, DerivedTopic: topic,
	}
	f.markets = append(f.markets, m)
	return m
}

func linkKey(l model.Venue, lid int64, r model.Venue, rid int64) string {
	return fmt.Sprintf("%s|%d|%s|%d", l, lid, r, rid)
}

func (f *fakeRepo) UpsertSuggestionV3(_ context.Context, s persistence.SuggestionUpsert) (persistence.UpsertOutcome, error) {
	key := linkKey(s.LeftVenue, s.LeftMarketID, s.RightVenue, s.RightMarketID)
	existing, ok := f.links[key]
	if !ok {
		f.nextID++
		f.links[key] = &model.MarketLink{
			ID: f.nextID, LeftVenue: s.LeftVenue, LeftMarketID: s.LeftMarketID,
			RightVenue: s.RightVenue, RightMarketID: s.RightMarketID,
			Score: s.Score, Status: s.Status, Reason: s.Reason,
			Topic: s.Topic, AlgoVersion: s.AlgoVersion, CreatedAt: time.Now(),
		}
		return persistence.UpsertInserted, nil
	}
	// Confirmed rows never regress to suggested.
	if existing.Status == model.LinkConfirmed && s.Status == model.LinkSuggested {
		return persistence.UpsertKept, nil
	}
	existing.Score = s.Score
	existing.Reason = s.Reason
	existing.Status = s.Status
	existing.AlgoVersion = s.AlgoVersion
	return persistence.UpsertUpdated, nil
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

func (f *fakeRepo) ListEligibleCryptoMarkets(_ context.Context, p persistence.CryptoListParams) ([]*model.Market, error) {
	var out []*model.Market
	for _, m := range f.markets {
		if m.Venue != p.Venue {
			continue
		}
		if m.DerivedTopic == model.TopicCryptoDaily || m.DerivedTopic == model.TopicCryptoIntraday {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListEligibleMarkets(context.Context, persistence.ListParams) ([]*model.Market, error) {
	return nil, nil
}

func (f *fakeRepo) GetMarket(context.Context, int64) (*model.Market, error) { return nil, nil }

func (f *fakeRepo) UpdateMarketTaxonomy(context.Context, int64, persistence.TaxonomyUpdate) error {
	return nil
}

func (f *fakeRepo) CountActiveByTopic(context.Context, model.Venue, int) (map[model.Topic]int, error) {
	return nil, nil
}

func (f *fakeRepo) GetLink(context.Context, int64) (*model.MarketLink, error) { return nil, nil }

func (f *fakeRepo) ListLinks(context.Context, persistence.LinkQuery) ([]*model.MarketLink, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateLinkStatus(context.Context, int64, model.LinkStatus, string) error {
	return nil
}

func (f *fakeRepo) CountLinksByStatus(context.Context, model.Topic) (map[model.LinkStatus]int, error) {
	return nil, nil
}

func (f *fakeRepo) CountConfirmedSince(context.Context, time.Time) (int, error) { return 0, nil }

func (f *fakeRepo) GetEventsByTickers(context.Context, []string) (map[string]*model.KalshiEvent, error) {
	return map[string]*model.KalshiEvent{}, nil
}

func (f *fakeRepo) GetSeries(context.Context, string) (*model.KalshiSeries, error) { return nil, nil }

func (f *fakeRepo) UpsertEvents(context.Context, []model.KalshiEvent) (int, error) { return 0, nil }

func (f *fakeRepo) UpsertSeries(context.Context, []model.KalshiSeries) (int, error) { return 0, nil }

func (f *fakeRepo) ReplaceWatchlist(context.Context, []model.WatchlistEntry) error { return nil }

func (f *fakeRepo) CountWatchlist(context.Context) (int, map[model.Venue]int, error) {
	return 0, nil, nil
}

func (f *fakeRepo) CountRecentQuotes(context.Context, model.Venue, time.Duration) (int, error) {
	return 0, nil
}

func (f *fakeRepo) ListIngestionStates(context.Context) ([]*model.IngestionState, error) {
	return nil, nil
}

func macroRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.addMarket(1, model.VenueKalshi, model.TopicMacro, "CPI above 3.5% for March 2026")
	repo.addMarket(2, model.VenuePolymarket, model.TopicMacro, "Will CPI exceed 3.5% in March 2026?")
	return repo
}

func macroParams(mode Mode) Params {
	return Params{
		FromVenue:   model.VenueKalshi,
		ToVenue:     model.VenuePolymarket,
		Topic:       model.TopicMacro,
		Mode:        mode,
		AutoConfirm: true,
		AutoReject:  true,
	}
}

func TestRunUnregisteredTopic(t *testing.T) {
	pipeline.RegisterAllPipelines()
	o := NewOrchestrator(newFakeRepo(), nil)
	_, err := o.Run(context.Background(), Params{Topic: model.TopicUnknown})
	assert.Error(t, err)
}

func TestRunMacroSuggestConfirms(t *testing.T) {
	pipeline.RegisterAllPipelines()
	repo := macroRepo()
	o := NewOrchestrator(repo, nil)

	res, err := o.Run(context.Background(), macroParams(ModeSuggest))
	require.NoError(t, err)

	assert.Equal(t, 1, res.LeftCount)
	assert.Equal(t, 1, res.RightCount)
	assert.Equal(t, 1, res.Survivors)
	assert.Equal(t, 1, res.Confirmed)
	assert.Equal(t, "v2.1.4", res.AlgoVersion)
	assert.Equal(t, 1, res.Outcomes[persistence.UpsertInserted])

	link := repo.links[linkKey(model.VenueKalshi, 1, model.VenuePolymarket, 2)]
	require.NotNil(t, link)
	assert.Equal(t, model.LinkConfirmed, link.Status)
	assert.Equal(t, model.TopicMacro, link.Topic)
	assert.Equal(t, "v2.1.4", link.AlgoVersion)
	assert.NotEqual(t, link.LeftVenue, link.RightVenue)
	assert.Contains(t, link.Reason, "MACRO: tier=STRONG")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	pipeline.RegisterAllPipelines()
	repo := macroRepo()
	o := NewOrchestrator(repo, nil)

	res, err := o.Run(context.Background(), macroParams(ModeDryRun))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Survivors)
	assert.Empty(t, repo.links)
	assert.Empty(t, res.Outcomes)
}

func TestRunNeverDemotesConfirmed(t *testing.T) {
	pipeline.RegisterAllPipelines()
	repo := macroRepo()
	o := NewOrchestrator(repo, nil)

	// First pass confirms the pair.
	_, err := o.Run(context.Background(), macroParams(ModeSuggest))
	require.NoError(t, err)

	// Second pass without auto-confirm would write suggested; the upsert
	// keeps the confirmed row instead.
	params := macroParams(ModeSuggest)
	params.AutoConfirm = false
	res, err := o.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Outcomes[persistence.UpsertKept])
	link := repo.links[linkKey(model.VenueKalshi, 1, model.VenuePolymarket, 2)]
	assert.Equal(t, model.LinkConfirmed, link.Status)
}

func TestRunMinScoreOverride(t *testing.T) {
	pipeline.RegisterAllPipelines()
	repo := macroRepo()
	o := NewOrchestrator(repo, nil)

	params := macroParams(ModeSuggest)
	params.MinScore = 0.99
	res, err := o.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Survivors)
	assert.Equal(t, 1, res.BelowFloor)
	assert.Empty(t, repo.links)
}

func TestRunCryptoDailyFunnel(t *testing.T) {
	pipeline.RegisterAllPipelines()
	repo := newFakeRepo()
	repo.addMarket(1, model.VenueKalshi, model.TopicCryptoDaily, "Bitcoin above $100,000 on Jan 21, 2026")
	repo.addMarket(2, model.VenuePolymarket, model.TopicCryptoDaily, "BTC above $100k Jan 21 2026")
	repo.addMarket(3, model.VenuePolymarket, model.TopicCryptoDaily, "Ethereum above $5k on Jan 21, 2026")

	o := NewOrchestrator(repo, nil)
	res, err := o.Run(context.Background(), Params{
		FromVenue: model.VenueKalshi,
		ToVenue:   model.VenuePolymarket,
		Topic:     model.TopicCryptoDaily,
		Mode:      ModeSuggest,
	})
	require.NoError(t, err)

	// The ETH market never becomes a candidate: the index keys on entity.
	assert.Equal(t, 1, res.Pairs)
	assert.Equal(t, 1, res.Survivors)
	assert.Equal(t, 1, res.Suggested)
	assert.Equal(t, 1, res.ScoreBuckets[">=0.9"]+res.ScoreBuckets["0.8-0.9"])
}

func TestScoreBucket(t *testing.T) {
	assert.Equal(t, ">=0.9", scoreBucket(0.95))
	assert.Equal(t, ">=0.9", scoreBucket(0.9))
	assert.Equal(t, "0.8-0.9", scoreBucket(0.85))
	assert.Equal(t, "0.7-0.8", scoreBucket(0.72))
	assert.Equal(t, "0.6-0.7", scoreBucket(0.60))
	assert.Equal(t, "<0.6", scoreBucket(0.30))
}
