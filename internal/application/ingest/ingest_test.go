package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

type fakeStore struct {
	events    map[string]*model.KalshiEvent
	series    map[string]*model.KalshiSeries
	watchlist map[model.Venue][]model.WatchlistEntry
	markets   map[int64]*model.Market
	latest    map[model.Venue]map[int64]model.Quote

	upserted []*model.Market
	inserted []model.Quote
	states   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:    map[string]*model.KalshiEvent{},
		series:    map[string]*model.KalshiSeries{},
		watchlist: map[model.Venue][]model.WatchlistEntry{},
		markets:   map[int64]*model.Market{},
		latest:    map[model.Venue]map[int64]model.Quote{},
	}
}

func (s *fakeStore) UpsertMarkets(_ context.Context, markets []*model.Market) (int, error) {
	s.upserted = append(s.upserted, markets...)
	return len(markets), nil
}

func (s *fakeStore) GetEventsByTickers(_ context.Context, tickers []string) (map[string]*model.KalshiEvent, error) {
	out := map[string]*model.KalshiEvent{}
	for _, t := range tickers {
		if ev, ok := s.events[t]; ok {
			out[t] = ev
		}
	}
	return out, nil
}

func (s *fakeStore) GetSeries(_ context.Context, ticker string) (*model.KalshiSeries, error) {
	return s.series[ticker], nil
}

func (s *fakeStore) ListWatchlist(_ context.Context, venue model.Venue) ([]model.WatchlistEntry, error) {
	return s.watchlist[venue], nil
}

func (s *fakeStore) GetMarketsByIDs(_ context.Context, ids []int64) ([]*model.Market, error) {
	var out []*model.Market
	for _, id := range ids {
		if m, ok := s.markets[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestQuotes(_ context.Context, venue model.Venue) (map[int64]model.Quote, error) {
	return s.latest[venue], nil
}

func (s *fakeStore) InsertQuotes(_ context.Context, quotes []model.Quote) (int, error) {
	s.inserted = append(s.inserted, quotes...)
	return len(quotes), nil
}

func (s *fakeStore) RecordIngestionResult(_ context.Context, venue model.Venue, job string, runErr error) error {
	outcome := "ok"
	if runErr != nil {
		outcome = "fail"
	}
	s.states = append(s.states, string(venue)+"/"+job+"/"+outcome)
	return nil
}

type fakeAdapter struct {
	venue  model.Venue
	pages  []persistence.FetchResult
	quotes []model.Quote
	err    error
	calls  int
}

func (a *fakeAdapter) Venue() model.Venue { return a.venue }

func (a *fakeAdapter) FetchMarkets(_ context.Context, p persistence.FetchParams) (persistence.FetchResult, error) {
	if a.err != nil {
		return persistence.FetchResult{}, a.err
	}
	i := a.calls
	a.calls++
	if i >= len(a.pages) {
		return persistence.FetchResult{}, nil
	}
	return a.pages[i], nil
}

func (a *fakeAdapter) FetchQuotes(context.Context, []*model.Market) ([]model.Quote, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.quotes, nil
}

func kalshiMarket(external, event, title string) *model.Market {
	return &model.Market{
		Venue:        model.VenueKalshi,
		ExternalID:   external,
		EventTicker:  event,
		SeriesTicker: seriesOf(event),
		Title:        title,
		Status:       model.StatusActive,
	}
}

func seriesOf(event string) string {
	for i := 0; i < len(event); i++ {
		if event[i] == '-' {
			return event[:i]
		}
	}
	return event
}

func TestMarketsClassifiesBeforeUpsert(t *testing.T) {
	store := newFakeStore()
	adapter := &fakeAdapter{
		venue: model.VenueKalshi,
		pages: []persistence.FetchResult{
			{
				Markets: []*model.Market{
					kalshiMarket("KXBTCD-25AUG24-T100000", "KXBTCD-25AUG24", "Bitcoin above $100,000 today?"),
					kalshiMarket("KXMVNBA-25-A", "KXMVNBA-25", "Lakers and Celtics both win their NBA games"),
					kalshiMarket("OTHER-1", "OTHER-1X", "Will it happen?"),
				},
				NextCursor: "p2",
			},
			{
				Markets: []*model.Market{
					kalshiMarket("KXCPI-26AUG-T3.0", "KXCPI-26AUG", "CPI above 3.0% in August?"),
				},
			},
		},
	}

	report, err := Markets(context.Background(), store, store, adapter, MarketsOptions{Apply: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 4, report.Upserted)
	assert.Equal(t, 1, report.ByTopic[model.TopicCryptoDaily])
	assert.Equal(t, 1, report.ByTopic[model.TopicMacro])
	assert.Equal(t, 1, report.ByTopic[model.TopicSports])
	assert.Equal(t, 1, report.ByTopic[model.TopicUnknown])
	assert.Equal(t, 1, report.Mve)

	require.Len(t, store.upserted, 4)
	btc := store.upserted[0]
	assert.Equal(t, model.TopicCryptoDaily, btc.DerivedTopic)
	assert.Equal(t, model.SourceTickerPattern, btc.TaxonomySource)
	assert.Equal(t, []string{"kalshi/markets/ok"}, store.states)
}

func TestMarketsDryRunWritesNothing(t *testing.T) {
	store := newFakeStore()
	adapter := &fakeAdapter{
		venue: model.VenuePolymarket,
		pages: []persistence.FetchResult{
			{Markets: []*model.Market{{Venue: model.VenuePolymarket, ExternalID: "1", Title: "Bitcoin above $100k?"}}},
		},
	}

	report, err := Markets(context.Background(), store, store, adapter, MarketsOptions{})
	require.NoError(t, err)

	assert.False(t, report.Applied)
	assert.Equal(t, 1, report.ByTopic[model.TopicCryptoDaily])
	assert.Empty(t, store.upserted)
	assert.Empty(t, store.states)
}

func TestMarketsHonorsCaps(t *testing.T) {
	page := persistence.FetchResult{
		Markets:    []*model.Market{kalshiMarket("KXBTCD-1", "KXBTCD-25", "Bitcoin up?")},
		NextCursor: "more",
	}
	store := newFakeStore()
	adapter := &fakeAdapter{venue: model.VenueKalshi, pages: []persistence.FetchResult{page, page, page}}

	report, err := Markets(context.Background(), store, store, adapter, MarketsOptions{MaxPages: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pages)

	adapter = &fakeAdapter{venue: model.VenueKalshi, pages: []persistence.FetchResult{page, page, page}}
	report, err = Markets(context.Background(), store, store, adapter, MarketsOptions{GlobalCap: 2})
	require.NoError(t, err)
	assert.True(t, report.CapReached)
	assert.Equal(t, 2, report.Fetched)
}

func TestMarketsRecordsFailure(t *testing.T) {
	store := newFakeStore()
	adapter := &fakeAdapter{venue: model.VenueKalshi, err: errors.New("boom")}

	_, err := Markets(context.Background(), store, store, adapter, MarketsOptions{Apply: true})
	require.Error(t, err)
	assert.Equal(t, []string{"kalshi/markets/fail"}, store.states)
}

func quoteAt(id int64, yes float64, at time.Time) model.Quote {
	return model.Quote{Venue: model.VenueKalshi, MarketID: id, YesPrice: yes, NoPrice: 1 - yes, ObservedAt: at}
}

func TestQuotesHeartbeatRule(t *testing.T) {
	now := time.Date(2025, 8, 24, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.watchlist[model.VenueKalshi] = []model.WatchlistEntry{
		{Venue: model.VenueKalshi, MarketID: 1},
		{Venue: model.VenueKalshi, MarketID: 2},
		{Venue: model.VenueKalshi, MarketID: 3},
		{Venue: model.VenueKalshi, MarketID: 4},
	}
	for id := int64(1); id <= 4; id++ {
		store.markets[id] = &model.Market{ID: id, Venue: model.VenueKalshi}
	}
	store.latest[model.VenueKalshi] = map[int64]model.Quote{
		2: quoteAt(2, 0.50, now.Add(-time.Minute)),    // unchanged, fresh: skip
		3: quoteAt(3, 0.50, now.Add(-10*time.Minute)), // unchanged, stale: heartbeat
		4: quoteAt(4, 0.40, now.Add(-time.Minute)),    // moved: record
	}

	adapter := &fakeAdapter{
		venue: model.VenueKalshi,
		quotes: []model.Quote{
			quoteAt(1, 0.60, now), // no prior quote
			quoteAt(2, 0.50, now),
			quoteAt(3, 0.50, now),
			quoteAt(4, 0.45, now),
		},
	}

	report, err := Quotes(context.Background(), store, store, []persistence.Adapter{adapter}, QuotesOptions{
		Interval: 5 * time.Minute,
		Apply:    true,
	})
	require.NoError(t, err)

	vq := report.PerVenue[model.VenueKalshi]
	require.NotNil(t, vq)
	assert.Equal(t, 4, vq.Watched)
	assert.Equal(t, 4, vq.Fetched)
	assert.Equal(t, 3, vq.Recorded)
	assert.Equal(t, 1, vq.Heartbeat)

	ids := make([]int64, 0, len(store.inserted))
	for _, q := range store.inserted {
		ids = append(ids, q.MarketID)
	}
	assert.ElementsMatch(t, []int64{1, 3, 4}, ids)
	assert.Equal(t, []string{"kalshi/quotes/ok"}, store.states)
}

func TestQuotesIsolatesVenueFailure(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.watchlist[model.VenueKalshi] = []model.WatchlistEntry{{Venue: model.VenueKalshi, MarketID: 1}}
	store.watchlist[model.VenuePolymarket] = []model.WatchlistEntry{{Venue: model.VenuePolymarket, MarketID: 2}}
	store.markets[1] = &model.Market{ID: 1, Venue: model.VenueKalshi}
	store.markets[2] = &model.Market{ID: 2, Venue: model.VenuePolymarket}

	broken := &fakeAdapter{venue: model.VenueKalshi, err: errors.New("feed down")}
	healthy := &fakeAdapter{
		venue: model.VenuePolymarket,
		quotes: []model.Quote{
			{Venue: model.VenuePolymarket, MarketID: 2, YesPrice: 0.3, NoPrice: 0.7, ObservedAt: now},
		},
	}

	report, err := Quotes(context.Background(), store, store, []persistence.Adapter{broken, healthy}, QuotesOptions{Apply: true})
	require.Error(t, err)

	assert.NotEmpty(t, report.PerVenue[model.VenueKalshi].Err)
	assert.Equal(t, 1, report.PerVenue[model.VenuePolymarket].Recorded)
	assert.ElementsMatch(t, []string{"kalshi/quotes/fail", "polymarket/quotes/ok"}, store.states)
}

func TestQuotesDryRunCountsOnly(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.watchlist[model.VenueKalshi] = []model.WatchlistEntry{{Venue: model.VenueKalshi, MarketID: 1}}
	store.markets[1] = &model.Market{ID: 1, Venue: model.VenueKalshi}
	adapter := &fakeAdapter{venue: model.VenueKalshi, quotes: []model.Quote{quoteAt(1, 0.6, now)}}

	report, err := Quotes(context.Background(), store, store, []persistence.Adapter{adapter}, QuotesOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.PerVenue[model.VenueKalshi].Recorded)
	assert.Empty(t, store.inserted)
	assert.Empty(t, store.states)
}
