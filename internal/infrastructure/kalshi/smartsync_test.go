package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
)

type fakeEventRepo struct {
	events []model.KalshiEvent
	series []model.KalshiSeries
}

func (r *fakeEventRepo) GetEventsByTickers(context.Context, []string) (map[string]*model.KalshiEvent, error) {
	return nil, nil
}

func (r *fakeEventRepo) GetSeries(context.Context, string) (*model.KalshiSeries, error) {
	return nil, nil
}

func (r *fakeEventRepo) UpsertEvents(_ context.Context, events []model.KalshiEvent) (int, error) {
	r.events = append(r.events, events...)
	return len(events), nil
}

func (r *fakeEventRepo) UpsertSeries(_ context.Context, series []model.KalshiSeries) (int, error) {
	r.series = append(r.series, series...)
	return len(series), nil
}

// syncServer serves two pages of open events plus the series lookups the
// sync makes for them.
func syncServer(t *testing.T) *httptest.Server {
	t.Helper()
	pageOne := map[string]any{
		"cursor": "page2",
		"events": []map[string]any{
			{
				"event_ticker":  "KXBTCD-25AUG24",
				"series_ticker": "KXBTCD",
				"title":         "Bitcoin price today",
				"category":      "Crypto",
				"markets": []map[string]any{
					{"ticker": "KXBTCD-25AUG24-T100000", "title": "BTC above 100k"},
					{"ticker": "KXBTCD-25AUG24-T110000", "title": "BTC above 110k"},
				},
			},
			{
				"event_ticker":  "KXMVELECT-26",
				"series_ticker": "KXMVELECT",
				"title":         "Joint election outcome",
				"category":      "Politics",
				"markets": []map[string]any{
					{"ticker": "KXMVELECT-26-A"},
				},
			},
		},
	}
	pageTwo := map[string]any{
		"cursor": "",
		"events": []map[string]any{
			{
				"event_ticker":       "KXCPI-26AUG",
				"series_ticker":      "KXCPI",
				"title":              "CPI for August",
				"category":           "Economics",
				"mutually_exclusive": true,
				"markets": []map[string]any{
					{"ticker": "KXCPI-26AUG-T3.0"},
				},
			},
		},
	}
	seriesByTicker := map[string]map[string]any{
		"KXBTCD": {"series": map[string]any{
			"ticker": "KXBTCD", "title": "Bitcoin daily", "category": "Crypto", "frequency": "daily",
		}},
		"KXCPI": {"series": map[string]any{
			"ticker": "KXCPI", "title": "CPI monthly", "category": "Economics", "frequency": "monthly",
		}},
		"KXMVELECT": {"series": map[string]any{
			"ticker": "KXMVELECT", "title": "Election multivariate", "category": "Politics",
		}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "true", r.URL.Query().Get("with_nested_markets"))
		if r.URL.Query().Get("cursor") == "page2" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(pageTwo)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pageOne)
	})
	mux.HandleFunc("/series/", func(w http.ResponseWriter, r *http.Request) {
		ticker := r.URL.Path[len("/series/"):]
		payload, ok := seriesByTicker[ticker]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})
	return httptest.NewServer(mux)
}

func syncClient(serverURL string) *Client {
	return NewClient(Config{BaseURL: serverURL, RatePerSecond: 1000, Burst: 1000}, nil, nil)
}

func TestSmartSyncDryRunWritesNothing(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Applied)
	assert.Equal(t, 2, report.PagesFetched)
	assert.Equal(t, 3, report.EventsSeen)
	assert.Equal(t, 3, report.EventsKept)
	assert.Equal(t, 4, report.MarketsSeen)
	assert.Empty(t, repo.events)
	assert.Empty(t, repo.series)
}

func TestSmartSyncApplyUpserts(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{Apply: true})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.EventsUpserted)
	assert.Equal(t, 3, report.SeriesUpserted)
	require.Len(t, repo.events, 3)
	assert.Equal(t, "KXBTCD-25AUG24", repo.events[0].EventTicker)
	assert.Equal(t, 2, repo.events[0].MarketCount)

	// Series arrive sorted by ticker.
	require.Len(t, repo.series, 3)
	assert.Equal(t, "KXBTCD", repo.series[0].SeriesTicker)
	assert.Equal(t, "daily", repo.series[0].Frequency)
}

func TestSmartSyncNonMveOnlySkipsKXMV(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{NonMveOnly: true, Apply: true})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedMve)
	assert.Equal(t, 2, report.EventsKept)
	for _, ev := range repo.events {
		assert.NotContains(t, ev.SeriesTicker, "KXMV")
	}
}

func TestSmartSyncCategoryFilter(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{
		SeriesCategories: []string{"economics"},
		Apply:            true,
	})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventsKept)
	assert.Equal(t, 2, report.SkippedFilter)
	require.Len(t, repo.events, 1)
	assert.Equal(t, "KXCPI-26AUG", repo.events[0].EventTicker)
	assert.True(t, repo.events[0].MutuallyExclusive)
}

func TestSmartSyncSeriesTickerFilter(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{
		SeriesTickers: []string{"kxbtcd"},
		Apply:         true,
	})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.EventsKept)
	require.Len(t, repo.series, 1)
	assert.Equal(t, "KXBTCD", repo.series[0].SeriesTicker)
}

func TestSmartSyncGlobalMarketCap(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{GlobalCapMarkets: 2})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.CapReached)
	assert.Equal(t, 1, report.EventsKept)
	assert.Equal(t, 1, report.PagesFetched)
}

func TestSmartSyncMaxPages(t *testing.T) {
	srv := syncServer(t)
	defer srv.Close()
	repo := &fakeEventRepo{}

	sync := NewSmartSync(syncClient(srv.URL), repo, SyncConfig{MaxPages: 1})
	report, err := sync.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.PagesFetched)
	assert.Equal(t, 2, report.EventsSeen)
}

func TestSmartSyncRejectsBadStatus(t *testing.T) {
	sync := NewSmartSync(syncClient("http://unused"), &fakeEventRepo{}, SyncConfig{
		Statuses: []string{"open", "expired"},
	})
	_, err := sync.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
