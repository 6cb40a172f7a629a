package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

func f(v float64) *float64 { return &v }

// marketsServer serves two pages of /markets.
func marketsServer(t *testing.T) *httptest.Server {
	t.Helper()
	pageOne := map[string]any{
		"cursor": "next",
		"markets": []map[string]any{
			{
				"ticker":       "KXBTCD-25AUG24-T100000",
				"event_ticker": "KXBTCD-25AUG24",
				"title":        "Bitcoin above $100,000 today?",
				"status":       "active",
				"close_time":   "2025-08-24T21:00:00Z",
				"category":     "Crypto",
				"yes_bid":      f(61), "yes_ask": f(63),
				"no_bid": f(37), "no_ask": f(39),
				"strike_type": "greater",
				"cap_strike":  f(100000),
			},
			{
				"ticker":       "KXCPI-26AUG-T3.0",
				"event_ticker": "KXCPI-26AUG",
				"title":        "CPI above 3.0%?",
				"status":       "settled",
			},
		},
	}
	pageTwo := map[string]any{
		"cursor": "",
		"markets": []map[string]any{
			{
				"ticker":       "KXETH-25AUG24-T4000",
				"event_ticker": "KXETH-25AUG24",
				"title":        "Ethereum above $4,000 today?",
				"status":       "active",
				"yes_bid":      f(40), "yes_ask": f(44),
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "next" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(pageTwo)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pageOne)
	})
	return httptest.NewServer(mux)
}

func TestAdapterFetchMarketsMapsPayloads(t *testing.T) {
	srv := marketsServer(t)
	defer srv.Close()
	a := NewAdapter(syncClient(srv.URL))

	res, err := a.FetchMarkets(context.Background(), persistence.FetchParams{})
	require.NoError(t, err)

	assert.Equal(t, "next", res.NextCursor)
	require.Len(t, res.Markets, 2)

	btc := res.Markets[0]
	assert.Equal(t, model.VenueKalshi, btc.Venue)
	assert.Equal(t, "KXBTCD-25AUG24-T100000", btc.ExternalID)
	assert.Equal(t, model.StatusActive, btc.Status)
	assert.Equal(t, "KXBTCD", btc.SeriesTicker)
	require.NotNil(t, btc.CloseTime)
	assert.Equal(t, 21, btc.CloseTime.UTC().Hour())
	assert.Equal(t, "greater", btc.Meta("strike_type"))
	assert.Equal(t, float64(100000), btc.Metadata["cap_strike"])

	cpi := res.Markets[1]
	assert.Equal(t, model.StatusResolved, cpi.Status)
	assert.Nil(t, cpi.CloseTime)
}

func TestAdapterFetchMarketsHonorsLimit(t *testing.T) {
	srv := marketsServer(t)
	defer srv.Close()
	a := NewAdapter(syncClient(srv.URL))

	res, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Markets, 1)
}

func TestAdapterFetchQuotesPagesAndSkipsOneSided(t *testing.T) {
	srv := marketsServer(t)
	defer srv.Close()
	a := NewAdapter(syncClient(srv.URL))
	observed := time.Date(2025, 8, 24, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return observed }

	quotes, err := a.FetchQuotes(context.Background(), []*model.Market{
		{ID: 1, ExternalID: "KXBTCD-25AUG24-T100000"},
		{ID: 2, ExternalID: "KXCPI-26AUG-T3.0"},    // no book
		{ID: 3, ExternalID: "KXETH-25AUG24-T4000"}, // page two, no no-book
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, int64(1), quotes[0].MarketID)
	assert.InDelta(t, 0.62, quotes[0].YesPrice, 1e-9)
	assert.InDelta(t, 0.38, quotes[0].NoPrice, 1e-9)
	assert.Equal(t, observed, quotes[0].ObservedAt)

	// Missing no-book falls back to the yes complement.
	assert.Equal(t, int64(3), quotes[1].MarketID)
	assert.InDelta(t, 0.42, quotes[1].YesPrice, 1e-9)
	assert.InDelta(t, 0.58, quotes[1].NoPrice, 1e-9)
}

func TestMapStatus(t *testing.T) {
	cases := map[string]model.MarketStatus{
		"active":     model.StatusActive,
		"open":       model.StatusActive,
		"closed":     model.StatusClosed,
		"inactive":   model.StatusClosed,
		"settled":    model.StatusResolved,
		"finalized":  model.StatusResolved,
		"determined": model.StatusResolved,
		"delisted":   model.StatusArchived,
	}
	for raw, want := range cases {
		assert.Equal(t, want, mapStatus(raw), raw)
	}
}

func TestSeriesFromEvent(t *testing.T) {
	assert.Equal(t, "KXBTCD", seriesFromEvent("KXBTCD-25AUG24"))
	assert.Equal(t, "KXBTCD", seriesFromEvent("KXBTCD"))
	assert.Equal(t, "", seriesFromEvent(""))
}
