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
	"github.com/predmatch/predmatch/internal/persistence"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	page := map[string]any{
		"cursor": "",
		"events": []map[string]any{
			{
				"event_ticker":  "KXBTCD-25AUG24",
				"series_ticker": "KXBTCD",
				"category":      "Crypto",
				"markets": []map[string]any{
					// Nested payloads often omit event/series tickers.
					{"ticker": "KXBTCD-25AUG24-T100000", "title": "BTC above 100k", "status": "active"},
					{"ticker": "KXBTCD-25AUG24-T110000", "title": "BTC above 110k", "status": "active"},
				},
			},
			{
				"event_ticker": "KXCPI-26AUG",
				"category":     "Economics",
				"markets": []map[string]any{
					{"ticker": "KXCPI-26AUG-T3.0", "title": "CPI above 3.0%", "status": "active", "event_ticker": "KXCPI-26AUG"},
				},
			},
		},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("with_nested_markets"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
}

func TestCatalogAdapterFlattensAndBackfills(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	a := NewCatalogAdapter(syncClient(srv.URL), true)
	require.Equal(t, model.VenueKalshi, a.Venue())

	res, err := a.FetchMarkets(context.Background(), persistence.FetchParams{})
	require.NoError(t, err)
	require.Len(t, res.Markets, 3)
	assert.Empty(t, res.NextCursor)

	btc := res.Markets[0]
	assert.Equal(t, "KXBTCD-25AUG24", btc.EventTicker)
	assert.Equal(t, "KXBTCD", btc.SeriesTicker)
	assert.Equal(t, "Crypto", btc.Category)

	// No series ticker on the event either: derived from the event ticker.
	cpi := res.Markets[2]
	assert.Equal(t, "KXCPI-26AUG", cpi.EventTicker)
	assert.Equal(t, "KXCPI", cpi.SeriesTicker)
	assert.Equal(t, "Economics", cpi.Category)
}

func TestCatalogAdapterHonorsLimit(t *testing.T) {
	srv := catalogServer(t)
	defer srv.Close()

	a := NewCatalogAdapter(syncClient(srv.URL), true)
	res, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Markets, 2)
}
