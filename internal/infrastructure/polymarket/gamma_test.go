package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

func gammaServer(t *testing.T) *httptest.Server {
	t.Helper()
	full := make([]map[string]any, 0, 3)
	full = append(full,
		map[string]any{
			"id":            "101",
			"question":      "Will Bitcoin reach $100,000 on August 24?",
			"conditionId":   "0xabc",
			"slug":          "bitcoin-100k-aug-24",
			"category":      "Crypto",
			"endDate":       "2026-08-24T23:59:00Z",
			"active":        true,
			"closed":        false,
			"outcomePrices": `["0.62","0.38"]`,
		},
		map[string]any{
			"id":       "102",
			"question": "Will CPI come in above 3.0% for August?",
			"category": "Economics",
			"active":   true,
			"closed":   false,
		},
		map[string]any{
			"id":       "103",
			"question": "Archived market",
			"archived": true,
			"closed":   true,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if offset >= len(full) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]any{})
			return
		}
		end := offset + limit
		if end > len(full) {
			end = len(full)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(full[offset:end])
	})
	return httptest.NewServer(mux)
}

func testAdapter(serverURL string, pageSize int) *Adapter {
	return NewAdapter(NewClient(Config{
		BaseURL:       serverURL,
		PageSize:      pageSize,
		RatePerSecond: 1000,
		Burst:         1000,
	}, nil))
}

func TestFetchMarketsMapsPayload(t *testing.T) {
	srv := gammaServer(t)
	defer srv.Close()
	a := testAdapter(srv.URL, 100)

	res, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Status: "all"})
	require.NoError(t, err)
	require.Len(t, res.Markets, 3)
	assert.Empty(t, res.NextCursor)

	m := res.Markets[0]
	assert.Equal(t, model.VenuePolymarket, m.Venue)
	assert.Equal(t, "101", m.ExternalID)
	assert.Equal(t, "Will Bitcoin reach $100,000 on August 24?", m.Title)
	assert.Equal(t, model.StatusActive, m.Status)
	require.NotNil(t, m.CloseTime)
	assert.Equal(t, 2026, m.CloseTime.Year())
	assert.Equal(t, "0xabc", m.Meta("conditionId"))
	assert.Equal(t, "bitcoin-100k-aug-24", m.Meta("slug"))

	assert.Equal(t, model.StatusArchived, res.Markets[2].Status)
}

func TestFetchMarketsPagination(t *testing.T) {
	srv := gammaServer(t)
	defer srv.Close()
	a := testAdapter(srv.URL, 2)

	first, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, first.Markets, 2)
	assert.Equal(t, "2", first.NextCursor)

	second, err := a.FetchMarkets(context.Background(), persistence.FetchParams{
		Cursor: first.NextCursor, Status: "all",
	})
	require.NoError(t, err)
	assert.Len(t, second.Markets, 1)
	assert.Empty(t, second.NextCursor)
}

func TestFetchMarketsBadCursor(t *testing.T) {
	srv := gammaServer(t)
	defer srv.Close()
	a := testAdapter(srv.URL, 100)

	_, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Cursor: "abc"})
	assert.Error(t, err)
}

func TestFetchQuotesSkipsPricelessMarkets(t *testing.T) {
	srv := gammaServer(t)
	defer srv.Close()
	a := testAdapter(srv.URL, 100)

	quotes, err := a.FetchQuotes(context.Background(), []*model.Market{
		{ID: 1, Venue: model.VenuePolymarket, ExternalID: "101"},
		{ID: 2, Venue: model.VenuePolymarket, ExternalID: "102"},
	})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(1), quotes[0].MarketID)
	assert.InDelta(t, 0.62, quotes[0].YesPrice, 1e-9)
	assert.InDelta(t, 0.38, quotes[0].NoPrice, 1e-9)
}

func TestParsePrices(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
		yes float64
	}{
		{`["0.62","0.38"]`, true, 0.62},
		{`["1","0"]`, true, 1},
		{`["0.5"]`, false, 0},
		{``, false, 0},
		{`not json`, false, 0},
	}
	for _, tc := range cases {
		yes, _, ok := parsePrices(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.InDelta(t, tc.yes, yes, 1e-9)
		}
	}
}

func TestStatusFilterValidation(t *testing.T) {
	srv := gammaServer(t)
	defer srv.Close()
	a := testAdapter(srv.URL, 100)

	_, err := a.FetchMarkets(context.Background(), persistence.FetchParams{Status: "suspended"})
	assert.Error(t, err)
}
