package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
	"github.com/predmatch/predmatch/internal/persistence"
)

func TestEligibleWhereDefaults(t *testing.T) {
	where, args := eligibleWhere(persistence.ListParams{Venue: model.VenueKalshi})

	require.Len(t, args, 4)
	assert.Equal(t, model.VenueKalshi, args[0])
	assert.Equal(t, 60, args[1])
	assert.Equal(t, 8760, args[2])
	assert.Equal(t, 720, args[3])

	joined := strings.Join(where, " AND ")
	assert.Contains(t, joined, "venue = $1")
	assert.Contains(t, joined, "close_time >= NOW() - ($2 * INTERVAL '1 minute')")
	assert.Contains(t, joined, "close_time <= NOW() + ($3 * INTERVAL '1 hour')")
	assert.Contains(t, joined, "close_time >= NOW() - ($4 * INTERVAL '1 hour')")
}

func TestEligibleWhereKeywordsAndSports(t *testing.T) {
	where, args := eligibleWhere(persistence.ListParams{
		Venue:         model.VenuePolymarket,
		TitleKeywords: []string{"CPI", "inflation"},
		ExcludeSports: true,
	})

	joined := strings.Join(where, " AND ")
	assert.Contains(t, joined, "title ILIKE $5")
	assert.Contains(t, joined, "title ILIKE $6")
	assert.Contains(t, joined, "derived_topic <> $7")
	assert.Equal(t, "%CPI%", args[4])
	assert.Equal(t, "%inflation%", args[5])
	assert.Equal(t, model.TopicSports, args[6])
}

func TestTickerPatternEmbedsVerbatim(t *testing.T) {
	// The crypto listing composes text.TickerPattern sources straight into
	// the regex operator; the boundary form must survive untouched.
	pattern := text.TickerPattern("eth")
	assert.Equal(t, `(^|[^a-z0-9])\$?eth([^a-z0-9]|$)`, pattern)
}

func TestMarketRowMetadataDecode(t *testing.T) {
	row := marketRow{
		Market:      model.Market{ID: 7, Title: "BTC above 100k"},
		RawMetadata: []byte(`{"strike_type":"greater","cap_strike":100000}`),
	}
	m, err := row.market()
	require.NoError(t, err)
	assert.Equal(t, "greater", m.Meta("strike_type"))

	row.RawMetadata = []byte(`{broken`)
	_, err = row.market()
	assert.Error(t, err)
}

func TestMarketRowEmptyMetadata(t *testing.T) {
	row := marketRow{Market: model.Market{ID: 3}}
	m, err := row.market()
	require.NoError(t, err)
	assert.Nil(t, m.Metadata)
}
