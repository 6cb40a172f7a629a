package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

func TestCanonicalPairSwapsReversedVenues(t *testing.T) {
	up := canonicalPair(persistence.SuggestionUpsert{
		LeftVenue:     model.VenuePolymarket,
		LeftMarketID:  7,
		RightVenue:    model.VenueKalshi,
		RightMarketID: 3,
		Score:         0.91,
		Reason:        "entity=BITCOIN dateType=DAY_EXACT date=1.00(0d) num=1.00[price] text=0.40",
		Topic:         model.TopicCryptoDaily,
	})

	assert.Equal(t, model.VenueKalshi, up.LeftVenue)
	assert.Equal(t, int64(3), up.LeftMarketID)
	assert.Equal(t, model.VenuePolymarket, up.RightVenue)
	assert.Equal(t, int64(7), up.RightMarketID)
	// Everything but the pair orientation rides along untouched.
	assert.Equal(t, 0.91, up.Score)
	assert.Equal(t, model.TopicCryptoDaily, up.Topic)
}

func TestCanonicalPairKeepsCanonicalOrder(t *testing.T) {
	in := persistence.SuggestionUpsert{
		LeftVenue:     model.VenueKalshi,
		LeftMarketID:  3,
		RightVenue:    model.VenuePolymarket,
		RightMarketID: 7,
	}
	assert.Equal(t, in, canonicalPair(in))
}

func TestCanonicalPairCollapsesReversedRuns(t *testing.T) {
	// A polymarket-to-kalshi run must target the same row as the default
	// kalshi-to-polymarket run for the same market pair.
	a := canonicalPair(persistence.SuggestionUpsert{
		LeftVenue: model.VenueKalshi, LeftMarketID: 3,
		RightVenue: model.VenuePolymarket, RightMarketID: 7,
	})
	b := canonicalPair(persistence.SuggestionUpsert{
		LeftVenue: model.VenuePolymarket, LeftMarketID: 7,
		RightVenue: model.VenueKalshi, RightMarketID: 3,
	})
	assert.Equal(t, a, b)
}
