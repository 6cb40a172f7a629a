package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
)

func TestExtractSportsFromTitle(t *testing.T) {
	ct := time.Date(2026, 1, 23, 3, 30, 0, 0, time.UTC)
	m := &model.Market{Title: "NBA: Lakers vs Celtics winner", CloseTime: &ct}
	sig := ExtractSports(m, nil)

	assert.Equal(t, "NBA", sig.League)
	// Pair is direction-free: sorted lexically.
	assert.Equal(t, "BOS", sig.TeamA)
	assert.Equal(t, "LAL", sig.TeamB)
	assert.Equal(t, TeamsFromTitle, sig.TeamsSource)
	assert.Equal(t, StartFromCloseTime, sig.StartSource)
	assert.Equal(t, SportsMoneyline, sig.MarketType)
}

func TestExtractSportsEventOverridesTitle(t *testing.T) {
	strike := time.Date(2026, 1, 23, 2, 15, 0, 0, time.UTC)
	ev := &model.KalshiEvent{
		EventTicker:  "KXNBA-26JAN23-LAL-BOS",
		SeriesTicker: "KXNBA",
		Title:        "Lakers at Celtics",
		StrikeDate:   &strike,
	}
	m := &model.Market{Title: "Will LAL win?", EventTicker: ev.EventTicker}
	sig := ExtractSports(m, ev)

	assert.Equal(t, TeamsFromEvent, sig.TeamsSource)
	assert.Equal(t, "BOS", sig.TeamA)
	assert.Equal(t, "LAL", sig.TeamB)
	assert.Equal(t, StartFromEvent, sig.StartSource)
	assert.Equal(t, time.Date(2026, 1, 23, 2, 0, 0, 0, time.UTC), sig.StartBucket)
	require.NotEmpty(t, sig.EventKey())
}

func TestExtractSportsMarketTypes(t *testing.T) {
	cases := []struct {
		title string
		want  SportsMarketType
	}{
		{"Lakers vs Celtics winner", SportsMoneyline},
		{"Chiefs cover the spread vs Bills", SportsSpread},
		{"Lakers vs Celtics total points over/under 220", SportsTotal},
		{"LeBron James to score 30+ points vs Celtics", SportsProp},
	}
	for _, tc := range cases {
		sig := ExtractSports(&model.Market{Title: tc.title}, nil)
		assert.Equal(t, tc.want, sig.MarketType, tc.title)
	}
}

func TestEventKeyRequiresTeamsAndStart(t *testing.T) {
	sig := ExtractSports(&model.Market{Title: "Lakers vs Celtics"}, nil)
	// No start time available at all: no event key.
	assert.Empty(t, sig.EventKey())
}

func TestExtractGeo(t *testing.T) {
	sig := ExtractGeo(&model.Market{Title: "Russia-Ukraine ceasefire before July 2026?"})
	assert.Contains(t, sig.Regions, "EASTERN_EUROPE")
	assert.Contains(t, sig.Countries, "RUSSIA")
	assert.Contains(t, sig.Countries, "UKRAINE")
	assert.Equal(t, GeoPeace, sig.EventType)
	assert.Equal(t, 2026, sig.Year)
}

func TestExtractEntertainment(t *testing.T) {
	sig := ExtractEntertainment(&model.Market{Title: `Will "Dune Part Three" win Best Picture at the 2027 Oscars?`})
	assert.Equal(t, AwardOscars, sig.Award)
	assert.Equal(t, "BEST_PICTURE", sig.Category)
	assert.Equal(t, 2027, sig.Year)
	assert.Equal(t, []string{"dune part three"}, sig.Nominees)
}

func TestExtractClimate(t *testing.T) {
	sig := ExtractClimate(&model.Market{Title: "Will a hurricane make landfall in Florida in September 2026?"})
	assert.Equal(t, ClimateHurricane, sig.Kind)
	assert.Equal(t, "FLORIDA", sig.RegionKey)
	assert.Equal(t, "2026-09", sig.SettleKey)
	assert.Equal(t, DateMonthEnd, sig.DateType)
}

func TestExtractInstrument(t *testing.T) {
	sig := ExtractInstrument(&model.Market{Title: "WTI crude oil above $80 in March 2026"})
	assert.Equal(t, AssetEnergy, sig.AssetClass)
	assert.Equal(t, "WTI", sig.Instrument)
	assert.Equal(t, "up", sig.Direction)
	assert.True(t, sig.HasTarget)
	assert.Equal(t, 80.0, sig.Target)
	assert.Equal(t, "2026-03", sig.SettleKey)
}

func TestExtractRatesSignals(t *testing.T) {
	sig := ExtractRates(&model.Market{Title: "Will the Fed cut rates by 25 bps at the March 2026 meeting?"})
	assert.Equal(t, BankFed, sig.Bank)
	assert.Equal(t, ActionCut, sig.Action)
	assert.Equal(t, 25, sig.Bps)
	assert.True(t, sig.HasMeeting)
	assert.Equal(t, "2026-03", sig.Meeting.Key())

	sig = ExtractRates(&model.Market{Title: "Three or more rate cuts by the Fed in 2026"})
	assert.Equal(t, 3, sig.ActionCount)
}
