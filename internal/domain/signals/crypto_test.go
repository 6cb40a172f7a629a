package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

func TestExtractCryptoEntity(t *testing.T) {
	cases := []struct {
		title string
		want  CryptoEntity
	}{
		{"Bitcoin above $100,000 on Jan 21, 2026", EntityBitcoin},
		{"$ETH to $5000", EntityEthereum},
		{"buy eth now", EntityEthereum},
		{"SOL above $300", EntitySolana},
		{"Dogecoin to $1", EntityDogecoin},
		{"XRP flips to $5", EntityXRP},
		{"Pete Hegseth nomination", EntityUnknown},
		{"a solution for solar power", EntityUnknown},
		{"Kenneth wins the award", EntityUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractCryptoEntity(tc.title), tc.title)
	}
}

func TestExtractCryptoDaily(t *testing.T) {
	m := &model.Market{
		Venue:        model.VenueKalshi,
		Title:        "Bitcoin above $100,000 on Jan 21, 2026",
		DerivedTopic: model.TopicCryptoDaily,
	}
	sig := ExtractCrypto(m)

	assert.Equal(t, EntityBitcoin, sig.Entity)
	assert.Equal(t, DateDayExact, sig.DateType)
	assert.Equal(t, "2026-01-21", sig.SettleDate)
	assert.Equal(t, TypeDailyThreshold, sig.MarketType)
	assert.Equal(t, text.CompGE, sig.Comparator)

	min, max, ok := sig.PriceRange()
	require.True(t, ok)
	assert.Equal(t, 100000.0, min)
	assert.Equal(t, 100000.0, max)
}

func TestExtractCryptoMonthEnd(t *testing.T) {
	m := &model.Market{Title: "Ethereum above $5k by March 2026", DerivedTopic: model.TopicCryptoDaily}
	sig := ExtractCrypto(m)
	assert.Equal(t, DateMonthEnd, sig.DateType)
	assert.Equal(t, "2026-03", sig.SettlePeriod)
	assert.Equal(t, "2026-03-31", sig.SettleDate)
}

func TestExtractCryptoRange(t *testing.T) {
	m := &model.Market{Title: "Bitcoin between $99k and $101k on Jan 21, 2026", DerivedTopic: model.TopicCryptoDaily}
	sig := ExtractCrypto(m)
	assert.Equal(t, TypeDailyRange, sig.MarketType)
	min, max, ok := sig.PriceRange()
	require.True(t, ok)
	assert.Equal(t, 99000.0, min)
	assert.Equal(t, 101000.0, max)
}

func TestExtractCryptoCloseTimeFallback(t *testing.T) {
	ct := time.Date(2026, 1, 21, 22, 0, 0, 0, time.UTC)
	m := &model.Market{Title: "Bitcoin above $100k today", CloseTime: &ct, DerivedTopic: model.TopicCryptoDaily}
	sig := ExtractCrypto(m)
	assert.Equal(t, DateCloseTime, sig.DateType)
	assert.Equal(t, "2026-01-21", sig.SettleDate)
}

func TestExtractCryptoIntraday(t *testing.T) {
	ct := time.Date(2026, 1, 21, 15, 30, 0, 0, time.UTC)
	m := &model.Market{Title: "Bitcoin up or down at 3pm ET?", CloseTime: &ct, DerivedTopic: model.TopicCryptoIntraday}
	sig := ExtractCrypto(m)
	assert.True(t, sig.Intraday())
	assert.Equal(t, time.Date(2026, 1, 21, 15, 0, 0, 0, time.UTC), sig.TimeBucket)
}

func TestExtractCryptoYearly(t *testing.T) {
	m := &model.Market{Title: "Bitcoin above $150k in 2026?", DerivedTopic: model.TopicCryptoDaily}
	sig := ExtractCrypto(m)
	assert.Equal(t, TypeYearlyThreshold, sig.MarketType)
	assert.Equal(t, "2026-12-31", sig.SettleDate)
}
