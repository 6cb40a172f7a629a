package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoDailyReasonRoundTrip(t *testing.T) {
	in := "entity=BITCOIN dateType=DAY_EXACT date=1.00(0d) num=0.95[price] text=0.40"
	r, err := ParseCryptoDailyReason(in)
	require.NoError(t, err)
	assert.Equal(t, "BITCOIN", r.Entity)
	assert.Equal(t, "DAY_EXACT", r.DateType)
	assert.Equal(t, 1.00, r.DateScore)
	assert.Equal(t, 0, r.DayDiff)
	assert.Equal(t, 0.95, r.NumScore)
	assert.Equal(t, "price", r.NumContext)
	assert.Equal(t, 0.40, r.TextScore)
	assert.Equal(t, in, r.String())
}

func TestCryptoDailyReasonNegativeDrift(t *testing.T) {
	in := "entity=ETHEREUM dateType=CLOSE_TIME date=0.60(-1d) num=0.50[threshold] text=0.22"
	r, err := ParseCryptoDailyReason(in)
	require.NoError(t, err)
	assert.Equal(t, -1, r.DayDiff)
	assert.Equal(t, in, r.String())
}

func TestMacroReasonRoundTrip(t *testing.T) {
	in := "MACRO: tier=STRONG me=1.00 per=0.95[exact](2026-03/2026-03) num=0.90 txt=0.35"
	r, err := ParseMacroReason(in)
	require.NoError(t, err)
	assert.Equal(t, "STRONG", r.Tier)
	assert.Equal(t, "exact", r.PeriodKind)
	assert.Equal(t, "2026-03", r.PeriodLeft)
	assert.Equal(t, "2026-03", r.PeriodRight)
	assert.Equal(t, 0.95, r.PerScore)
	assert.Equal(t, in, r.String())
}

func TestMacroReasonMonthInQuarter(t *testing.T) {
	in := "MACRO: tier=STRONG me=1.00 per=0.28[month_in_quarter](2026-03/2026-Q1) num=0.50 txt=0.20"
	r, err := ParseMacroReason(in)
	require.NoError(t, err)
	assert.Equal(t, "month_in_quarter", r.PeriodKind)
	assert.Equal(t, "2026-Q1", r.PeriodRight)
	assert.Equal(t, in, r.String())
}

func TestElectionsReasonRoundTrip(t *testing.T) {
	in := "ELECTIONS: tier=STRONG race=US|PRESIDENT|2024 country=1.00 office=1.00 year=1.00 cand=1.00 text=0.60"
	r, err := ParseElectionsReason(in)
	require.NoError(t, err)
	assert.Equal(t, "US|PRESIDENT|2024", r.RaceKey)
	assert.Equal(t, 1.00, r.CountryScore)
	assert.Equal(t, in, r.String())
}

func TestGenericReasonRoundTrip(t *testing.T) {
	in := "RATES: tier=WEAK bank=FED action=HIKE meet=2026-03(2026-03/2026-03) mag=0.50 text=0.30"
	r, err := ParseGenericReason(in)
	require.NoError(t, err)
	assert.Equal(t, "RATES", r.Header)
	assert.Equal(t, "FED", r.Get("bank"))
	assert.Equal(t, 0.50, r.Float("mag"))
	assert.Equal(t, in, r.String())
}

func TestParseRejectsWrongGrammar(t *testing.T) {
	_, err := ParseCryptoDailyReason("MACRO: tier=STRONG me=1.00 per=0.95[exact](a/b) num=0.90 txt=0.35")
	assert.Error(t, err)
	_, err = ParseMacroReason("entity=BITCOIN dateType=DAY_EXACT date=1.00(0d) num=0.95[price] text=0.40")
	assert.Error(t, err)
	_, err = ParseGenericReason("no header here")
	assert.Error(t, err)
}

func TestRewrittenReasons(t *testing.T) {
	c := ConfirmedReason("v2.6.8", "CRYPTO_DAILY", "exact_date_number_tolerance")
	assert.Equal(t, "auto_confirm@v2.6.8:CRYPTO_DAILY:exact_date_number_tolerance", c)
	assert.True(t, AlreadyProcessed(c))

	rej := RejectedReason(RejectPackVersion, []string{"below_hard_floor", "entity_mismatch"})
	assert.Equal(t, "auto_reject@v1.9.3:below_hard_floor+entity_mismatch", rej)
	assert.True(t, AlreadyProcessed(rej))

	assert.False(t, AlreadyProcessed("entity=BITCOIN dateType=DAY_EXACT date=1.00(0d) num=0.95[price] text=0.40"))
}
