package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"bitcoin", "above", "100", "000", "on", "jan", "21"},
		Tokenize("Bitcoin above $100,000 on Jan 21?"))
	assert.Empty(t, Tokenize("!!!"))
}

func TestTickerBoundaries(t *testing.T) {
	positives := []string{"ETH price", "$ETH", "buy eth", "ETH!", "eth"}
	for _, s := range positives {
		assert.True(t, MatchesTicker(s, "eth"), "expected ticker match in %q", s)
	}
	negatives := []string{"Hegseth", "Kenneth", "methane", "Pete Hegseth nomination"}
	for _, s := range negatives {
		assert.False(t, MatchesTicker(s, "eth"), "unexpected ticker match in %q", s)
	}

	assert.True(t, MatchesTicker("SOL to $500", "sol"))
	assert.False(t, MatchesTicker("a solution for solar", "sol"))
	assert.True(t, MatchesTicker("will btc dip", "btc"))
	assert.True(t, MatchesName("Bitcoin above $100k", "bitcoin"))
}

func TestExtractComparator(t *testing.T) {
	cases := []struct {
		title string
		want  Comparator
	}{
		{"above $100k", CompGE},
		{"Bitcoin over 100000 by March", CompGE},
		{"below $100k", CompLE},
		{"under 3.5%", CompLE},
		{"between $99k and $101k", CompBetween},
		{"exactly 3 rate cuts", CompEQ},
		{"CPI equal to 2.9%", CompEQ},
		{"Who wins the election", CompUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractComparator(tc.title), tc.title)
	}
}

func TestComparatorCompatibility(t *testing.T) {
	assert.False(t, CompGE.Compatible(CompLE))
	assert.False(t, CompLE.Compatible(CompGE))
	assert.True(t, CompGE.Compatible(CompGE))
	assert.True(t, CompUnknown.Compatible(CompLE))
	assert.True(t, CompBetween.Compatible(CompGE))
}

func TestExtractDates(t *testing.T) {
	refs := ExtractDates("Bitcoin above $100,000 on Jan 21, 2026")
	require.Len(t, refs, 1)
	assert.Equal(t, DateRef{Year: 2026, Month: 1, Day: 21, Precision: PrecisionDay, Raw: "Jan 21, 2026"}, refs[0])
	assert.Equal(t, "2026-01-21", refs[0].Key())

	refs = ExtractDates("GDP growth in Q3 2025")
	require.Len(t, refs, 1)
	assert.Equal(t, PrecisionQuarter, refs[0].Precision)
	assert.Equal(t, "2025-Q3", refs[0].Key())

	refs = ExtractDates("CPI for March 2026")
	require.Len(t, refs, 1)
	assert.Equal(t, PrecisionMonth, refs[0].Precision)
	assert.Equal(t, "2026-03", refs[0].Key())

	refs = ExtractDates("2024 US Presidential Election")
	require.Len(t, refs, 1)
	assert.Equal(t, PrecisionYear, refs[0].Precision)

	// A day-precision span must not re-report as month or year.
	refs = ExtractDates("settles 2026-01-21")
	require.Len(t, refs, 1)
	assert.Equal(t, PrecisionDay, refs[0].Precision)
}

func TestBestDate(t *testing.T) {
	refs := ExtractDates("by December 2025, final on Dec 31, 2025")
	best, ok := BestDate(refs)
	require.True(t, ok)
	assert.Equal(t, PrecisionDay, best.Precision)
	assert.Equal(t, 31, best.Day)

	_, ok = BestDate(nil)
	assert.False(t, ok)
}

func TestExtractNumbers(t *testing.T) {
	nums := ExtractNumbers("Bitcoin above $100,000 on Jan 21")
	require.NotEmpty(t, nums)
	assert.Equal(t, 100000.0, nums[0].Value)
	assert.True(t, nums[0].IsMoney)

	nums = ExtractNumbers("$ETH to $5k")
	require.NotEmpty(t, nums)
	assert.Equal(t, 5000.0, nums[len(nums)-1].Value)

	nums = ExtractNumbers("market cap hits $1.2t")
	require.Len(t, nums, 1)
	assert.Equal(t, 1.2e12, nums[0].Value)

	nums = ExtractNumbers("unemployment above 4.5%")
	require.Len(t, nums, 1)
	assert.Equal(t, 4.5, nums[0].Value)
	assert.True(t, nums[0].IsPercent)

	// Bare years read as dates, not levels.
	assert.Empty(t, ExtractNumbers("election winner 2024"))
}

func TestNumberProximity(t *testing.T) {
	cases := []struct {
		name                   string
		minL, maxL, minR, maxR float64
		want                   float64
	}{
		{"overlap", 100, 200, 150, 250, 1.0},
		{"equal points", 100000, 100000, 100000, 100000, 1.0},
		{"sub 1pct", 100000, 100000, 100500, 100500, 0.9},
		{"sub 5pct", 100000, 100000, 101000, 101000, 0.7},
		{"sub 10pct", 100000, 100000, 108000, 108000, 0.4},
		{"far apart", 100000, 100000, 150000, 150000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, NumberProximity(tc.minL, tc.maxL, tc.minR, tc.maxR), 1e-9)
		})
	}
}

func TestJaccard(t *testing.T) {
	a := TokenSet("bitcoin above 100k")
	b := TokenSet("bitcoin above 100k")
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)
	assert.InDelta(t, 0.0, Jaccard(TokenSet("alpha beta"), TokenSet("gamma delta")), 1e-9)
	assert.Equal(t, 0.0, Jaccard(nil, nil))
}

func TestBuildFingerprint(t *testing.T) {
	fp := BuildFingerprint("Bitcoin above $100,000 on Jan 21, 2026", nil, nil)
	assert.Equal(t, CompGE, fp.Comparator)
	assert.Equal(t, IntentThreshold, fp.Intent)
	require.Len(t, fp.Dates, 1)
	assert.Equal(t, "2026-01-21", fp.Dates[0].Key())

	fp = BuildFingerprint("CPI above 3% for March 2026", nil, nil)
	assert.Contains(t, fp.MacroEntities, "CPI")
}
