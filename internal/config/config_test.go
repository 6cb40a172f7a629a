package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ModeMarkets, cfg.Kalshi.Mode)
	assert.Equal(t, 1000, cfg.Kalshi.MarketsLimit)
	assert.Equal(t, []string{"open"}, cfg.Kalshi.EventsStatus)
	assert.Equal(t, 30, cfg.Kalshi.StuckThresholdMin)
	assert.Equal(t, 5, cfg.Kalshi.MaxFailuresInRow)
	assert.Equal(t, 60, cfg.Eligibility.GraceMinutes)
	assert.Equal(t, 72, cfg.Eligibility.ForwardHoursCryptoDaily)
	assert.Equal(t, 168, cfg.Eligibility.LookbackHoursCryptoDaily)
	assert.Equal(t, 720, cfg.Eligibility.LookbackHoursMacro)
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
kalshi:
  mode: catalog
  series_tickers: [KXBTCD, KXCPI]
eligibility:
  grace_minutes: 90
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ModeCatalog, cfg.Kalshi.Mode)
	assert.Equal(t, []string{"KXBTCD", "KXCPI"}, cfg.Kalshi.SeriesTickers)
	assert.Equal(t, 90, cfg.Eligibility.GraceMinutes)
}

func TestMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeMarkets, cfg.Kalshi.Mode)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	t.Setenv("LOG_LEVEL", "trace")
	t.Setenv("PG_DSN", "postgres://localhost/predmatch")
	t.Setenv("KALSHI_USE_DEMO", "true")
	t.Setenv("KALSHI_SERIES_CATEGORIES", "Crypto, Economics")
	t.Setenv("ELIGIBILITY_LOOKBACK_HOURS_MACRO", "1440")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.Equal(t, "postgres://localhost/predmatch", cfg.Postgres.DSN)
	assert.True(t, cfg.Kalshi.UseDemo)
	assert.Equal(t, []string{"crypto", "economics"}, cfg.Kalshi.SeriesCategories)
	assert.Equal(t, 1440, cfg.Eligibility.LookbackHoursMacro)
}

func TestMarketsLimitCapped(t *testing.T) {
	t.Setenv("KALSHI_MARKETS_LIMIT", "5000")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Kalshi.MarketsLimit)

	t.Setenv("KALSHI_MARKETS_LIMIT", "250")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Kalshi.MarketsLimit)
}

func TestInvalidModeRejected(t *testing.T) {
	t.Setenv("KALSHI_MODE", "firehose")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firehose")
}

func TestInvalidEventsStatusRejected(t *testing.T) {
	t.Setenv("KALSHI_EVENTS_STATUS", "open,expired")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
