// Package config loads the predmatch configuration: defaults, then the YAML
// file, then environment overrides, in that order. Every knob named by an
// environment variable is also reachable through the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Kalshi      KalshiConfig      `yaml:"kalshi"`
	Polymarket  PolymarketConfig  `yaml:"polymarket"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	// Addr empty means no redis; the ops lock falls back in-process.
	Addr string `yaml:"addr"`
}

// KalshiConfig covers the venue client, ingestion shape and sync filters.
type KalshiConfig struct {
	BaseURL       string `yaml:"base_url"`
	UseDemo       bool   `yaml:"use_demo"`
	APIKeyID      string `yaml:"api_key_id"`
	PrivateKeyPEM string `yaml:"private_key_pem"`
	// MarketsLimit is the page size, capped at 1000 by the API.
	MarketsLimit int `yaml:"markets_limit"`
	MaxPages     int `yaml:"max_pages"`
	// Mode selects the ingestion strategy: markets (flat paging) or catalog
	// (events with nested markets).
	Mode              string   `yaml:"mode"`
	SeriesTickers     []string `yaml:"series_tickers"`
	SeriesCategories  []string `yaml:"series_categories"`
	EventsStatus      []string `yaml:"events_status"`
	WithNestedMarkets bool     `yaml:"with_nested_markets"`
	GlobalCapMarkets  int      `yaml:"global_cap_markets"`
	StuckThresholdMin int      `yaml:"stuck_threshold_min"`
	MaxFailuresInRow  int      `yaml:"max_failures_in_row"`
}

type PolymarketConfig struct {
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
}

// EligibilityConfig tunes the canonical market window.
type EligibilityConfig struct {
	GraceMinutes             int `yaml:"grace_minutes"`
	ForwardHoursCryptoDaily  int `yaml:"forward_hours_crypto_daily"`
	LookbackHoursCryptoDaily int `yaml:"lookback_hours_crypto_daily"`
	LookbackHoursMacro       int `yaml:"lookback_hours_macro"`
}

// Ingestion modes.
const (
	ModeMarkets = "markets"
	ModeCatalog = "catalog"
)

const maxMarketsLimit = 1000

// Default returns the configuration before file and env are applied.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Kalshi: KalshiConfig{
			MarketsLimit:      maxMarketsLimit,
			Mode:              ModeMarkets,
			EventsStatus:      []string{"open"},
			StuckThresholdMin: 30,
			MaxFailuresInRow:  5,
		},
		Eligibility: EligibilityConfig{
			GraceMinutes:             60,
			ForwardHoursCryptoDaily:  72,
			LookbackHoursCryptoDaily: 168,
			LookbackHoursMacro:       720,
		},
	}
}

// Load builds the configuration. path may be empty or point to a missing
// file; env always wins.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Running from env alone is fine.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Postgres.DSN, "PG_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")

	setString(&cfg.Kalshi.BaseURL, "KALSHI_BASE_URL")
	setBool(&cfg.Kalshi.UseDemo, "KALSHI_USE_DEMO")
	setInt(&cfg.Kalshi.MarketsLimit, "KALSHI_MARKETS_LIMIT")
	setInt(&cfg.Kalshi.MaxPages, "KALSHI_MAX_PAGES")
	setString(&cfg.Kalshi.Mode, "KALSHI_MODE")
	setList(&cfg.Kalshi.SeriesTickers, "KALSHI_SERIES_TICKERS")
	setList(&cfg.Kalshi.SeriesCategories, "KALSHI_SERIES_CATEGORIES")
	setList(&cfg.Kalshi.EventsStatus, "KALSHI_EVENTS_STATUS")
	setBool(&cfg.Kalshi.WithNestedMarkets, "KALSHI_WITH_NESTED_MARKETS")
	setInt(&cfg.Kalshi.GlobalCapMarkets, "KALSHI_GLOBAL_CAP_MARKETS")
	setInt(&cfg.Kalshi.StuckThresholdMin, "KALSHI_STUCK_THRESHOLD_MIN")
	setInt(&cfg.Kalshi.MaxFailuresInRow, "KALSHI_MAX_FAILURES_IN_ROW")

	setInt(&cfg.Eligibility.GraceMinutes, "ELIGIBILITY_GRACE_MINUTES")
	setInt(&cfg.Eligibility.ForwardHoursCryptoDaily, "ELIGIBILITY_FORWARD_HOURS_CRYPTO_DAILY")
	setInt(&cfg.Eligibility.LookbackHoursCryptoDaily, "ELIGIBILITY_LOOKBACK_HOURS_CRYPTO_DAILY")
	setInt(&cfg.Eligibility.LookbackHoursMacro, "ELIGIBILITY_LOOKBACK_HOURS_MACRO")

	// Categories compare case-insensitively everywhere downstream.
	for i, c := range cfg.Kalshi.SeriesCategories {
		cfg.Kalshi.SeriesCategories[i] = strings.ToLower(c)
	}
}

func (c *Config) validate() error {
	if c.Kalshi.Mode != ModeMarkets && c.Kalshi.Mode != ModeCatalog {
		return fmt.Errorf("invalid KALSHI_MODE %q, want %s or %s", c.Kalshi.Mode, ModeMarkets, ModeCatalog)
	}
	if c.Kalshi.MarketsLimit <= 0 || c.Kalshi.MarketsLimit > maxMarketsLimit {
		c.Kalshi.MarketsLimit = maxMarketsLimit
	}
	for _, st := range c.Kalshi.EventsStatus {
		switch st {
		case "open", "closed", "settled":
		default:
			return fmt.Errorf("invalid KALSHI_EVENTS_STATUS entry %q, want open, closed or settled", st)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setList(dst *[]string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		var out []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}
