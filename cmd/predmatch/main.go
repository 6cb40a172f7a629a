// Command predmatch is the CLI for the cross-venue matching engine. Every
// command is a thin layer over the application packages; mutation commands
// default to dry-run and flip live with --apply.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/match"
	"github.com/predmatch/predmatch/internal/application/ops"
	"github.com/predmatch/predmatch/internal/application/pipeline"
	"github.com/predmatch/predmatch/internal/application/rules"
	"github.com/predmatch/predmatch/internal/config"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/db"
	"github.com/predmatch/predmatch/internal/infrastructure/kalshi"
	"github.com/predmatch/predmatch/internal/infrastructure/metrics"
	"github.com/predmatch/predmatch/internal/persistence/postgres"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "predmatch",
	Short:         "Cross-venue prediction-market matching engine",
	Long:          "predmatch links equivalent markets across Kalshi and Polymarket:\nmatching pipelines per topic, safe-confirm/reject rule packs and the\noperational loop that keeps links and the quote watchlist fresh.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/predmatch.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// app bundles the wired collaborators a command needs. Commands that never
// touch the store pass requireDB=false and get a nil store.
type app struct {
	cfg     *config.Config
	pool    *sqlx.DB
	store   *postgres.Store
	metrics *metrics.Registry
	orch    *match.Orchestrator
	engine  *rules.Engine
}

func newApp(ctx context.Context, requireDB bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	pipeline.RegisterAllPipelines()

	a := &app{cfg: cfg, metrics: metrics.NewRegistry(nil)}
	if requireDB {
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.store = postgres.NewStore(pool)
		a.orch = match.NewOrchestrator(a.store, a.metrics)
		a.engine = rules.NewEngine(a.store)
	}
	return a, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// locker picks redis when configured, else the in-process lock.
func (a *app) locker() ops.Locker {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
	return ops.NewRedisLocker(client)
}

// kalshiClient builds the venue client; auth only when credentials exist.
func (a *app) kalshiClient() (*kalshi.Client, error) {
	var tokens kalshi.TokenSource
	if a.cfg.Kalshi.APIKeyID != "" {
		var err error
		tokens, err = kalshi.NewTokenSource(a.cfg.Kalshi.APIKeyID, a.cfg.Kalshi.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
	}
	return kalshi.NewClient(kalshi.Config{
		BaseURL:      a.cfg.Kalshi.BaseURL,
		UseDemo:      a.cfg.Kalshi.UseDemo,
		MarketsLimit: a.cfg.Kalshi.MarketsLimit,
	}, tokens, a.metrics), nil
}

func setupLogging(cfg *config.Config) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// parseTopics validates a comma list against the closed topic set.
func parseTopics(raw string) ([]model.Topic, error) {
	var topics []model.Topic
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		topic := model.ParseTopic(strings.ToUpper(part))
		if topic == model.TopicUnknown && !strings.EqualFold(part, string(model.TopicUnknown)) {
			return nil, fmt.Errorf("unknown topic %q", part)
		}
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics given")
	}
	return topics, nil
}

// printJSON writes an indented result document to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
