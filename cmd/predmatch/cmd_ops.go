package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/ops"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/kalshi"
)

var opsRunFlags struct {
	mode         string
	topics       string
	apply        bool
	withTaxonomy bool
	lookback     int
	limit        int
}

var opsRunCmd = &cobra.Command{
	Use:   "ops:run",
	Short: "Run the full operational loop over one or more topics",
	Long: `Preflight overlap check, optional taxonomy maintenance, per-topic
matching, watchlist sync and the KPI probe, under the single-writer lock.
Dry-run by default; exit code is non-zero when any step failed.`,
	RunE: runOps,
}

var opsKpiCmd = &cobra.Command{
	Use:   "ops:kpi",
	Short: "Print the operational KPI summary without running anything",
	RunE:  runOpsKPI,
}

func init() {
	opsRunCmd.Flags().StringVar(&opsRunFlags.mode, "mode", "v3", "matching mode (only v3 exists)")
	opsRunCmd.Flags().StringVar(&opsRunFlags.topics, "topics", "", "comma list of topics (required)")
	opsRunCmd.Flags().BoolVar(&opsRunFlags.apply, "apply", false, "write links and watchlist instead of dry-run")
	opsRunCmd.Flags().BoolVar(&opsRunFlags.withTaxonomy, "with-taxonomy-maintenance", false, "run the kalshi events/series sync first")
	opsRunCmd.Flags().IntVar(&opsRunFlags.lookback, "lookback-hours", 0, "override the topic lookback")
	opsRunCmd.Flags().IntVar(&opsRunFlags.limit, "limit", 0, "cap fetched markets per venue")
	opsRunCmd.MarkFlagRequired("topics")
	rootCmd.AddCommand(opsRunCmd, opsKpiCmd)
}

func runOps(cmd *cobra.Command, _ []string) error {
	if opsRunFlags.mode != "v3" {
		return fmt.Errorf("unsupported mode %q, only v3 exists", opsRunFlags.mode)
	}
	topics, err := parseTopics(opsRunFlags.topics)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	var taxonomy ops.TaxonomySyncer
	if opsRunFlags.withTaxonomy {
		client, err := a.kalshiClient()
		if err != nil {
			return err
		}
		taxonomy = kalshi.NewSmartSync(client, a.store, kalshi.SyncConfig{
			Statuses:         a.cfg.Kalshi.EventsStatus,
			SeriesTickers:    a.cfg.Kalshi.SeriesTickers,
			SeriesCategories: a.cfg.Kalshi.SeriesCategories,
			MaxPages:         a.cfg.Kalshi.MaxPages,
			GlobalCapMarkets: a.cfg.Kalshi.GlobalCapMarkets,
			Apply:            opsRunFlags.apply,
		})
	}

	runner := ops.NewRunner(a.store, a.orch, a.locker(), taxonomy, a.metrics)
	res, err := runner.Run(cmd.Context(), ops.Options{
		Topics:           topics,
		Apply:            opsRunFlags.apply,
		AutoConfirm:      opsRunFlags.apply,
		AutoReject:       opsRunFlags.apply,
		LookbackHours:    opsRunFlags.lookback,
		Limit:            opsRunFlags.limit,
		SyncTaxonomy:     opsRunFlags.withTaxonomy,
		StuckThreshold:   time.Duration(a.cfg.Kalshi.StuckThresholdMin) * time.Minute,
		MaxFailuresInRow: a.cfg.Kalshi.MaxFailuresInRow,
	})
	if res != nil {
		printSteps(res)
		printJSON(res)
	}
	if err != nil {
		return err
	}
	if failed := failedSteps(res); len(failed) > 0 {
		return fmt.Errorf("steps failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func printSteps(res *ops.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range res.Steps {
		mark := "✓"
		detail := ""
		if s.Err != "" {
			mark = "✗"
			detail = s.Err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, s.Name, s.Duration.Round(time.Millisecond), detail)
	}
	w.Flush()
}

func failedSteps(res *ops.Result) []string {
	var failed []string
	for _, s := range res.Steps {
		if s.Err != "" {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

func runOpsKPI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.store.CountActiveByTopic(cmd.Context(), model.VenueKalshi, 720)
	if err != nil {
		return err
	}
	ordered := topicKeys(counts)

	report, err := ops.Snapshot(cmd.Context(), a.store, ordered,
		time.Now().UTC(),
		time.Duration(a.cfg.Kalshi.StuckThresholdMin)*time.Minute,
		a.cfg.Kalshi.MaxFailuresInRow)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func topicKeys(counts map[model.Topic]int) []model.Topic {
	topics := make([]model.Topic, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}
