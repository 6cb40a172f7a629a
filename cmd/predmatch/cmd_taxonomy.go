package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/kalshi"
	"github.com/predmatch/predmatch/internal/persistence"
)

var taxonomyOverlapCmd = &cobra.Command{
	Use:   "taxonomy:overlap",
	Short: "Show per-topic market counts on both venues",
	Long: `Counts active markets per derived topic and venue. Topics with zero on
either side will be dropped by the operational preflight; UNKNOWN rows show
how much the classifier could not place.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		left, err := a.store.CountActiveByTopic(cmd.Context(), model.VenueKalshi, 720)
		if err != nil {
			return err
		}
		right, err := a.store.CountActiveByTopic(cmd.Context(), model.VenuePolymarket, 720)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOPIC\tKALSHI\tPOLYMARKET\tMATCHABLE")
		for _, topic := range model.AllTopics {
			l, r := left[topic], right[topic]
			if l == 0 && r == 0 {
				continue
			}
			matchable := "no"
			if l > 0 && r > 0 && topic != model.TopicUnknown {
				matchable = "yes"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", topic, l, r, matchable)
		}
		return w.Flush()
	},
}

var overlapReportLimit int

var overlapReportCmd = &cobra.Command{
	Use:   "overlap-report [keywords...]",
	Short: "Show eligible markets on both venues whose titles match keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tTOPIC\tCLOSE\tTITLE")
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			markets, err := a.store.ListEligibleMarkets(cmd.Context(), persistence.ListParams{
				Venue:         venue,
				TitleKeywords: args,
				Limit:         overlapReportLimit,
			})
			if err != nil {
				return err
			}
			for _, m := range markets {
				closeAt := "-"
				if m.CloseTime != nil {
					closeAt = m.CloseTime.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", venue, m.DerivedTopic, closeAt, truncate(m.Title, 80))
			}
		}
		return w.Flush()
	},
}

var seriesAuditTopic string

var seriesAuditCmd = &cobra.Command{
	Use:   "kalshi:series:audit",
	Short: "Audit kalshi series coverage for one topic",
	Long: `Groups the topic's kalshi markets by series ticker and reports, per
series, the market count and whether a kalshi_series row exists. Series
without a row cannot contribute category or tag evidence to the classifier.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		topics, err := parseTopics(seriesAuditTopic)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		markets, err := a.store.ListMarketsByDerivedTopic(cmd.Context(), topics[0], persistence.TopicFilters{
			Venue: model.VenueKalshi,
		})
		if err != nil {
			return err
		}

		counts := map[string]int{}
		for _, m := range markets {
			counts[m.SeriesTicker]++
		}
		tickers := make([]string, 0, len(counts))
		for t := range counts {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERIES\tMARKETS\tROW\tCATEGORY\tFREQUENCY")
		for _, ticker := range tickers {
			series, err := a.store.GetSeries(cmd.Context(), ticker)
			if err != nil {
				return err
			}
			if series == nil {
				fmt.Fprintf(w, "%s\t%d\tmissing\t-\t-\n", ticker, counts[ticker])
				continue
			}
			fmt.Fprintf(w, "%s\t%d\tok\t%s\t%s\n", ticker, counts[ticker], series.Category, series.Frequency)
		}
		return w.Flush()
	},
}

var smartSyncFlags struct {
	nonMveOnly bool
	apply      bool
}

var smartSyncCmd = &cobra.Command{
	Use:   "kalshi:events:smart-sync",
	Short: "Refresh kalshi_events and kalshi_series from the exchange",
	Long: `Pages /events with nested markets per the configured statuses, applies
the series ticker/category filters and page/market caps from config, and
upserts event and series rows. Dry-run by default.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.kalshiClient()
		if err != nil {
			return err
		}
		sync := kalshi.NewSmartSync(client, a.store, kalshi.SyncConfig{
			Statuses:         a.cfg.Kalshi.EventsStatus,
			SeriesTickers:    a.cfg.Kalshi.SeriesTickers,
			SeriesCategories: a.cfg.Kalshi.SeriesCategories,
			MaxPages:         a.cfg.Kalshi.MaxPages,
			GlobalCapMarkets: a.cfg.Kalshi.GlobalCapMarkets,
			NonMveOnly:       smartSyncFlags.nonMveOnly,
			Apply:            smartSyncFlags.apply,
		})
		report, err := sync.Run(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	overlapReportCmd.Flags().IntVar(&overlapReportLimit, "limit", 50, "maximum rows per venue")
	seriesAuditCmd.Flags().StringVar(&seriesAuditTopic, "topic", "", "topic to audit (required)")
	seriesAuditCmd.MarkFlagRequired("topic")
	smartSyncCmd.Flags().BoolVar(&smartSyncFlags.nonMveOnly, "non-mve-only", false, "skip KXMV multivariate events")
	smartSyncCmd.Flags().BoolVar(&smartSyncFlags.apply, "apply", false, "write rows instead of dry-run")
	rootCmd.AddCommand(taxonomyOverlapCmd, overlapReportCmd, seriesAuditCmd, smartSyncCmd)
}
