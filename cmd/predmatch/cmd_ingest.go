package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/ingest"
	"github.com/predmatch/predmatch/internal/config"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/infrastructure/kalshi"
	"github.com/predmatch/predmatch/internal/infrastructure/polymarket"
	"github.com/predmatch/predmatch/internal/persistence"
)

var ingestMarketsFlags struct {
	venue  string
	status string
	apply  bool
}

var ingestMarketsCmd = &cobra.Command{
	Use:   "ingest:markets",
	Short: "Sync one venue's markets into the store, classified",
	Long: `Pages the venue API, classifies every market (topic, taxonomy source,
MVE flag) and upserts the batch. For kalshi the ingestion strategy follows
KALSHI_MODE: markets pages /markets flat, catalog flattens /events with
nested markets. Dry-run by default.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		venue := model.Venue(ingestMarketsFlags.venue)
		if !venue.Valid() {
			return fmt.Errorf("invalid venue %q", ingestMarketsFlags.venue)
		}
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		adapter, err := a.venueAdapter(venue)
		if err != nil {
			return err
		}
		report, err := ingest.Markets(cmd.Context(), a.store, a.store, adapter, ingest.MarketsOptions{
			Status:    ingestMarketsFlags.status,
			MaxPages:  a.cfg.Kalshi.MaxPages,
			GlobalCap: a.cfg.Kalshi.GlobalCapMarkets,
			Apply:     ingestMarketsFlags.apply,
		})
		if report != nil {
			printJSON(report)
		}
		return err
	},
}

var ingestQuotesFlags struct {
	interval time.Duration
	apply    bool
}

var ingestQuotesCmd = &cobra.Command{
	Use:   "ingest:quotes",
	Short: "Refresh quotes for every watchlisted market",
	Long: `Fetches current prices for the watchlist on both venues and records
them under the heartbeat rule: a quote is written when the price moved or
when --interval has elapsed since the last row, whichever comes first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		adapters := make([]persistence.Adapter, 0, 2)
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			adapter, err := a.venueAdapter(venue)
			if err != nil {
				return err
			}
			adapters = append(adapters, adapter)
		}
		report, err := ingest.Quotes(cmd.Context(), a.store, a.store, adapters, ingest.QuotesOptions{
			Interval: ingestQuotesFlags.interval,
			Apply:    ingestQuotesFlags.apply,
		})
		if report != nil {
			printJSON(report)
		}
		return err
	},
}

// venueAdapter builds the venue port for one venue, honoring the configured
// kalshi ingestion mode.
func (a *app) venueAdapter(venue model.Venue) (persistence.Adapter, error) {
	switch venue {
	case model.VenueKalshi:
		client, err := a.kalshiClient()
		if err != nil {
			return nil, err
		}
		if a.cfg.Kalshi.Mode == config.ModeCatalog {
			return kalshi.NewCatalogAdapter(client, a.cfg.Kalshi.WithNestedMarkets), nil
		}
		return kalshi.NewAdapter(client), nil
	case model.VenuePolymarket:
		client := polymarket.NewClient(polymarket.Config{
			BaseURL:  a.cfg.Polymarket.BaseURL,
			PageSize: a.cfg.Polymarket.PageSize,
		}, a.metrics)
		return polymarket.NewAdapter(client), nil
	}
	return nil, fmt.Errorf("no adapter for venue %q", venue)
}

func init() {
	ingestMarketsCmd.Flags().StringVar(&ingestMarketsFlags.venue, "venue", "", "venue to sync (required)")
	ingestMarketsCmd.Flags().StringVar(&ingestMarketsFlags.status, "status", "", "venue-native status filter")
	ingestMarketsCmd.Flags().BoolVar(&ingestMarketsFlags.apply, "apply", false, "write markets instead of dry-run")
	ingestMarketsCmd.MarkFlagRequired("venue")

	ingestQuotesCmd.Flags().DurationVar(&ingestQuotesFlags.interval, "interval", ingest.DefaultQuoteInterval, "heartbeat interval")
	ingestQuotesCmd.Flags().BoolVar(&ingestQuotesFlags.apply, "apply", false, "write quotes instead of dry-run")

	rootCmd.AddCommand(ingestMarketsCmd, ingestQuotesCmd)
}
