package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/pipeline"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
)

// sportsViews fetches one venue's sports markets through the sports pipeline
// so kalshi rows arrive with their parent events attached.
func sportsViews(ctx context.Context, a *app, venue model.Venue, limit int) ([]pipeline.View, error) {
	p, ok := pipeline.Lookup(model.TopicSports)
	if !ok {
		return nil, fmt.Errorf("sports pipeline not registered")
	}
	return p.FetchMarkets(ctx, a.store, pipeline.FetchOptions{
		Venue: venue,
		Limit: limit,
		Now:   time.Now().UTC(),
	})
}

var sportsAuditCmd = &cobra.Command{
	Use:   "sports:audit",
	Short: "Audit sports signal extraction quality per venue",
	Long: `Reports, per venue, how many sports markets yield a full event key
(league, both teams, start bucket) and where the teams and start times come
from. Markets without an event key can never pair.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tTOTAL\tWITH_KEY\tLEAGUE\tTEAMS_EVENT\tTEAMS_TITLE\tSTART_EVENT\tSTART_TITLE\tSTART_CLOSE")
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			views, err := sportsViews(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			var withKey, withLeague int
			teams := map[signals.TeamsSource]int{}
			starts := map[signals.StartSource]int{}
			for _, v := range views {
				sig := signals.ExtractSports(v.Market, v.Event)
				if sig.EventKey() != "" {
					withKey++
				}
				if sig.League != "" {
					withLeague++
				}
				if sig.TeamA != "" {
					teams[sig.TeamsSource]++
				}
				if !sig.StartBucket.IsZero() {
					starts[sig.StartSource]++
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				venue, len(views), withKey, withLeague,
				teams[signals.TeamsFromEvent], teams[signals.TeamsFromTitle],
				starts[signals.StartFromEvent], starts[signals.StartFromTitle],
				starts[signals.StartFromCloseTime])
		}
		return w.Flush()
	},
}

var sportsSampleFlags struct {
	venue string
	limit int
}

var sportsSampleCmd = &cobra.Command{
	Use:   "sports:sample",
	Short: "Print extracted sports signals next to titles for eyeballing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := sportsViews(cmd.Context(), a, model.Venue(sportsSampleFlags.venue), sportsSampleFlags.limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LEAGUE\tTEAMS\tSTART\tTYPE\tLINE\tTITLE")
		for _, v := range views {
			sig := signals.ExtractSports(v.Market, v.Event)
			teams := "-"
			if sig.TeamA != "" {
				teams = sig.TeamA + "/" + sig.TeamB
			}
			start := "-"
			if !sig.StartBucket.IsZero() {
				start = sig.StartBucket.Format("2006-01-02 15:04")
			}
			line := "-"
			if sig.HasLine {
				line = fmt.Sprintf("%.1f", sig.LineValue)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				orDash(sig.League), teams, start, sig.MarketType, line, truncate(v.Market.Title, 70))
		}
		return w.Flush()
	},
}

var sportsEligibleCmd = &cobra.Command{
	Use:   "sports:eligible",
	Short: "Count eligible sports markets per venue and league",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tLEAGUE\tCOUNT")
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			views, err := sportsViews(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			byLeague := map[string]int{}
			for _, v := range views {
				league := signals.ExtractSports(v.Market, v.Event).League
				if league == "" {
					league = "-"
				}
				byLeague[league]++
			}
			for _, league := range sortedKeys(byLeague) {
				fmt.Fprintf(w, "%s\t%s\t%d\n", venue, league, byLeague[league])
			}
		}
		return w.Flush()
	},
}

var sportsEventCoverageCmd = &cobra.Command{
	Use:   "sports:event-coverage",
	Short: "Show how many kalshi sports markets have a kalshi_events row",
	Long: `Team pairs and strike times from kalshi_events beat title parsing, so
low coverage here means the events sync is behind and match quality on
SPORTS will be mostly title-derived.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := sportsViews(cmd.Context(), a, model.VenueKalshi, 0)
		if err != nil {
			return err
		}
		var withTicker, covered int
		missing := map[string]int{}
		for _, v := range views {
			if v.Market.EventTicker == "" {
				continue
			}
			withTicker++
			if v.Event != nil {
				covered++
			} else {
				missing[v.Market.EventTicker]++
			}
		}

		fmt.Printf("kalshi sports markets: %d\n", len(views))
		fmt.Printf("with event ticker:     %d\n", withTicker)
		if withTicker > 0 {
			fmt.Printf("event row coverage:    %d (%.1f%%)\n", covered, 100*float64(covered)/float64(withTicker))
		}
		if len(missing) > 0 {
			fmt.Println("missing event rows:")
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, ticker := range sortedKeys(missing) {
				fmt.Fprintf(w, "  %s\t%d\n", ticker, missing[ticker])
			}
			w.Flush()
		}
		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	sportsSampleCmd.Flags().StringVar(&sportsSampleFlags.venue, "venue", string(model.VenueKalshi), "venue to sample")
	sportsSampleCmd.Flags().IntVar(&sportsSampleFlags.limit, "limit", 40, "markets to sample")
	rootCmd.AddCommand(sportsAuditCmd, sportsSampleCmd, sportsEligibleCmd, sportsEventCoverageCmd)
}
