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

// cryptoMarkets fetches the eligible crypto universe for one venue, raw:
// intraday markets included so audits can see the full distribution.
func cryptoMarkets(ctx context.Context, a *app, venue model.Venue, limit int) ([]*model.Market, error) {
	return a.store.ListEligibleCryptoMarkets(ctx, pipeline.CryptoListParamsFor(venue, 0, limit))
}

var cryptoCountsCmd = &cobra.Command{
	Use:   "crypto:counts",
	Short: "Count eligible crypto markets per venue and market type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tTOTAL\tDAILY_THRESHOLD\tDAILY_RANGE\tYEARLY_THRESHOLD\tINTRADAY_UPDOWN")
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			markets, err := cryptoMarkets(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			byType := map[signals.CryptoMarketType]int{}
			for _, m := range markets {
				byType[signals.ExtractCrypto(m).MarketType]++
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", venue, len(markets),
				byType[signals.TypeDailyThreshold], byType[signals.TypeDailyRange],
				byType[signals.TypeYearlyThreshold], byType[signals.TypeIntradayUpDown])
		}
		return w.Flush()
	},
}

var cryptoBracketsCmd = &cobra.Command{
	Use:   "crypto:brackets",
	Short: "Show bracket-ladder sizes per entity and settle date",
	Long: `Groups each venue's crypto markets by entity and settle date and counts
the threshold lines in each bracket ladder. Wide ladders are where dedup
caps matter most.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		type key struct {
			venue model.Venue
			group string
		}
		ladders := map[key]int{}
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			markets, err := cryptoMarkets(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			for _, m := range markets {
				sig := signals.ExtractCrypto(m)
				if sig.Entity == signals.EntityUnknown || sig.SettleDate == "" || sig.Intraday() {
					continue
				}
				ladders[key{venue, string(sig.Entity) + "|" + sig.SettleDate}]++
			}
		}

		ordered := make([]key, 0, len(ladders))
		for k := range ladders {
			ordered = append(ordered, k)
		}
		sort.Slice(ordered, func(i, j int) bool {
			if ladders[ordered[i]] != ladders[ordered[j]] {
				return ladders[ordered[i]] > ladders[ordered[j]]
			}
			return ordered[i].group < ordered[j].group
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tENTITY|DATE\tLINES")
		for _, k := range ordered {
			fmt.Fprintf(w, "%s\t%s\t%d\n", k.venue, k.group, ladders[k])
		}
		return w.Flush()
	},
}

var cryptoOverlapCmd = &cobra.Command{
	Use:   "crypto:overlap",
	Short: "Show entity|date keys present on both venues",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		counts := map[string]map[model.Venue]int{}
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			markets, err := cryptoMarkets(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			for _, m := range markets {
				sig := signals.ExtractCrypto(m)
				if sig.Entity == signals.EntityUnknown || sig.SettleDate == "" || sig.Intraday() {
					continue
				}
				k := string(sig.Entity) + "|" + sig.SettleDate
				if counts[k] == nil {
					counts[k] = map[model.Venue]int{}
				}
				counts[k][venue]++
			}
		}

		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENTITY|DATE\tKALSHI\tPOLYMARKET")
		for _, k := range keys {
			l, r := counts[k][model.VenueKalshi], counts[k][model.VenuePolymarket]
			if l == 0 || r == 0 {
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%d\n", k, l, r)
		}
		return w.Flush()
	},
}

var cryptoBestLimit int

var cryptoBestCmd = &cobra.Command{
	Use:   "crypto:best",
	Short: "Score crypto pairs without writing and show the best matches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		p, ok := pipeline.Lookup(model.TopicCryptoDaily)
		if !ok {
			return fmt.Errorf("crypto_daily pipeline not registered")
		}
		now := time.Now().UTC()
		left, err := p.FetchMarkets(cmd.Context(), a.store, pipeline.FetchOptions{
			Venue: model.VenueKalshi, Now: now,
		})
		if err != nil {
			return err
		}
		right, err := p.FetchMarkets(cmd.Context(), a.store, pipeline.FetchOptions{
			Venue: model.VenuePolymarket, Now: now,
		})
		if err != nil {
			return err
		}

		idx := p.BuildIndex(right)
		var cands []pipeline.Candidate
		for _, l := range left {
			for _, r := range p.FindCandidates(l, idx) {
				if !p.CheckHardGates(l, r).Passed {
					continue
				}
				res := p.Score(l, r)
				if res == nil {
					continue
				}
				cands = append(cands, pipeline.Candidate{Left: l, Right: r, Result: *res})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Result.Score > cands[j].Result.Score
		})
		if len(cands) > cryptoBestLimit {
			cands = cands[:cryptoBestLimit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tTIER\tKALSHI\tPOLYMARKET")
		for _, c := range cands {
			fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", c.Result.Score, c.Result.Tier,
				truncate(c.Left.Market.Title, 50), truncate(c.Right.Market.Title, 50))
		}
		return w.Flush()
	},
}

var cryptoAuditFlags struct {
	venue string
	limit int
}

var cryptoTruthAuditCmd = &cobra.Command{
	Use:   "crypto:truth-audit",
	Short: "Print extracted crypto signals next to titles for eyeballing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		markets, err := cryptoMarkets(cmd.Context(), a, model.Venue(cryptoAuditFlags.venue), cryptoAuditFlags.limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENTITY\tTYPE\tDATE_TYPE\tSETTLE\tCOMPARATOR\tTITLE")
		for _, m := range markets {
			sig := signals.ExtractCrypto(m)
			settle := sig.SettleDate
			if settle == "" {
				settle = sig.SettlePeriod
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				orDash(string(sig.Entity)), sig.MarketType, sig.DateType,
				orDash(settle), sig.Comparator, truncate(m.Title, 70))
		}
		return w.Flush()
	},
}

var cryptoTypeAuditCmd = &cobra.Command{
	Use:   "crypto:type-audit",
	Short: "Show the date-type distribution of crypto markets per venue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VENUE\tDATE_TYPE\tCOUNT")
		for _, venue := range []model.Venue{model.VenueKalshi, model.VenuePolymarket} {
			markets, err := cryptoMarkets(cmd.Context(), a, venue, 0)
			if err != nil {
				return err
			}
			byType := map[signals.DateType]int{}
			for _, m := range markets {
				byType[signals.ExtractCrypto(m).DateType]++
			}
			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, string(t))
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(w, "%s\t%s\t%d\n", venue, t, byType[signals.DateType(t)])
			}
		}
		return w.Flush()
	},
}

var cryptoSeriesAuditCmd = &cobra.Command{
	Use:   "crypto:series-audit",
	Short: "Group kalshi crypto markets by series ticker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		markets, err := cryptoMarkets(cmd.Context(), a, model.VenueKalshi, 0)
		if err != nil {
			return err
		}
		type stats struct{ total, intraday int }
		bySeries := map[string]*stats{}
		for _, m := range markets {
			st := bySeries[m.SeriesTicker]
			if st == nil {
				st = &stats{}
				bySeries[m.SeriesTicker] = st
			}
			st.total++
			if signals.ExtractCrypto(m).Intraday() {
				st.intraday++
			}
		}
		tickers := make([]string, 0, len(bySeries))
		for t := range bySeries {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERIES\tMARKETS\tINTRADAY")
		for _, t := range tickers {
			fmt.Fprintf(w, "%s\t%d\t%d\n", orDash(t), bySeries[t].total, bySeries[t].intraday)
		}
		return w.Flush()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	cryptoBestCmd.Flags().IntVar(&cryptoBestLimit, "limit", 20, "pairs to show")
	cryptoTruthAuditCmd.Flags().StringVar(&cryptoAuditFlags.venue, "venue", string(model.VenueKalshi), "venue to audit")
	cryptoTruthAuditCmd.Flags().IntVar(&cryptoAuditFlags.limit, "limit", 40, "markets to sample")
	rootCmd.AddCommand(cryptoCountsCmd, cryptoBracketsCmd, cryptoOverlapCmd,
		cryptoBestCmd, cryptoTruthAuditCmd, cryptoTypeAuditCmd, cryptoSeriesAuditCmd)
}
