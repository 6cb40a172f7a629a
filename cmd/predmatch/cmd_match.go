package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/match"
	"github.com/predmatch/predmatch/internal/domain/model"
)

var suggestFlags struct {
	topic    string
	apply    bool
	from     string
	to       string
	lookback int
	limit    int
	minScore float64
}

var suggestCmd = &cobra.Command{
	Use:   "v3:suggest-matches",
	Short: "Run one topic pipeline and suggest cross-venue links",
	Long: `Runs the topic's matching pipeline between two venues and reports the
funnel. Dry-run by default; --apply writes suggestions (and confirmations or
rejections where the pipeline carries auto rules).`,
	RunE: runSuggestMatches,
}

func init() {
	suggestCmd.Flags().StringVar(&suggestFlags.topic, "topic", "", "topic to match (required)")
	suggestCmd.Flags().BoolVar(&suggestFlags.apply, "apply", false, "write links instead of dry-run")
	suggestCmd.Flags().StringVar(&suggestFlags.from, "from", string(model.VenueKalshi), "left venue")
	suggestCmd.Flags().StringVar(&suggestFlags.to, "to", string(model.VenuePolymarket), "right venue")
	suggestCmd.Flags().IntVar(&suggestFlags.lookback, "lookback-hours", 0, "override the topic lookback")
	suggestCmd.Flags().IntVar(&suggestFlags.limit, "limit", 0, "cap fetched markets per venue")
	suggestCmd.Flags().Float64Var(&suggestFlags.minScore, "min-score", 0, "override the pipeline score floor")
	suggestCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggestMatches(cmd *cobra.Command, _ []string) error {
	topics, err := parseTopics(suggestFlags.topic)
	if err != nil {
		return err
	}
	from, to := model.Venue(suggestFlags.from), model.Venue(suggestFlags.to)
	if !from.Valid() || !to.Valid() || from == to {
		return fmt.Errorf("venues must be two distinct values in {kalshi, polymarket}")
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := match.ModeDryRun
	if suggestFlags.apply {
		mode = match.ModeSuggest
	}
	for _, topic := range topics {
		res, err := a.orch.Run(cmd.Context(), match.Params{
			FromVenue:     from,
			ToVenue:       to,
			Topic:         topic,
			LookbackHours: suggestFlags.lookback,
			Limit:         suggestFlags.limit,
			MinScore:      suggestFlags.minScore,
			Mode:          mode,
			AutoConfirm:   suggestFlags.apply,
			AutoReject:    suggestFlags.apply,
		})
		if err != nil {
			return err
		}
		if err := printJSON(res); err != nil {
			return err
		}
	}
	return nil
}
