package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/predmatch/predmatch/internal/application/rules"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

var autoConfirmFlags struct {
	topic   string
	apply   bool
	explain bool
	limit   int
}

var autoConfirmCmd = &cobra.Command{
	Use:   "links:auto-confirm",
	Short: "Promote suggested links that pass the topic's safe-confirm pack",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := confirmableTopics(autoConfirmFlags.topic)
		if err != nil {
			return err
		}
		for _, topic := range topics {
			report, err := a.engine.RunConfirm(cmd.Context(), rules.Options{
				Topic: topic,
				Apply: autoConfirmFlags.apply,
				Limit: autoConfirmFlags.limit,
			})
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if autoConfirmFlags.explain {
				printSamples(report)
			}
		}
		return nil
	},
}

// confirmableTopics expands "all" to the topics that carry a pack.
func confirmableTopics(raw string) ([]model.Topic, error) {
	if raw == "all" {
		return []model.Topic{model.TopicCryptoDaily, model.TopicMacro, model.TopicElections}, nil
	}
	return parseTopics(raw)
}

func printSamples(report *rules.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINK\tRULE\tNEW REASON")
	for _, s := range report.Samples {
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.LinkID, s.Rule, s.NewReason)
	}
	w.Flush()
}

var autoRejectFlags struct {
	topic            string
	apply            bool
	minAgeHours      int
	includeConfirmed bool
	limit            int
}

var autoRejectCmd = &cobra.Command{
	Use:   "links:auto-reject",
	Short: "Drop suggested links that fire the reject pack",
	Long: `Scans suggested links and rejects the ones failing hard floors, entity or
date checks, or the stale-low-score rule (enabled by --min-age-hours).
--include-confirmed lets the pack demote confirmed links, with a warning.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := parseTopics(autoRejectFlags.topic)
		if err != nil {
			return err
		}
		for _, topic := range topics {
			report, err := a.engine.RunReject(cmd.Context(), rules.Options{
				Topic:            topic,
				Apply:            autoRejectFlags.apply,
				Limit:            autoRejectFlags.limit,
				MinAge:           time.Duration(autoRejectFlags.minAgeHours) * time.Hour,
				IncludeConfirmed: autoRejectFlags.includeConfirmed,
			})
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
		}
		return nil
	},
}

var queueFlags struct {
	topic    string
	minScore float64
	limit    int
}

var queueCmd = &cobra.Command{
	Use:   "links:queue",
	Short: "List suggested links awaiting review, best first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		q := persistence.LinkQuery{
			Status:   model.LinkSuggested,
			MinScore: queueFlags.minScore,
			Limit:    queueFlags.limit,
		}
		if queueFlags.topic != "" {
			topics, err := parseTopics(queueFlags.topic)
			if err != nil {
				return err
			}
			q.Topic = topics[0]
		}
		links, err := a.store.ListLinks(cmd.Context(), q)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSCORE\tLEFT\tRIGHT\tAGE\tREASON")
		now := time.Now().UTC()
		for _, l := range links {
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%s/%d\t%s/%d\t%s\t%s\n",
				l.ID, l.Topic, l.Score,
				l.LeftVenue, l.LeftMarketID, l.RightVenue, l.RightMarketID,
				now.Sub(l.CreatedAt).Round(time.Hour), truncate(l.Reason, 60))
		}
		return w.Flush()
	},
}

var reviewID int64

var confirmMatchCmd = &cobra.Command{
	Use:   "confirm-match",
	Short: "Manually confirm one link by id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return reviewLink(cmd, model.LinkConfirmed, "manual_confirm")
	},
}

var rejectMatchCmd = &cobra.Command{
	Use:   "reject-match",
	Short: "Manually reject one link by id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return reviewLink(cmd, model.LinkRejected, "manual_reject")
	},
}

func reviewLink(cmd *cobra.Command, status model.LinkStatus, reason string) error {
	if reviewID <= 0 {
		return fmt.Errorf("--id is required")
	}
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	link, err := a.store.GetLink(cmd.Context(), reviewID)
	if err != nil {
		return err
	}
	if err := a.store.UpdateLinkStatus(cmd.Context(), reviewID, status, reason); err != nil {
		return err
	}
	fmt.Printf("link %d: %s -> %s (%s)\n", reviewID, link.Status, status, link.Topic)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	autoConfirmCmd.Flags().StringVar(&autoConfirmFlags.topic, "topic", "", "topic, or all for every pack (required)")
	autoConfirmCmd.Flags().BoolVar(&autoConfirmFlags.apply, "apply", false, "apply promotions instead of dry-run")
	autoConfirmCmd.Flags().BoolVar(&autoConfirmFlags.explain, "explain", false, "print sampled links and rules")
	autoConfirmCmd.Flags().IntVar(&autoConfirmFlags.limit, "limit", 0, "cap scanned links")
	autoConfirmCmd.MarkFlagRequired("topic")

	autoRejectCmd.Flags().StringVar(&autoRejectFlags.topic, "topic", "", "topic to scan (required)")
	autoRejectCmd.Flags().BoolVar(&autoRejectFlags.apply, "apply", false, "apply rejections instead of dry-run")
	autoRejectCmd.Flags().IntVar(&autoRejectFlags.minAgeHours, "min-age-hours", 0, "enable the stale rule for links older than this")
	autoRejectCmd.Flags().BoolVar(&autoRejectFlags.includeConfirmed, "include-confirmed", false, "also scan confirmed links")
	autoRejectCmd.Flags().IntVar(&autoRejectFlags.limit, "limit", 0, "cap scanned links")
	autoRejectCmd.MarkFlagRequired("topic")

	queueCmd.Flags().StringVar(&queueFlags.topic, "topic", "", "restrict to one topic")
	queueCmd.Flags().Float64Var(&queueFlags.minScore, "min-score", 0, "minimum score")
	queueCmd.Flags().IntVar(&queueFlags.limit, "limit", 50, "maximum rows")

	confirmMatchCmd.Flags().Int64Var(&reviewID, "id", 0, "link id (required)")
	rejectMatchCmd.Flags().Int64Var(&reviewID, "id", 0, "link id (required)")

	rootCmd.AddCommand(autoConfirmCmd, autoRejectCmd, queueCmd, confirmMatchCmd, rejectMatchCmd)
}
