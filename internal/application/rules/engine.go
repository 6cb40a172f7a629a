package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// Store is the slice of the repository the rule engines touch.
type Store interface {
	persistence.LinkRepo
	persistence.MarketRepo
}

// Engine scans existing links and applies one pack at a time.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Options selects the links to scan and how to treat them. Apply=false is a
// dry run: the report is produced but no status changes.
type Options struct {
	Topic model.Topic
	Apply bool
	Limit int
	// MinAge enables the stale_low_score reject rule; links younger than
	// this never fire it.
	MinAge          time.Duration
	StaleScoreBelow float64
	// IncludeConfirmed lets the reject pack demote confirmed links. Off by
	// default: demoting a human-confirmed link is almost always wrong.
	IncludeConfirmed bool
	MaxSamples       int
}

// Sample is one affected link kept for the dry-run report.
type Sample struct {
	LinkID    int64
	Rule      string
	NewReason string
}

// Report summarizes one engine run.
type Report struct {
	Topic    model.Topic
	Applied  bool
	Scanned  int
	Promoted int
	Demoted  int
	Skipped  int
	Errors   int
	ByRule   map[string]int
	Samples  []Sample
}

const defaultMaxSamples = 10

// RunConfirm evaluates the topic's safe-confirm pack over suggested links.
// Topics without a pack are an error rather than a no-op so a typo in the
// topic flag does not report a clean zero.
func (e *Engine) RunConfirm(ctx context.Context, opts Options) (*Report, error) {
	pack, ok := confirmPackFor(opts.Topic)
	if !ok {
		return nil, fmt.Errorf("no safe-confirm pack for topic %s", opts.Topic)
	}
	report := newReport(opts)

	links, err := e.store.ListLinks(ctx, persistence.LinkQuery{
		Topic:  opts.Topic,
		Status: model.LinkSuggested,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list suggested links: %w", err)
	}

	for _, link := range links {
		report.Scanned++
		lv, err := e.load(ctx, link)
		if err != nil {
			report.Errors++
			log.Warn().Err(err).Int64("link_id", link.ID).Msg("Skipping link, market load failed")
			continue
		}
		rule, fail := pack.Evaluate(lv)
		if fail != "" {
			report.ByRule[fail]++
			continue
		}
		report.Promoted++
		report.ByRule["confirmed"]++
		newReason := ConfirmedReason(pack.Version, string(opts.Topic), rule)
		report.sample(link.ID, rule, newReason, opts)

		if !opts.Apply {
			continue
		}
		if err := e.store.UpdateLinkStatus(ctx, link.ID, model.LinkConfirmed, newReason); err != nil {
			report.Errors++
			log.Error().Err(err).Int64("link_id", link.ID).Msg("Confirm update failed")
			continue
		}
		log.Info().
			Int64("link_id", link.ID).
			Str("rule", rule).
			Float64("score", link.Score).
			Msg("Link auto-confirmed")
	}

	log.Info().
		Str("topic", string(opts.Topic)).
		Bool("apply", opts.Apply).
		Int("scanned", report.Scanned).
		Int("promoted", report.Promoted).
		Int("errors", report.Errors).
		Msg("Safe-confirm pass complete")
	return report, nil
}

// RunReject evaluates the shared reject pack. With IncludeConfirmed it also
// scans confirmed links; every confirmed demotion is logged loudly.
func (e *Engine) RunReject(ctx context.Context, opts Options) (*Report, error) {
	report := newReport(opts)
	ropts := rejectOptions{
		Now:             e.now(),
		MinAge:          opts.MinAge,
		StaleScoreBelow: opts.StaleScoreBelow,
	}
	if ropts.StaleScoreBelow == 0 {
		ropts.StaleScoreBelow = 0.70
	}

	statuses := []model.LinkStatus{model.LinkSuggested}
	if opts.IncludeConfirmed {
		statuses = append(statuses, model.LinkConfirmed)
	}

	for _, status := range statuses {
		links, err := e.store.ListLinks(ctx, persistence.LinkQuery{
			Topic:  opts.Topic,
			Status: status,
			Limit:  opts.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s links: %w", status, err)
		}
		for _, link := range links {
			report.Scanned++
			if AlreadyProcessed(link.Reason) {
				report.Skipped++
				continue
			}
			lv, err := e.load(ctx, link)
			if err != nil {
				report.Errors++
				log.Warn().Err(err).Int64("link_id", link.ID).Msg("Skipping link, market load failed")
				continue
			}
			fired := evalReject(opts.Topic, lv, ropts)
			if len(fired) == 0 {
				continue
			}
			report.Demoted++
			for _, rule := range fired {
				report.ByRule[rule]++
			}
			newReason := RejectedReason(RejectPackVersion, fired)
			report.sample(link.ID, fired[0], newReason, opts)

			if !opts.Apply {
				continue
			}
			if link.Status == model.LinkConfirmed {
				log.Warn().
					Int64("link_id", link.ID).
					Strs("rules", fired).
					Msg("Demoting a CONFIRMED link")
			}
			if err := e.store.UpdateLinkStatus(ctx, link.ID, model.LinkRejected, newReason); err != nil {
				report.Errors++
				log.Error().Err(err).Int64("link_id", link.ID).Msg("Reject update failed")
				continue
			}
			log.Info().
				Int64("link_id", link.ID).
				Strs("rules", fired).
				Float64("score", link.Score).
				Msg("Link auto-rejected")
		}
	}

	log.Info().
		Str("topic", string(opts.Topic)).
		Bool("apply", opts.Apply).
		Int("scanned", report.Scanned).
		Int("demoted", report.Demoted).
		Int("errors", report.Errors).
		Msg("Reject pass complete")
	return report, nil
}

func (e *Engine) load(ctx context.Context, link *model.MarketLink) (linkView, error) {
	left, err := e.store.GetMarket(ctx, link.LeftMarketID)
	if err != nil {
		return linkView{}, fmt.Errorf("left market %d: %w", link.LeftMarketID, err)
	}
	right, err := e.store.GetMarket(ctx, link.RightMarketID)
	if err != nil {
		return linkView{}, fmt.Errorf("right market %d: %w", link.RightMarketID, err)
	}
	return linkView{Link: link, Left: left, Right: right}, nil
}

func newReport(opts Options) *Report {
	return &Report{Topic: opts.Topic, Applied: opts.Apply, ByRule: map[string]int{}}
}

func (r *Report) sample(linkID int64, rule, newReason string, opts Options) {
	limit := opts.MaxSamples
	if limit == 0 {
		limit = defaultMaxSamples
	}
	if len(r.Samples) < limit {
		r.Samples = append(r.Samples, Sample{LinkID: linkID, Rule: rule, NewReason: newReason})
	}
}
