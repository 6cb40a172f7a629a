package kalshi

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// mvePrefix marks multivariate-event series; their events describe joint
// outcomes the matcher cannot pair one-to-one.
const mvePrefix = "KXMV"

var validEventStatuses = map[string]bool{
	"open":    true,
	"closed":  true,
	"settled": true,
}

// SyncConfig drives one events/series sync.
type SyncConfig struct {
	// Statuses to page through; defaults to open only.
	Statuses []string
	// SeriesTickers is an allowlist; empty keeps everything.
	SeriesTickers []string
	// SeriesCategories is a lowercased allowlist on event category.
	SeriesCategories []string
	MaxPages         int
	GlobalCapMarkets int
	NonMveOnly       bool
	// Apply false reports what would change without writing.
	Apply bool
}

// SyncReport is the accounting for one sync.
type SyncReport struct {
	PagesFetched   int  `json:"pages_fetched"`
	EventsSeen     int  `json:"events_seen"`
	EventsKept     int  `json:"events_kept"`
	SkippedMve     int  `json:"skipped_mve"`
	SkippedFilter  int  `json:"skipped_filter"`
	MarketsSeen    int  `json:"markets_seen"`
	EventsUpserted int  `json:"events_upserted"`
	SeriesUpserted int  `json:"series_upserted"`
	CapReached     bool `json:"cap_reached"`
	Applied        bool `json:"applied"`
}

// SmartSync refreshes the local kalshi_events and kalshi_series tables from
// the exchange, incrementally and bounded.
type SmartSync struct {
	client *Client
	repo   persistence.EventRepo
	cfg    SyncConfig
	now    func() time.Time
}

// NewSmartSync wires a sync against the given repo.
func NewSmartSync(client *Client, repo persistence.EventRepo, cfg SyncConfig) *SmartSync {
	return &SmartSync{
		client: client,
		repo:   repo,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SyncTaxonomy satisfies the operational loop's taxonomy maintenance hook.
func (s *SmartSync) SyncTaxonomy(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}

// Run pages events per configured status, applies the series and category
// filters, and upserts the kept events plus their series. Dry-run walks the
// same path without writing.
func (s *SmartSync) Run(ctx context.Context) (*SyncReport, error) {
	statuses := s.cfg.Statuses
	if len(statuses) == 0 {
		statuses = []string{"open"}
	}
	for _, st := range statuses {
		if !validEventStatuses[st] {
			return nil, fmt.Errorf("invalid event status %q, want open, closed or settled", st)
		}
	}

	tickerAllow := toSet(s.cfg.SeriesTickers, strings.ToUpper)
	categoryAllow := toSet(s.cfg.SeriesCategories, strings.ToLower)

	report := &SyncReport{Applied: s.cfg.Apply}
	var kept []model.KalshiEvent
	seriesTickers := map[string]bool{}

	for _, status := range statuses {
		cursor := ""
		for {
			if s.cfg.MaxPages > 0 && report.PagesFetched >= s.cfg.MaxPages {
				break
			}
			page, err := s.client.Events(ctx, EventsParams{
				Cursor:            cursor,
				Status:            status,
				WithNestedMarkets: true,
			})
			if err != nil {
				return nil, fmt.Errorf("page events status=%s: %w", status, err)
			}
			report.PagesFetched++

			for _, ev := range page.Events {
				report.EventsSeen++
				series := ev.SeriesTicker
				if series == "" {
					series = seriesFromEvent(ev.EventTicker)
				}
				if s.cfg.NonMveOnly && strings.HasPrefix(series, mvePrefix) {
					report.SkippedMve++
					continue
				}
				if len(tickerAllow) > 0 && !tickerAllow[strings.ToUpper(series)] {
					report.SkippedFilter++
					continue
				}
				if len(categoryAllow) > 0 && !categoryAllow[strings.ToLower(ev.Category)] {
					report.SkippedFilter++
					continue
				}

				report.MarketsSeen += len(ev.Markets)
				kept = append(kept, mapEvent(ev, series, s.now()))
				seriesTickers[series] = true
				report.EventsKept++

				if s.cfg.GlobalCapMarkets > 0 && report.MarketsSeen >= s.cfg.GlobalCapMarkets {
					report.CapReached = true
					break
				}
			}
			if report.CapReached || page.Cursor == "" {
				break
			}
			cursor = page.Cursor
		}
		if report.CapReached {
			break
		}
	}

	series, err := s.fetchSeries(ctx, seriesTickers)
	if err != nil {
		return nil, err
	}

	if !s.cfg.Apply {
		log.Info().
			Int("events", report.EventsKept).
			Int("series", len(series)).
			Int("skipped_mve", report.SkippedMve).
			Msg("Smart sync dry run, nothing written")
		return report, nil
	}

	if len(kept) > 0 {
		n, err := s.repo.UpsertEvents(ctx, kept)
		if err != nil {
			return nil, fmt.Errorf("upsert events: %w", err)
		}
		report.EventsUpserted = n
	}
	if len(series) > 0 {
		n, err := s.repo.UpsertSeries(ctx, series)
		if err != nil {
			return nil, fmt.Errorf("upsert series: %w", err)
		}
		report.SeriesUpserted = n
	}
	log.Info().
		Int("events", report.EventsUpserted).
		Int("series", report.SeriesUpserted).
		Bool("cap_reached", report.CapReached).
		Msg("Smart sync applied")
	return report, nil
}

// fetchSeries resolves each referenced series once, in a stable order.
func (s *SmartSync) fetchSeries(ctx context.Context, tickers map[string]bool) ([]model.KalshiSeries, error) {
	ordered := make([]string, 0, len(tickers))
	for t := range tickers {
		ordered = append(ordered, t)
	}
	sort.Strings(ordered)

	out := make([]model.KalshiSeries, 0, len(ordered))
	for _, ticker := range ordered {
		sp, err := s.client.Series(ctx, ticker)
		if err != nil {
			// A missing series record is not fatal; the event row still lands.
			log.Warn().Err(err).Str("series", ticker).Msg("Series lookup failed")
			continue
		}
		out = append(out, model.KalshiSeries{
			SeriesTicker: sp.Ticker,
			Title:        sp.Title,
			Category:     sp.Category,
			Frequency:    sp.Frequency,
			Tags:         sp.Tags,
			UpdatedAt:    s.now(),
		})
	}
	return out, nil
}

func mapEvent(ev eventPayload, series string, now time.Time) model.KalshiEvent {
	out := model.KalshiEvent{
		EventTicker:       ev.EventTicker,
		SeriesTicker:      series,
		Title:             ev.Title,
		Subtitle:          ev.Subtitle,
		Category:          ev.Category,
		MutuallyExclusive: ev.MutuallyExclusive,
		MarketCount:       len(ev.Markets),
		UpdatedAt:         now,
	}
	if ev.StrikeDate != nil {
		if t, err := time.Parse(time.RFC3339, *ev.StrikeDate); err == nil {
			t = t.UTC()
			out.StrikeDate = &t
		}
	}
	return out
}

func toSet(values []string, norm func(string) string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			set[norm(v)] = true
		}
	}
	return set
}
