// Package ingest pulls venue markets and quotes into the store. The market
// sync is where taxonomy gets assigned: every fetched market passes through
// the classifier before it is written, so downstream readers never see an
// unclassified row. Quote recording follows the heartbeat rule: a quote is
// written when the price moved or the interval elapsed, whichever first.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/classify"
	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// DefaultQuoteInterval is the heartbeat: one quote row per watched market at
// least this often, even when the price has not moved.
const DefaultQuoteInterval = 5 * time.Minute

// MarketStore is the store slice the market sync writes through.
type MarketStore interface {
	UpsertMarkets(ctx context.Context, markets []*model.Market) (int, error)
	GetEventsByTickers(ctx context.Context, tickers []string) (map[string]*model.KalshiEvent, error)
	GetSeries(ctx context.Context, seriesTicker string) (*model.KalshiSeries, error)
}

// QuoteStore is the store slice the quote sync reads and writes.
type QuoteStore interface {
	ListWatchlist(ctx context.Context, venue model.Venue) ([]model.WatchlistEntry, error)
	GetMarketsByIDs(ctx context.Context, ids []int64) ([]*model.Market, error)
	LatestQuotes(ctx context.Context, venue model.Venue) (map[int64]model.Quote, error)
	InsertQuotes(ctx context.Context, quotes []model.Quote) (int, error)
}

// StateStore records per-job ingestion health for the KPI probe.
type StateStore interface {
	RecordIngestionResult(ctx context.Context, venue model.Venue, job string, runErr error) error
}

// MarketsOptions shapes one market sync run.
type MarketsOptions struct {
	// Status is passed to the venue verbatim; empty means the venue default.
	Status string
	// MaxPages 0 means no page cap.
	MaxPages int
	// GlobalCap stops the sync once this many markets were fetched; 0 off.
	GlobalCap int
	Apply     bool
}

// MarketsReport summarizes one market sync run.
type MarketsReport struct {
	Venue      model.Venue         `json:"venue"`
	Pages      int                 `json:"pages"`
	Fetched    int                 `json:"fetched"`
	ByTopic    map[model.Topic]int `json:"by_topic"`
	Mve        int                 `json:"mve"`
	Upserted   int                 `json:"upserted"`
	Applied    bool                `json:"applied"`
	CapReached bool                `json:"cap_reached,omitempty"`
}

// Markets pages the venue adapter, classifies every market and upserts the
// batch. Dry-run classifies and reports without writing.
func Markets(ctx context.Context, store MarketStore, states StateStore, adapter persistence.Adapter, opts MarketsOptions) (report *MarketsReport, err error) {
	venue := adapter.Venue()
	report = &MarketsReport{Venue: venue, ByTopic: map[model.Topic]int{}, Applied: opts.Apply}
	if opts.Apply && states != nil {
		defer func() {
			if recErr := states.RecordIngestionResult(ctx, venue, "markets", err); recErr != nil {
				log.Error().Err(recErr).Str("venue", string(venue)).Msg("Recording ingestion state failed")
			}
		}()
	}

	var batch []*model.Market
	cursor := ""
	for {
		page, err := adapter.FetchMarkets(ctx, persistence.FetchParams{Cursor: cursor, Status: opts.Status})
		if err != nil {
			return report, fmt.Errorf("fetch %s markets: %w", venue, err)
		}
		report.Pages++
		report.Fetched += len(page.Markets)
		batch = append(batch, page.Markets...)

		if opts.GlobalCap > 0 && report.Fetched >= opts.GlobalCap {
			report.CapReached = true
			break
		}
		if page.NextCursor == "" || (opts.MaxPages > 0 && report.Pages >= opts.MaxPages) {
			break
		}
		cursor = page.NextCursor
	}

	if err := classifyBatch(ctx, store, batch, report); err != nil {
		return report, err
	}

	if !opts.Apply {
		log.Info().
			Str("venue", string(venue)).
			Int("fetched", report.Fetched).
			Msg("Market sync dry run, nothing written")
		return report, nil
	}
	n, err := store.UpsertMarkets(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("upsert %s markets: %w", venue, err)
	}
	report.Upserted = n
	log.Info().
		Str("venue", string(venue)).
		Int("pages", report.Pages).
		Int("upserted", n).
		Msg("Market sync complete")
	return report, nil
}

// classifyBatch assigns taxonomy in place. Kalshi markets are enriched with
// their event and series rows when present; a missing row just means less
// evidence, never an error.
func classifyBatch(ctx context.Context, store MarketStore, batch []*model.Market, report *MarketsReport) error {
	events := map[string]*model.KalshiEvent{}
	var tickers []string
	seen := map[string]struct{}{}
	for _, m := range batch {
		if m.Venue == model.VenueKalshi && m.EventTicker != "" {
			if _, dup := seen[m.EventTicker]; !dup {
				seen[m.EventTicker] = struct{}{}
				tickers = append(tickers, m.EventTicker)
			}
		}
	}
	if len(tickers) > 0 {
		var err error
		events, err = store.GetEventsByTickers(ctx, tickers)
		if err != nil {
			return fmt.Errorf("events lookup: %w", err)
		}
	}

	series := map[string]*model.KalshiSeries{}
	for _, m := range batch {
		var s *model.KalshiSeries
		if m.SeriesTicker != "" {
			cached, ok := series[m.SeriesTicker]
			if !ok {
				var err error
				cached, err = store.GetSeries(ctx, m.SeriesTicker)
				if err != nil {
					return fmt.Errorf("series %s: %w", m.SeriesTicker, err)
				}
				series[m.SeriesTicker] = cached
			}
			s = cached
		}

		c := classify.Classify(classify.Input{Market: m, Event: events[m.EventTicker], Series: s})
		m.DerivedTopic = c.Topic
		m.TaxonomySource = c.Source
		m.IsMve = classify.DetectMve(m).IsMve

		report.ByTopic[c.Topic]++
		if m.IsMve {
			report.Mve++
		}
	}
	return nil
}

// QuotesOptions shapes one quote sync run.
type QuotesOptions struct {
	Interval time.Duration
	Apply    bool
}

// QuotesReport summarizes one quote sync run across venues.
type QuotesReport struct {
	PerVenue map[model.Venue]*VenueQuotes `json:"per_venue"`
	Applied  bool                         `json:"applied"`
}

// VenueQuotes is the per-venue breakdown.
type VenueQuotes struct {
	Watched   int    `json:"watched"`
	Fetched   int    `json:"fetched"`
	Recorded  int    `json:"recorded"`
	Heartbeat int    `json:"heartbeat"`
	Err       string `json:"err,omitempty"`
}

// Quotes refreshes quotes for every watchlisted market. Venues are isolated:
// one venue failing still lets the other record, and each venue's ingestion
// state reflects its own outcome.
func Quotes(ctx context.Context, store QuoteStore, states StateStore, adapters []persistence.Adapter, opts QuotesOptions) (*QuotesReport, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultQuoteInterval
	}
	report := &QuotesReport{PerVenue: map[model.Venue]*VenueQuotes{}, Applied: opts.Apply}

	var firstErr error
	for _, adapter := range adapters {
		venue := adapter.Venue()
		vq := &VenueQuotes{}
		report.PerVenue[venue] = vq

		err := quoteVenue(ctx, store, adapter, opts, vq)
		if err != nil {
			vq.Err = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			log.Error().Err(err).Str("venue", string(venue)).Msg("Quote sync failed")
		}
		if opts.Apply && states != nil {
			if recErr := states.RecordIngestionResult(ctx, venue, "quotes", err); recErr != nil {
				log.Error().Err(recErr).Str("venue", string(venue)).Msg("Recording ingestion state failed")
			}
		}
	}
	return report, firstErr
}

func quoteVenue(ctx context.Context, store QuoteStore, adapter persistence.Adapter, opts QuotesOptions, vq *VenueQuotes) error {
	venue := adapter.Venue()
	entries, err := store.ListWatchlist(ctx, venue)
	if err != nil {
		return fmt.Errorf("watchlist %s: %w", venue, err)
	}
	vq.Watched = len(entries)
	if len(entries) == 0 {
		return nil
	}

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.MarketID
	}
	markets, err := store.GetMarketsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load %s markets: %w", venue, err)
	}

	quotes, err := adapter.FetchQuotes(ctx, markets)
	if err != nil {
		return fmt.Errorf("fetch %s quotes: %w", venue, err)
	}
	vq.Fetched = len(quotes)

	latest, err := store.LatestQuotes(ctx, venue)
	if err != nil {
		return fmt.Errorf("latest %s quotes: %w", venue, err)
	}

	var record []model.Quote
	for _, q := range quotes {
		prev, ok := latest[q.MarketID]
		if !ok {
			record = append(record, q)
			continue
		}
		changed := prev.YesPrice != q.YesPrice || prev.NoPrice != q.NoPrice
		if changed {
			record = append(record, q)
			continue
		}
		if q.ObservedAt.Sub(prev.ObservedAt) >= opts.Interval {
			record = append(record, q)
			vq.Heartbeat++
		}
	}

	if !opts.Apply {
		vq.Recorded = len(record)
		return nil
	}
	n, err := store.InsertQuotes(ctx, record)
	if err != nil {
		return fmt.Errorf("insert %s quotes: %w", venue, err)
	}
	vq.Recorded = n
	return nil
}
