package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// UpsertMarkets writes one venue batch keyed on (venue, external_id).
// Taxonomy columns are written too: the ingest sync classifies before it
// upserts, so a re-sync can move a market between topics.
func (s *Store) UpsertMarkets(ctx context.Context, markets []*model.Market) (int, error) {
	if len(markets) == 0 {
		return 0, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markets (venue, external_id, title, status, close_time,
		                     category, event_ticker, series_ticker,
		                     derived_topic, taxonomy_source, is_mve, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (venue, external_id) DO UPDATE SET
			title           = EXCLUDED.title,
			status          = EXCLUDED.status,
			close_time      = EXCLUDED.close_time,
			category        = EXCLUDED.category,
			event_ticker    = EXCLUDED.event_ticker,
			series_ticker   = EXCLUDED.series_ticker,
			derived_topic   = EXCLUDED.derived_topic,
			taxonomy_source = EXCLUDED.taxonomy_source,
			is_mve          = EXCLUDED.is_mve,
			metadata        = EXCLUDED.metadata,
			updated_at      = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prepare market upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range markets {
		var meta []byte
		if len(m.Metadata) > 0 {
			meta, err = json.Marshal(m.Metadata)
			if err != nil {
				return 0, fmt.Errorf("marshal metadata for %s/%s: %w", m.Venue, m.ExternalID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx,
			m.Venue, m.ExternalID, m.Title, m.Status, m.CloseTime,
			m.Category, m.EventTicker, m.SeriesTicker,
			m.DerivedTopic, m.TaxonomySource, m.IsMve, meta,
		); err != nil {
			return 0, fmt.Errorf("upsert market %s/%s: %w", m.Venue, m.ExternalID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(markets), nil
}

// GetMarketsByIDs loads a batch of markets by primary key, any venue.
func (s *Store) GetMarketsByIDs(ctx context.Context, ids []int64) ([]*model.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var rows []marketRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+marketColumns+` FROM markets WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("markets by ids: %w", err)
	}
	out := make([]*model.Market, 0, len(rows))
	for i := range rows {
		m, err := rows[i].market()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListWatchlist reads one venue's watchlist, highest priority first.
func (s *Store) ListWatchlist(ctx context.Context, venue model.Venue) ([]model.WatchlistEntry, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var entries []model.WatchlistEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, venue, market_id, priority, reason, updated_at
		FROM quote_watchlist
		WHERE venue = $1
		ORDER BY priority DESC, market_id`, venue)
	if err != nil {
		return nil, fmt.Errorf("list watchlist %s: %w", venue, err)
	}
	return entries, nil
}

// LatestQuotes returns the most recent quote per market for one venue.
func (s *Store) LatestQuotes(ctx context.Context, venue model.Venue) (map[int64]model.Quote, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var quotes []model.Quote
	err := s.db.SelectContext(ctx, &quotes, `
		SELECT DISTINCT ON (market_id)
		       id, venue, market_id, yes_price, no_price, observed_at
		FROM quotes
		WHERE venue = $1
		ORDER BY market_id, observed_at DESC`, venue)
	if err != nil {
		return nil, fmt.Errorf("latest quotes %s: %w", venue, err)
	}
	out := make(map[int64]model.Quote, len(quotes))
	for _, q := range quotes {
		out[q.MarketID] = q
	}
	return out, nil
}

// InsertQuotes appends quote observations. Quotes are immutable history;
// there is nothing to conflict on.
func (s *Store) InsertQuotes(ctx context.Context, quotes []model.Quote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quotes (venue, market_id, yes_price, no_price, observed_at)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return 0, fmt.Errorf("prepare quote insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, q.Venue, q.MarketID, q.YesPrice, q.NoPrice, q.ObservedAt); err != nil {
			return 0, fmt.Errorf("insert quote %s/%d: %w", q.Venue, q.MarketID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(quotes), nil
}

// RecordIngestionResult updates one (venue, job) health row. Success resets
// the failure streak; failure increments it and keeps the last success time.
func (s *Store) RecordIngestionResult(ctx context.Context, venue model.Venue, job string, runErr error) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if runErr == nil {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO ingestion_state (venue, job_name, last_success_at, last_error, consecutive_failures)
			VALUES ($1, $2, NOW(), '', 0)
			ON CONFLICT (venue, job_name) DO UPDATE SET
				last_success_at      = NOW(),
				last_error           = '',
				consecutive_failures = 0`, venue, job)
		if err != nil {
			return fmt.Errorf("record success %s/%s: %w", venue, job, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_state (venue, job_name, last_error, consecutive_failures)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (venue, job_name) DO UPDATE SET
			last_error           = EXCLUDED.last_error,
			consecutive_failures = ingestion_state.consecutive_failures + 1`, venue, job, runErr.Error())
	if err != nil {
		return fmt.Errorf("record failure %s/%s: %w", venue, job, err)
	}
	return nil
}
