package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/predmatch/predmatch/internal/domain/model"
)

func (s *Store) GetEventsByTickers(ctx context.Context, tickers []string) (map[string]*model.KalshiEvent, error) {
	if len(tickers) == 0 {
		return map[string]*model.KalshiEvent{}, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var events []*model.KalshiEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT event_ticker, series_ticker, title, sub_title, category,
		       strike_date, mutually_exclusive, market_count, updated_at
		FROM kalshi_events
		WHERE event_ticker = ANY($1)`,
		pq.Array(tickers))
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}

	out := make(map[string]*model.KalshiEvent, len(events))
	for _, ev := range events {
		out[ev.EventTicker] = ev
	}
	return out, nil
}

func (s *Store) GetSeries(ctx context.Context, seriesTicker string) (*model.KalshiSeries, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var row struct {
		model.KalshiSeries
		RawTags pq.StringArray `db:"tags"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT series_ticker, title, category, frequency, tags, updated_at
		FROM kalshi_series WHERE series_ticker = $1`, seriesTicker)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get series %s: %w", seriesTicker, err)
	}
	series := row.KalshiSeries
	series.Tags = row.RawTags
	return &series, nil
}

func (s *Store) UpsertEvents(ctx context.Context, events []model.KalshiEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin event upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kalshi_events
			(event_ticker, series_ticker, title, sub_title, category,
			 strike_date, mutually_exclusive, market_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_ticker) DO UPDATE SET
			series_ticker = EXCLUDED.series_ticker,
			title = EXCLUDED.title,
			sub_title = EXCLUDED.sub_title,
			category = EXCLUDED.category,
			strike_date = EXCLUDED.strike_date,
			mutually_exclusive = EXCLUDED.mutually_exclusive,
			market_count = EXCLUDED.market_count,
			updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prepare event upsert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventTicker, ev.SeriesTicker, ev.Title, ev.Subtitle, ev.Category,
			ev.StrikeDate, ev.MutuallyExclusive, ev.MarketCount); err != nil {
			return 0, fmt.Errorf("upsert event %s: %w", ev.EventTicker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (s *Store) UpsertSeries(ctx context.Context, series []model.KalshiSeries) (int, error) {
	if len(series) == 0 {
		return 0, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin series upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kalshi_series (series_ticker, title, category, frequency, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (series_ticker) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			frequency = EXCLUDED.frequency,
			tags = EXCLUDED.tags,
			updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prepare series upsert: %w", err)
	}
	defer stmt.Close()

	for _, sr := range series {
		if _, err := stmt.ExecContext(ctx,
			sr.SeriesTicker, sr.Title, sr.Category, sr.Frequency,
			pq.Array(sr.Tags)); err != nil {
			return 0, fmt.Errorf("upsert series %s: %w", sr.SeriesTicker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(series), nil
}
