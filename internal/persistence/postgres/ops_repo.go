package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// ReplaceWatchlist swaps the whole watchlist in one transaction; it is
// derived state, so a wholesale rewrite beats row-level reconciliation.
func (s *Store) ReplaceWatchlist(ctx context.Context, entries []model.WatchlistEntry) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watchlist replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM quote_watchlist"); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quote_watchlist (venue, market_id, priority, reason, updated_at)
		VALUES ($1, $2, $3, $4, NOW())`)
	if err != nil {
		return fmt.Errorf("prepare watchlist insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Venue, e.MarketID, e.Priority, e.Reason); err != nil {
			return fmt.Errorf("insert watchlist entry %s/%d: %w", e.Venue, e.MarketID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) CountWatchlist(ctx context.Context) (int, map[model.Venue]int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx,
		"SELECT venue, COUNT(*) FROM quote_watchlist GROUP BY venue")
	if err != nil {
		return 0, nil, fmt.Errorf("count watchlist: %w", err)
	}
	defer rows.Close()

	total := 0
	perVenue := map[model.Venue]int{}
	for rows.Next() {
		var venue model.Venue
		var n int
		if err := rows.Scan(&venue, &n); err != nil {
			return 0, nil, err
		}
		perVenue[venue] = n
		total += n
	}
	return total, perVenue, rows.Err()
}

func (s *Store) CountRecentQuotes(ctx context.Context, venue model.Venue, window time.Duration) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM quotes
		WHERE venue = $1 AND observed_at >= NOW() - ($2 * INTERVAL '1 second')`,
		venue, int(window.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("count recent quotes for %s: %w", venue, err)
	}
	return n, nil
}

func (s *Store) ListIngestionStates(ctx context.Context) ([]*model.IngestionState, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var states []*model.IngestionState
	err := s.db.SelectContext(ctx, &states, `
		SELECT venue, job_name, last_success_at, last_error, consecutive_failures
		FROM ingestion_state
		ORDER BY venue, job_name`)
	if err != nil {
		return nil, fmt.Errorf("list ingestion states: %w", err)
	}
	return states, nil
}
