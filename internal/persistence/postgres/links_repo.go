package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

const linkColumns = `id, left_venue, left_market_id, right_venue, right_market_id,
	score, status, reason, topic, algo_version, created_at, updated_at`

// canonicalPair orders a suggestion so the lexically smaller venue sits on
// the left. Links are unordered pairs: a reversed-direction run must land on
// the same row, and the directed UNIQUE constraint only guarantees that when
// every write uses the same orientation.
func canonicalPair(up persistence.SuggestionUpsert) persistence.SuggestionUpsert {
	if up.LeftVenue > up.RightVenue {
		up.LeftVenue, up.RightVenue = up.RightVenue, up.LeftVenue
		up.LeftMarketID, up.RightMarketID = up.RightMarketID, up.LeftMarketID
	}
	return up
}

// UpsertSuggestionV3 is the single link write path. The unordered market
// pair is the conflict key; a confirmed row is never regressed to suggested,
// it just keeps its status while score and reason refresh.
func (s *Store) UpsertSuggestionV3(ctx context.Context, up persistence.SuggestionUpsert) (persistence.UpsertOutcome, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	up = canonicalPair(up)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin link upsert: %w", err)
	}
	defer tx.Rollback()

	var existing struct {
		ID     int64            `db:"id"`
		Status model.LinkStatus `db:"status"`
	}
	err = tx.GetContext(ctx, &existing, `
		SELECT id, status FROM market_links
		WHERE left_venue = $1 AND left_market_id = $2
		  AND right_venue = $3 AND right_market_id = $4
		FOR UPDATE`,
		up.LeftVenue, up.LeftMarketID, up.RightVenue, up.RightMarketID)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO market_links
				(left_venue, left_market_id, right_venue, right_market_id,
				 score, status, reason, topic, algo_version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
			up.LeftVenue, up.LeftMarketID, up.RightVenue, up.RightMarketID,
			up.Score, up.Status, up.Reason, up.Topic, up.AlgoVersion)
		if err != nil {
			return "", fmt.Errorf("insert link: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return persistence.UpsertInserted, nil

	case err != nil:
		return "", fmt.Errorf("lookup link: %w", err)
	}

	status := up.Status
	outcome := persistence.UpsertUpdated
	if existing.Status == model.LinkConfirmed {
		switch up.Status {
		case model.LinkSuggested:
			status = model.LinkConfirmed
			outcome = persistence.UpsertKept
		case model.LinkRejected:
			log.Warn().
				Int64("link_id", existing.ID).
				Str("topic", string(up.Topic)).
				Msg("Demoting a CONFIRMED link to rejected")
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE market_links
		SET score = $2, status = $3, reason = $4, algo_version = $5, updated_at = NOW()
		WHERE id = $1`,
		existing.ID, up.Score, status, up.Reason, up.AlgoVersion)
	if err != nil {
		return "", fmt.Errorf("update link %d: %w", existing.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Store) GetLink(ctx context.Context, id int64) (*model.MarketLink, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var link model.MarketLink
	query := fmt.Sprintf("SELECT %s FROM market_links WHERE id = $1", linkColumns)
	if err := s.db.GetContext(ctx, &link, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("link %d not found", id)
		}
		return nil, fmt.Errorf("get link %d: %w", id, err)
	}
	return &link, nil
}

func (s *Store) ListLinks(ctx context.Context, q persistence.LinkQuery) ([]*model.MarketLink, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var where []string
	var args []any
	if q.Topic != "" {
		args = append(args, q.Topic)
		where = append(where, fmt.Sprintf("topic = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if q.MinScore > 0 {
		args = append(args, q.MinScore)
		where = append(where, fmt.Sprintf("score >= $%d", len(args)))
	}
	if q.MinAge > 0 {
		args = append(args, q.MinAge.Hours())
		where = append(where, fmt.Sprintf("created_at <= NOW() - ($%d * INTERVAL '1 hour')", len(args)))
	}
	if q.AlgoVersion != "" {
		args = append(args, q.AlgoVersion)
		where = append(where, fmt.Sprintf("algo_version = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM market_links", linkColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score DESC, id ASC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var links []*model.MarketLink
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *Store) UpdateLinkStatus(ctx context.Context, id int64, status model.LinkStatus, reason string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE market_links
		SET status = $2, reason = $3, updated_at = NOW()
		WHERE id = $1`,
		id, status, reason)
	if err != nil {
		return fmt.Errorf("update link %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %d not found", id)
	}
	return nil
}

func (s *Store) CountLinksByStatus(ctx context.Context, topic model.Topic) (map[model.LinkStatus]int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `
		SELECT status, COUNT(*) FROM market_links
		WHERE topic = $1 GROUP BY status`, topic)
	if err != nil {
		return nil, fmt.Errorf("count links for %s: %w", topic, err)
	}
	defer rows.Close()

	counts := map[model.LinkStatus]int{}
	for rows.Next() {
		var status model.LinkStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) CountConfirmedSince(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM market_links
		WHERE status = 'confirmed' AND updated_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("count recent confirmations: %w", err)
	}
	return n, nil
}
