package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// marketRow adds the raw metadata column to the model shape.
type marketRow struct {
	model.Market
	RawMetadata []byte `db:"metadata"`
}

func (r *marketRow) market() (*model.Market, error) {
	m := r.Market
	if len(r.RawMetadata) > 0 {
		if err := json.Unmarshal(r.RawMetadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for market %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

const marketColumns = `id, venue, external_id, title, status, close_time, category,
	event_ticker, series_ticker, derived_topic, taxonomy_source, is_mve,
	metadata, created_at, updated_at`

// eligibilityWindow is the canonical SQL rendition of the eligibility
// predicate: active markets closing inside [now-grace, now+forward] or with
// no close time, plus closed markets inside the lookback.
const eligibilityWindow = `(
	(status = 'active' AND (close_time IS NULL OR
		(close_time >= NOW() - ($%d * INTERVAL '1 minute')
		AND close_time <= NOW() + ($%d * INTERVAL '1 hour'))))
	OR (status = 'closed' AND close_time IS NOT NULL
		AND close_time >= NOW() - ($%d * INTERVAL '1 hour'))
)`

func (s *Store) ListEligibleMarkets(ctx context.Context, p persistence.ListParams) ([]*model.Market, error) {
	where, args := eligibleWhere(p)
	return s.queryMarkets(ctx, where, args, p.OrderBy, p.Limit)
}

// ListEligibleCryptoMarkets narrows the window to markets whose title
// mentions a tracked asset, by full name (substring) or short ticker
// (boundary regex). The regex sources come from text.TickerPattern verbatim.
func (s *Store) ListEligibleCryptoMarkets(ctx context.Context, p persistence.CryptoListParams) ([]*model.Market, error) {
	where, args := eligibleWhere(p.ListParams)

	var assetClauses []string
	for _, name := range p.FullNameKeywords {
		args = append(args, "%"+name+"%")
		assetClauses = append(assetClauses, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	for _, pattern := range p.TickerPatterns {
		args = append(args, pattern)
		assetClauses = append(assetClauses, fmt.Sprintf("LOWER(title) ~ $%d", len(args)))
	}
	if len(assetClauses) > 0 {
		where = append(where, "("+strings.Join(assetClauses, " OR ")+")")
	}
	return s.queryMarkets(ctx, where, args, p.OrderBy, p.Limit)
}

func (s *Store) ListMarketsByDerivedTopic(ctx context.Context, topic model.Topic, f persistence.TopicFilters) ([]*model.Market, error) {
	args := []any{topic}
	where := []string{"derived_topic = $1"}
	if f.Venue != "" {
		args = append(args, f.Venue)
		where = append(where, fmt.Sprintf("venue = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			args = append(args, st)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.LookbackHours > 0 {
		args = append(args, f.LookbackHours)
		where = append(where, fmt.Sprintf(
			"(close_time IS NULL OR close_time >= NOW() - ($%d * INTERVAL '1 hour'))", len(args)))
	}
	return s.queryMarkets(ctx, where, args, "", f.Limit)
}

func (s *Store) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var row marketRow
	query := fmt.Sprintf("SELECT %s FROM markets WHERE id = $1", marketColumns)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("market %d not found", id)
		}
		return nil, fmt.Errorf("get market %d: %w", id, err)
	}
	return row.market()
}

func (s *Store) UpdateMarketTaxonomy(ctx context.Context, id int64, u persistence.TaxonomyUpdate) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE markets
		SET derived_topic = $2, taxonomy_source = $3, is_mve = $4, updated_at = NOW()
		WHERE id = $1`,
		id, u.DerivedTopic, u.TaxonomySource, u.IsMve)
	if err != nil {
		return fmt.Errorf("update taxonomy for market %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("market %d not found", id)
	}
	return nil
}

func (s *Store) CountActiveByTopic(ctx context.Context, venue model.Venue, lookbackHours int) (map[model.Topic]int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `
		SELECT derived_topic, COUNT(*)
		FROM markets
		WHERE venue = $1
		  AND status IN ('active', 'closed')
		  AND (close_time IS NULL OR close_time >= NOW() - ($2 * INTERVAL '1 hour'))
		GROUP BY derived_topic`,
		venue, lookbackHours)
	if err != nil {
		return nil, fmt.Errorf("count active markets for %s: %w", venue, err)
	}
	defer rows.Close()

	counts := map[model.Topic]int{}
	for rows.Next() {
		var topic model.Topic
		var n int
		if err := rows.Scan(&topic, &n); err != nil {
			return nil, err
		}
		counts[topic] = n
	}
	return counts, rows.Err()
}

// eligibleWhere renders the shared filters of both eligible listings.
func eligibleWhere(p persistence.ListParams) (where []string, args []any) {
	args = append(args, p.Venue)
	where = append(where, "venue = $1")

	grace := p.GraceMinutes
	if grace <= 0 {
		grace = 60
	}
	forward := p.ForwardHours
	if forward <= 0 {
		forward = 8760
	}
	lookback := p.LookbackHours
	if lookback <= 0 {
		lookback = 720
	}
	args = append(args, grace, forward, lookback)
	where = append(where, fmt.Sprintf(eligibilityWindow, len(args)-2, len(args)-1, len(args)))

	if len(p.TitleKeywords) > 0 {
		var kw []string
		for _, k := range p.TitleKeywords {
			args = append(args, "%"+k+"%")
			kw = append(kw, fmt.Sprintf("title ILIKE $%d", len(args)))
		}
		where = append(where, "("+strings.Join(kw, " OR ")+")")
	}
	if p.ExcludeSports {
		args = append(args, model.TopicSports)
		where = append(where, fmt.Sprintf("derived_topic <> $%d", len(args)))
	}
	return where, args
}

func (s *Store) queryMarkets(ctx context.Context, where []string, args []any, orderBy string, limit int) ([]*model.Market, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM markets WHERE %s",
		marketColumns, strings.Join(where, " AND "))
	switch orderBy {
	case "", "close_time":
		query += " ORDER BY close_time ASC NULLS LAST, id ASC"
	case "updated_at":
		query += " ORDER BY updated_at DESC, id ASC"
	default:
		return nil, fmt.Errorf("unsupported order %q", orderBy)
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []marketRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
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
