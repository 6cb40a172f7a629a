package kalshi

import (
	"context"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// CatalogAdapter is the catalog ingestion strategy: markets arrive nested
// inside their parent events, so every market lands with its event ticker
// and category even when the flat payload omits them. Slower than flat
// paging, richer taxonomy evidence.
type CatalogAdapter struct {
	client *Client
	nested bool
	now    func() time.Time
}

// NewCatalogAdapter wraps the client. withNested false is almost always a
// misconfiguration (events carry no markets), but it is the operator's call.
func NewCatalogAdapter(client *Client, withNested bool) *CatalogAdapter {
	return &CatalogAdapter{client: client, nested: withNested, now: func() time.Time { return time.Now().UTC() }}
}

func (a *CatalogAdapter) Venue() model.Venue { return model.VenueKalshi }

// FetchMarkets pages /events and flattens the nested markets. The cursor is
// the events cursor; Limit caps markets, not events.
func (a *CatalogAdapter) FetchMarkets(ctx context.Context, p persistence.FetchParams) (persistence.FetchResult, error) {
	page, err := a.client.Events(ctx, EventsParams{
		Cursor:            p.Cursor,
		Status:            p.Status,
		WithNestedMarkets: a.nested,
	})
	if err != nil {
		return persistence.FetchResult{}, err
	}

	out := persistence.FetchResult{NextCursor: page.Cursor}
	for _, ev := range page.Events {
		for _, mp := range ev.Markets {
			m := mapMarket(mp)
			if m.EventTicker == "" {
				m.EventTicker = ev.EventTicker
			}
			if m.SeriesTicker == "" || m.SeriesTicker == m.EventTicker {
				if ev.SeriesTicker != "" {
					m.SeriesTicker = ev.SeriesTicker
				} else {
					m.SeriesTicker = seriesFromEvent(ev.EventTicker)
				}
			}
			if m.Category == "" {
				m.Category = ev.Category
			}
			out.Markets = append(out.Markets, m)
		}
	}
	if p.Limit > 0 && len(out.Markets) > p.Limit {
		out.Markets = out.Markets[:p.Limit]
	}
	return out, nil
}

// FetchQuotes delegates to the flat market paging; quote reads do not care
// which ingestion strategy filled the store.
func (a *CatalogAdapter) FetchQuotes(ctx context.Context, markets []*model.Market) ([]model.Quote, error) {
	flat := &Adapter{client: a.client, now: a.now}
	return flat.FetchQuotes(ctx, markets)
}
