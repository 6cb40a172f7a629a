package polymarket

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// Adapter exposes the Gamma client through the venue port. Cursors are the
// stringified page offset; Gamma has no opaque cursor.
type Adapter struct {
	client *Client
	now    func() time.Time
}

func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Adapter) Venue() model.Venue { return model.VenuePolymarket }

func (a *Adapter) FetchMarkets(ctx context.Context, p persistence.FetchParams) (persistence.FetchResult, error) {
	offset := 0
	if p.Cursor != "" {
		n, err := strconv.Atoi(p.Cursor)
		if err != nil || n < 0 {
			return persistence.FetchResult{}, strconv.ErrSyntax
		}
		offset = n
	}

	page, err := a.client.markets(ctx, offset, p.Status)
	if err != nil {
		return persistence.FetchResult{}, err
	}

	out := persistence.FetchResult{}
	for _, gm := range page {
		out.Markets = append(out.Markets, mapMarket(gm))
	}
	if p.Limit > 0 && len(out.Markets) > p.Limit {
		out.Markets = out.Markets[:p.Limit]
	}
	// A full page means there may be more.
	if len(page) == a.client.pageSize {
		out.NextCursor = strconv.Itoa(offset + len(page))
	}
	return out, nil
}

// FetchQuotes pages active markets and reads outcome prices for the
// requested set. Markets without a parseable price pair are skipped.
func (a *Adapter) FetchQuotes(ctx context.Context, markets []*model.Market) ([]model.Quote, error) {
	byExternal := make(map[string]*model.Market, len(markets))
	for _, m := range markets {
		byExternal[m.ExternalID] = m
	}

	var quotes []model.Quote
	offset := 0
	for len(byExternal) > 0 {
		page, err := a.client.markets(ctx, offset, "active")
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, gm := range page {
			m, ok := byExternal[gm.ID]
			if !ok {
				continue
			}
			yes, no, ok := parsePrices(gm.OutcomePrices)
			if !ok {
				log.Debug().Str("market", gm.ID).Msg("Market has no outcome prices")
				continue
			}
			quotes = append(quotes, model.Quote{
				Venue:      model.VenuePolymarket,
				MarketID:   m.ID,
				YesPrice:   yes,
				NoPrice:    no,
				ObservedAt: a.now(),
			})
			delete(byExternal, gm.ID)
		}
		if len(page) < a.client.pageSize {
			break
		}
		offset += len(page)
	}
	return quotes, nil
}

// mapMarket converts a Gamma market to the canonical shape. The condition id
// and token ids ride in the metadata bag.
func mapMarket(gm gammaMarket) *model.Market {
	m := &model.Market{
		Venue:      model.VenuePolymarket,
		ExternalID: gm.ID,
		Title:      gm.Question,
		Status:     mapStatus(gm),
		Category:   gm.Category,
		Metadata:   map[string]any{},
	}
	if gm.EndDate != nil {
		if t, err := time.Parse(time.RFC3339, *gm.EndDate); err == nil {
			t = t.UTC()
			m.CloseTime = &t
		}
	}
	if gm.ConditionID != "" {
		m.Metadata["conditionId"] = gm.ConditionID
	}
	if gm.Slug != "" {
		m.Metadata["slug"] = gm.Slug
	}
	if gm.ClobTokenIDs != "" {
		m.Metadata["clobTokenIds"] = gm.ClobTokenIDs
	}
	if gm.Outcomes != "" {
		m.Metadata["outcomes"] = gm.Outcomes
	}
	return m
}

func mapStatus(gm gammaMarket) model.MarketStatus {
	switch {
	case gm.Archived:
		return model.StatusArchived
	case gm.Closed:
		return model.StatusClosed
	case gm.Active:
		return model.StatusActive
	default:
		return model.StatusClosed
	}
}
