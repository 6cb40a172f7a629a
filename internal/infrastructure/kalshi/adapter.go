package kalshi

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// Adapter exposes the client through the venue port.
type Adapter struct {
	client *Client
	now    func() time.Time
}

// NewAdapter wraps the client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Adapter) Venue() model.Venue { return model.VenueKalshi }

// FetchMarkets returns one page of venue markets mapped to the canonical
// shape. Taxonomy fields stay unset; the classifier owns them.
func (a *Adapter) FetchMarkets(ctx context.Context, p persistence.FetchParams) (persistence.FetchResult, error) {
	page, err := a.client.Markets(ctx, p.Cursor, p.Status)
	if err != nil {
		return persistence.FetchResult{}, err
	}
	out := persistence.FetchResult{NextCursor: page.Cursor}
	for _, mp := range page.Markets {
		out.Markets = append(out.Markets, mapMarket(mp))
	}
	if p.Limit > 0 && len(out.Markets) > p.Limit {
		out.Markets = out.Markets[:p.Limit]
	}
	return out, nil
}

// FetchQuotes reads current yes/no mid prices for the given markets. Markets
// whose payload carries no book are skipped, not errored.
func (a *Adapter) FetchQuotes(ctx context.Context, markets []*model.Market) ([]model.Quote, error) {
	byTicker := make(map[string]*model.Market, len(markets))
	for _, m := range markets {
		byTicker[m.ExternalID] = m
	}

	var quotes []model.Quote
	cursor := ""
	for {
		page, err := a.client.Markets(ctx, cursor, "")
		if err != nil {
			return nil, err
		}
		for _, mp := range page.Markets {
			m, ok := byTicker[mp.Ticker]
			if !ok {
				continue
			}
			yes, no, ok := midPrices(mp)
			if !ok {
				log.Debug().Str("ticker", mp.Ticker).Msg("Market has no two-sided book")
				continue
			}
			quotes = append(quotes, model.Quote{
				Venue:      model.VenueKalshi,
				MarketID:   m.ID,
				YesPrice:   yes,
				NoPrice:    no,
				ObservedAt: a.now(),
			})
			delete(byTicker, mp.Ticker)
		}
		if page.Cursor == "" || len(byTicker) == 0 {
			break
		}
		cursor = page.Cursor
	}
	return quotes, nil
}

// midPrices averages bid and ask; prices arrive in cents.
func midPrices(mp marketPayload) (yes, no float64, ok bool) {
	if mp.YesBid == nil || mp.YesAsk == nil {
		return 0, 0, false
	}
	yes = (*mp.YesBid + *mp.YesAsk) / 2 / 100
	if mp.NoBid != nil && mp.NoAsk != nil {
		no = (*mp.NoBid + *mp.NoAsk) / 2 / 100
	} else {
		no = 1 - yes
	}
	return yes, no, true
}

// mapMarket converts the wire payload to the canonical market. The raw
// strike and type fields ride along in the metadata bag for the extractors.
func mapMarket(mp marketPayload) *model.Market {
	m := &model.Market{
		Venue:        model.VenueKalshi,
		ExternalID:   mp.Ticker,
		Title:        mp.Title,
		Status:       mapStatus(mp.Status),
		Category:     mp.Category,
		EventTicker:  mp.EventTicker,
		SeriesTicker: seriesFromEvent(mp.EventTicker),
		Metadata:     map[string]any{},
	}
	if mp.CloseTime != nil {
		if t, err := time.Parse(time.RFC3339, *mp.CloseTime); err == nil {
			t = t.UTC()
			m.CloseTime = &t
		}
	}
	if mp.Subtitle != "" {
		m.Metadata["subtitle"] = mp.Subtitle
	}
	if mp.StrikeType != "" {
		m.Metadata["strike_type"] = mp.StrikeType
	}
	if mp.MarketType != "" {
		m.Metadata["market_type"] = mp.MarketType
	}
	if mp.CapStrike != nil {
		m.Metadata["cap_strike"] = *mp.CapStrike
	}
	if mp.FloorStrike != nil {
		m.Metadata["floor_strike"] = *mp.FloorStrike
	}
	return m
}

func mapStatus(s string) model.MarketStatus {
	switch strings.ToLower(s) {
	case "active", "open":
		return model.StatusActive
	case "closed", "inactive":
		return model.StatusClosed
	case "settled", "finalized", "determined":
		return model.StatusResolved
	default:
		return model.StatusArchived
	}
}

// seriesFromEvent derives the series ticker from the event ticker prefix.
// Event tickers are SERIES-INSTANCE; series tickers have no hyphen.
func seriesFromEvent(eventTicker string) string {
	if i := strings.Index(eventTicker, "-"); i > 0 {
		return eventTicker[:i]
	}
	return eventTicker
}
