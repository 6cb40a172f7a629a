// Package persistence defines the ports the matching core consumes: the
// repository over the relational store and the venue adapter. Concrete
// implementations live in persistence/postgres and infrastructure/{kalshi,
// polymarket}; the core never imports those directly.
package persistence

import (
	"context"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// ListParams selects eligible markets for one venue. LookbackHours,
// ForwardHours and GraceMinutes implement the canonical eligibility window
// in SQL so the bulk of filtering happens store-side.
type ListParams struct {
	Venue         model.Venue
	LookbackHours int
	ForwardHours  int
	GraceMinutes  int
	Limit         int
	TitleKeywords []string
	ExcludeSports bool
	OrderBy       string
}

// CryptoListParams narrows the eligible set to crypto markets. TickerPatterns
// are boundary-safe regex sources (see text.TickerPattern); the repository
// composes them into the query verbatim.
type CryptoListParams struct {
	ListParams
	FullNameKeywords []string
	TickerPatterns   []string
}

// TopicFilters narrows a by-topic listing.
type TopicFilters struct {
	Venue         model.Venue
	LookbackHours int
	Limit         int
	Statuses      []model.MarketStatus
}

// TaxonomyUpdate is the writable taxonomy slice of a market row.
type TaxonomyUpdate struct {
	DerivedTopic   model.Topic
	TaxonomySource model.TaxonomySource
	IsMve          bool
}

// MarketRepo reads and tags markets.
type MarketRepo interface {
	ListEligibleMarkets(ctx context.Context, p ListParams) ([]*model.Market, error)
	ListEligibleCryptoMarkets(ctx context.Context, p CryptoListParams) ([]*model.Market, error)
	ListMarketsByDerivedTopic(ctx context.Context, topic model.Topic, f TopicFilters) ([]*model.Market, error)
	GetMarket(ctx context.Context, id int64) (*model.Market, error)
	UpdateMarketTaxonomy(ctx context.Context, id int64, u TaxonomyUpdate) error
	CountActiveByTopic(ctx context.Context, venue model.Venue, lookbackHours int) (map[model.Topic]int, error)
}

// SuggestionUpsert is the single write path for links.
type SuggestionUpsert struct {
	LeftVenue     model.Venue
	LeftMarketID  int64
	RightVenue    model.Venue
	RightMarketID int64
	Score         float64
	Reason        string
	AlgoVersion   string
	Topic         model.Topic
	Status        model.LinkStatus
}

// UpsertOutcome reports what the idempotent upsert did.
type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "inserted"
	UpsertUpdated  UpsertOutcome = "updated"
	UpsertKept     UpsertOutcome = "kept" // existing confirmed row left alone
)

// LinkQuery filters link listings for the rule engines and the queue.
type LinkQuery struct {
	Topic       model.Topic
	Status      model.LinkStatus
	MinScore    float64
	MinAge      time.Duration
	Limit       int
	AlgoVersion string
}

// LinkRepo owns market_links.
type LinkRepo interface {
	UpsertSuggestionV3(ctx context.Context, s SuggestionUpsert) (UpsertOutcome, error)
	GetLink(ctx context.Context, id int64) (*model.MarketLink, error)
	ListLinks(ctx context.Context, q LinkQuery) ([]*model.MarketLink, error)
	UpdateLinkStatus(ctx context.Context, id int64, status model.LinkStatus, reason string) error
	CountLinksByStatus(ctx context.Context, topic model.Topic) (map[model.LinkStatus]int, error)
	CountConfirmedSince(ctx context.Context, since time.Time) (int, error)
}

// EventRepo reads the exchange-side taxonomy tables.
type EventRepo interface {
	GetEventsByTickers(ctx context.Context, tickers []string) (map[string]*model.KalshiEvent, error)
	GetSeries(ctx context.Context, seriesTicker string) (*model.KalshiSeries, error)
	UpsertEvents(ctx context.Context, events []model.KalshiEvent) (int, error)
	UpsertSeries(ctx context.Context, series []model.KalshiSeries) (int, error)
}

// WatchlistRepo owns quote_watchlist. Replace is wholesale: the watchlist is
// derived state, rebuilt every operational cycle.
type WatchlistRepo interface {
	ReplaceWatchlist(ctx context.Context, entries []model.WatchlistEntry) error
	CountWatchlist(ctx context.Context) (total int, perVenue map[model.Venue]int, err error)
}

// QuoteRepo exposes the freshness probe. shouldRecordQuote heartbeat
// semantics apply upstream: a quote row appears every interval even when the
// price is unchanged, so a zero count really means a dead feed.
type QuoteRepo interface {
	CountRecentQuotes(ctx context.Context, venue model.Venue, window time.Duration) (int, error)
}

// IngestionRepo is read-only from the core.
type IngestionRepo interface {
	ListIngestionStates(ctx context.Context) ([]*model.IngestionState, error)
}

// Repository aggregates every store port the engine touches.
type Repository interface {
	MarketRepo
	LinkRepo
	EventRepo
	WatchlistRepo
	QuoteRepo
	IngestionRepo
}

// FetchParams drives one adapter page fetch.
type FetchParams struct {
	Cursor string
	Limit  int
	Status string
}

// FetchResult is one page of venue markets.
type FetchResult struct {
	Markets    []*model.Market
	NextCursor string
}

// Adapter is the venue-facing port. Consumed, not owned, by the core.
type Adapter interface {
	Venue() model.Venue
	FetchMarkets(ctx context.Context, p FetchParams) (FetchResult, error)
	FetchQuotes(ctx context.Context, markets []*model.Market) ([]model.Quote, error)
}
