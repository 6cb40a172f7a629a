// Package model holds the persistent entities shared by the matching engine:
// markets, outcomes, exchange events, cross-venue links, watchlist entries and
// ingestion state. Everything here is plain data; behavior lives in the
// classifier, the signal extractors and the pipelines.
package model

import "time"

// Venue identifies where a market trades.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Valid reports whether v is one of the two supported venues.
func (v Venue) Valid() bool {
	return v == VenueKalshi || v == VenuePolymarket
}

// Other returns the opposite venue.
func (v Venue) Other() Venue {
	if v == VenueKalshi {
		return VenuePolymarket
	}
	return VenueKalshi
}

// MarketStatus is the lifecycle state of a market at its venue.
type MarketStatus string

const (
	StatusActive   MarketStatus = "active"
	StatusClosed   MarketStatus = "closed"
	StatusResolved MarketStatus = "resolved"
	StatusArchived MarketStatus = "archived"
)

// Terminal reports whether the market can no longer trade.
func (s MarketStatus) Terminal() bool {
	return s == StatusResolved || s == StatusArchived
}

// Topic is the canonical topic assigned to a market by the classifier.
// The set is closed; new topics are added deliberately, never inferred.
type Topic string

const (
	TopicCryptoDaily    Topic = "CRYPTO_DAILY"
	TopicCryptoIntraday Topic = "CRYPTO_INTRADAY"
	TopicMacro          Topic = "MACRO"
	TopicRates          Topic = "RATES"
	TopicElections      Topic = "ELECTIONS"
	TopicGeopolitics    Topic = "GEOPOLITICS"
	TopicSports         Topic = "SPORTS"
	TopicEntertainment  Topic = "ENTERTAINMENT"
	TopicClimate        Topic = "CLIMATE"
	TopicCommodities    Topic = "COMMODITIES"
	TopicFinance        Topic = "FINANCE"
	TopicUniversal      Topic = "UNIVERSAL"
	TopicUnknown        Topic = "UNKNOWN"
)

// AllTopics lists every canonical topic, UNKNOWN last.
var AllTopics = []Topic{
	TopicCryptoDaily, TopicCryptoIntraday, TopicMacro, TopicRates,
	TopicElections, TopicGeopolitics, TopicSports, TopicEntertainment,
	TopicClimate, TopicCommodities, TopicFinance, TopicUniversal,
	TopicUnknown,
}

// ParseTopic maps a string to a canonical topic, returning TopicUnknown
// for anything outside the closed set.
func ParseTopic(s string) Topic {
	for _, t := range AllTopics {
		if string(t) == s {
			return t
		}
	}
	return TopicUnknown
}

// TaxonomySource records how a market's derived topic was assigned.
type TaxonomySource string

const (
	SourceDatabase       TaxonomySource = "database"
	SourceRule           TaxonomySource = "rule"
	SourceTickerPattern  TaxonomySource = "ticker_pattern"
	SourceTitleKeywords  TaxonomySource = "title_keywords"
	SourceCategory       TaxonomySource = "category"
	SourceMetadata       TaxonomySource = "metadata"
	SourceSeriesMetadata TaxonomySource = "series_metadata"
	SourceEventMetadata  TaxonomySource = "event_metadata"
	SourceFallback       TaxonomySource = "fallback"
)

// Market is a tradeable question at one venue. (Venue, ExternalID) is unique.
type Market struct {
	ID             int64          `db:"id" json:"id"`
	Venue          Venue          `db:"venue" json:"venue"`
	ExternalID     string         `db:"external_id" json:"external_id"`
	Title          string         `db:"title" json:"title"`
	Status         MarketStatus   `db:"status" json:"status"`
	CloseTime      *time.Time     `db:"close_time" json:"close_time,omitempty"`
	Category       string         `db:"category" json:"category,omitempty"`
	EventTicker    string         `db:"event_ticker" json:"event_ticker,omitempty"`
	SeriesTicker   string         `db:"series_ticker" json:"series_ticker,omitempty"`
	DerivedTopic   Topic          `db:"derived_topic" json:"derived_topic"`
	TaxonomySource TaxonomySource `db:"taxonomy_source" json:"taxonomy_source,omitempty"`
	IsMve          bool           `db:"is_mve" json:"is_mve"`
	// Metadata is the venue-native payload, kept opaque at the boundary.
	// Extractors read from it defensively; scoring never sees it directly.
	Metadata  map[string]any `db:"-" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Meta reads a string field from the metadata bag, trying each key in order.
// Venue payloads are inconsistent about casing (seriesTicker vs series_ticker),
// so callers pass every spelling they have seen.
func (m *Market) Meta(keys ...string) string {
	for _, k := range keys {
		if v, ok := m.Metadata[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// MetaBool reads a boolean field from the metadata bag.
func (m *Market) MetaBool(keys ...string) bool {
	for _, k := range keys {
		if v, ok := m.Metadata[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// OutcomeSide is the binary side of a market.
type OutcomeSide string

const (
	OutcomeYes OutcomeSide = "yes"
	OutcomeNo  OutcomeSide = "no"
)

// Outcome is one binary side of a market. Markets without exactly two
// outcomes are ignored by the matching engine.
type Outcome struct {
	ID       int64       `db:"id" json:"id"`
	MarketID int64       `db:"market_id" json:"market_id"`
	Side     OutcomeSide `db:"side" json:"side"`
	TokenID  string      `db:"token_id" json:"token_id,omitempty"`
}

// KalshiEvent is the exchange-side parent grouping for markets. Only used to
// enrich sports signals with authoritative team and start-time data.
type KalshiEvent struct {
	EventTicker       string     `db:"event_ticker" json:"event_ticker"`
	SeriesTicker      string     `db:"series_ticker" json:"series_ticker"`
	Title             string     `db:"title" json:"title"`
	Subtitle          string     `db:"sub_title" json:"sub_title,omitempty"`
	Category          string     `db:"category" json:"category,omitempty"`
	StrikeDate        *time.Time `db:"strike_date" json:"strike_date,omitempty"`
	MutuallyExclusive bool       `db:"mutually_exclusive" json:"mutually_exclusive"`
	MarketCount       int        `db:"market_count" json:"market_count"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// KalshiSeries is the exchange-side series record (recurring event template).
type KalshiSeries struct {
	SeriesTicker string    `db:"series_ticker" json:"series_ticker"`
	Title        string    `db:"title" json:"title"`
	Category     string    `db:"category" json:"category,omitempty"`
	Frequency    string    `db:"frequency" json:"frequency,omitempty"`
	Tags         []string  `db:"-" json:"tags,omitempty"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LinkStatus is the review state of a cross-venue link.
type LinkStatus string

const (
	LinkSuggested LinkStatus = "suggested"
	LinkConfirmed LinkStatus = "confirmed"
	LinkRejected  LinkStatus = "rejected"
)

// MarketLink pairs one market per venue for the same real-world question.
// At most one link exists per (leftVenue, leftMarketID, rightVenue,
// rightMarketID); the orchestrator upserts on that key.
type MarketLink struct {
	ID            int64      `db:"id" json:"id"`
	LeftVenue     Venue      `db:"left_venue" json:"left_venue"`
	LeftMarketID  int64      `db:"left_market_id" json:"left_market_id"`
	RightVenue    Venue      `db:"right_venue" json:"right_venue"`
	RightMarketID int64      `db:"right_market_id" json:"right_market_id"`
	Score         float64    `db:"score" json:"score"`
	Status        LinkStatus `db:"status" json:"status"`
	Reason        string     `db:"reason" json:"reason"`
	Topic         Topic      `db:"topic" json:"topic"`
	AlgoVersion   string     `db:"algo_version" json:"algo_version"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Watchlist priorities, highest first.
const (
	PriorityConfirmed     = 100
	PriorityCandidateSafe = 80
	PriorityTopSuggested  = 50
	PriorityOther         = 30
)

// WatchlistEntry marks a market whose quotes should be kept fresh. The
// watchlist is rebuilt from links each operational cycle and is never
// authoritative.
type WatchlistEntry struct {
	ID        int64     `db:"id" json:"id"`
	Venue     Venue     `db:"venue" json:"venue"`
	MarketID  int64     `db:"market_id" json:"market_id"`
	Priority  int       `db:"priority" json:"priority"`
	Reason    string    `db:"reason" json:"reason"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Quote is a point-in-time price observation for one market.
type Quote struct {
	ID         int64     `db:"id" json:"id"`
	Venue      Venue     `db:"venue" json:"venue"`
	MarketID   int64     `db:"market_id" json:"market_id"`
	YesPrice   float64   `db:"yes_price" json:"yes_price"`
	NoPrice    float64   `db:"no_price" json:"no_price"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
}

// IngestionState tracks the health of one (venue, job) ingestion loop.
type IngestionState struct {
	Venue               Venue      `db:"venue" json:"venue"`
	JobName             string     `db:"job_name" json:"job_name"`
	LastSuccessAt       *time.Time `db:"last_success_at" json:"last_success_at,omitempty"`
	LastError           string     `db:"last_error" json:"last_error,omitempty"`
	ConsecutiveFailures int        `db:"consecutive_failures" json:"consecutive_failures"`
}
