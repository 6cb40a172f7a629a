// Package kalshi talks to the Kalshi trade API: market and event paging for
// ingestion, series metadata for taxonomy, and the events/series smart sync.
// All requests flow through one resty client wrapped in a rate limiter, a
// circuit breaker and the shared retry policy.
package kalshi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/predmatch/predmatch/internal/infrastructure/httpx"
	"github.com/predmatch/predmatch/internal/infrastructure/metrics"
)

const (
	// ProdBaseURL is the elections production host.
	ProdBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	// DemoBaseURL is the paper-trading host.
	DemoBaseURL = "https://demo-api.kalshi.co/trade-api/v2"

	// MaxPageLimit is the hard page-size cap the API enforces.
	MaxPageLimit = 1000

	defaultRatePerSecond = 10
	defaultBurst         = 10
)

// Config tunes the client. Zero values fall back to production defaults.
type Config struct {
	BaseURL       string
	UseDemo       bool
	APIKeyID      string
	PrivateKeyPEM string
	// MarketsLimit is the page size for market listings, capped at MaxPageLimit.
	MarketsLimit  int
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.UseDemo {
		return DemoBaseURL
	}
	return ProdBaseURL
}

func (c Config) pageLimit() int {
	if c.MarketsLimit <= 0 || c.MarketsLimit > MaxPageLimit {
		return MaxPageLimit
	}
	return c.MarketsLimit
}

// Client is the trade-api client.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	limiter *rate.Limiter
	tokens  TokenSource
	retry   httpx.RetryConfig
	metrics *metrics.Registry
	limit   int
}

// NewClient wires the client. tokens may be nil for public endpoints; m may
// be nil.
func NewClient(cfg Config, tokens TokenSource, m *metrics.Registry) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpx.DefaultRequestTimeout
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = defaultRatePerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	hc := resty.New().
		SetBaseURL(cfg.baseURL()).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:    "kalshi",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		http:    hc,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		tokens:  tokens,
		metrics: m,
		limit:   cfg.pageLimit(),
	}
}

// marketPayload is the wire shape of one market.
type marketPayload struct {
	Ticker       string   `json:"ticker"`
	EventTicker  string   `json:"event_ticker"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle,omitempty"`
	Status       string   `json:"status"`
	CloseTime    *string  `json:"close_time,omitempty"`
	Category     string   `json:"category,omitempty"`
	YesBid       *float64 `json:"yes_bid,omitempty"`
	YesAsk       *float64 `json:"yes_ask,omitempty"`
	NoBid        *float64 `json:"no_bid,omitempty"`
	NoAsk        *float64 `json:"no_ask,omitempty"`
	CapStrike    *float64 `json:"cap_strike,omitempty"`
	FloorStrike  *float64 `json:"floor_strike,omitempty"`
	StrikeType   string   `json:"strike_type,omitempty"`
	MarketType   string   `json:"market_type,omitempty"`
}

type marketsPage struct {
	Markets []marketPayload `json:"markets"`
	Cursor  string          `json:"cursor"`
}

// eventPayload is the wire shape of one event, optionally with nested
// markets.
type eventPayload struct {
	EventTicker       string          `json:"event_ticker"`
	SeriesTicker      string          `json:"series_ticker"`
	Title             string          `json:"title"`
	Subtitle          string          `json:"sub_title,omitempty"`
	Category          string          `json:"category,omitempty"`
	StrikeDate        *string         `json:"strike_date,omitempty"`
	MutuallyExclusive bool            `json:"mutually_exclusive"`
	Markets           []marketPayload `json:"markets,omitempty"`
}

type eventsPage struct {
	Events []eventPayload `json:"events"`
	Cursor string         `json:"cursor"`
}

type seriesPayload struct {
	Ticker    string   `json:"ticker"`
	Title     string   `json:"title"`
	Category  string   `json:"category,omitempty"`
	Frequency string   `json:"frequency,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type seriesList struct {
	Series []seriesPayload `json:"series"`
}

type seriesEnvelope struct {
	Series seriesPayload `json:"series"`
}

// Markets fetches one page of markets.
func (c *Client) Markets(ctx context.Context, cursor, status string) (marketsPage, error) {
	var page marketsPage
	params := map[string]string{"limit": fmt.Sprint(c.limit)}
	if cursor != "" {
		params["cursor"] = cursor
	}
	if status != "" {
		params["status"] = status
	}
	err := c.getJSON(ctx, "/markets", params, &page)
	return page, err
}

// EventsParams drives one events page fetch.
type EventsParams struct {
	Cursor            string
	Status            string
	SeriesTicker      string
	WithNestedMarkets bool
	Limit             int
}

// Events fetches one page of events.
func (c *Client) Events(ctx context.Context, p EventsParams) (eventsPage, error) {
	var page eventsPage
	limit := p.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	params := map[string]string{"limit": fmt.Sprint(limit)}
	if p.Cursor != "" {
		params["cursor"] = p.Cursor
	}
	if p.Status != "" {
		params["status"] = p.Status
	}
	if p.SeriesTicker != "" {
		params["series_ticker"] = p.SeriesTicker
	}
	if p.WithNestedMarkets {
		params["with_nested_markets"] = "true"
	}
	err := c.getJSON(ctx, "/events", params, &page)
	return page, err
}

// SeriesByCategory lists series in one category.
func (c *Client) SeriesByCategory(ctx context.Context, category string) ([]seriesPayload, error) {
	var list seriesList
	err := c.getJSON(ctx, "/series", map[string]string{"category": category}, &list)
	return list.Series, err
}

// Series fetches one series by ticker.
func (c *Client) Series(ctx context.Context, ticker string) (seriesPayload, error) {
	var env seriesEnvelope
	err := c.getJSON(ctx, "/series/"+ticker, nil, &env)
	return env.Series, err
}

// getJSON is the single request path: limiter, auth header, breaker, retry,
// status classification.
func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	return httpx.Retry(ctx, c.retry, "kalshi "+path, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req := c.http.R().SetContext(ctx).SetResult(out)
		if params != nil {
			req.SetQueryParams(params)
		}
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return httpx.Permanent(fmt.Errorf("kalshi auth: %w", err))
			}
			req.SetHeader("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.breaker.Execute(func() (*resty.Response, error) {
			return req.Get(path)
		})
		c.observe(path, start, resp, err)
		if err != nil {
			// Breaker-open and network failures alike are worth retrying;
			// the backoff gives the breaker time to half-open.
			return httpx.Transient(err)
		}
		if resp.StatusCode() != http.StatusOK {
			return httpx.ClassifyStatus(resp.StatusCode(), resp.Header())
		}
		return nil
	})
}

func (c *Client) observe(path string, start time.Time, resp *resty.Response, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if resp.StatusCode() != http.StatusOK {
		outcome = fmt.Sprint(resp.StatusCode())
	}
	c.metrics.HTTPRequests.WithLabelValues("kalshi", outcome).Inc()
	c.metrics.HTTPLatency.WithLabelValues("kalshi", path).Observe(time.Since(start).Seconds())
}
