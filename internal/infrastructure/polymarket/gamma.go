// Package polymarket reads markets and prices from the Gamma API. The
// surface is intentionally small: list markets for ingestion and resolve
// current outcome prices for the quote heartbeat.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/predmatch/predmatch/internal/infrastructure/httpx"
	"github.com/predmatch/predmatch/internal/infrastructure/metrics"
)

// DefaultBaseURL is the public Gamma host.
const DefaultBaseURL = "https://gamma-api.polymarket.com"

const (
	defaultPageSize      = 100
	defaultRatePerSecond = 5
	defaultBurst         = 5
)

// Config tunes the client; zero values get defaults.
type Config struct {
	BaseURL       string
	PageSize      int
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// Client is the Gamma API client.
type Client struct {
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker[*resty.Response]
	limiter  *rate.Limiter
	retry    httpx.RetryConfig
	metrics  *metrics.Registry
	pageSize int
}

// NewClient wires the client; m may be nil.
func NewClient(cfg Config, m *metrics.Registry) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
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
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		breaker: gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
			Name:    "polymarket",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		metrics:  m,
		pageSize: pageSize,
	}
}

// gammaMarket is the wire shape of one Gamma market. Outcome prices arrive
// as a JSON-encoded string array inside the JSON document.
type gammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	ConditionID   string  `json:"conditionId"`
	Slug          string  `json:"slug"`
	Category      string  `json:"category,omitempty"`
	EndDate       *string `json:"endDate,omitempty"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	Archived      bool    `json:"archived"`
	Outcomes      string  `json:"outcomes,omitempty"`
	OutcomePrices string  `json:"outcomePrices,omitempty"`
	ClobTokenIDs  string  `json:"clobTokenIds,omitempty"`
}

// markets fetches one offset page.
func (c *Client) markets(ctx context.Context, offset int, status string) ([]gammaMarket, error) {
	params := map[string]string{
		"limit":  strconv.Itoa(c.pageSize),
		"offset": strconv.Itoa(offset),
	}
	switch status {
	case "", "active":
		params["active"] = "true"
		params["closed"] = "false"
	case "closed":
		params["closed"] = "true"
	case "all":
	default:
		return nil, fmt.Errorf("unsupported polymarket status filter %q", status)
	}

	var page []gammaMarket
	err := httpx.Retry(ctx, c.retry, "polymarket /markets", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		resp, err := c.breaker.Execute(func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetQueryParams(params).
				SetResult(&page).
				Get("/markets")
		})
		c.observe(start, resp, err)
		if err != nil {
			return httpx.Transient(err)
		}
		if resp.StatusCode() != http.StatusOK {
			return httpx.ClassifyStatus(resp.StatusCode(), resp.Header())
		}
		return nil
	})
	return page, err
}

func (c *Client) observe(start time.Time, resp *resty.Response, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if resp.StatusCode() != http.StatusOK {
		outcome = fmt.Sprint(resp.StatusCode())
	}
	c.metrics.HTTPRequests.WithLabelValues("polymarket", outcome).Inc()
	c.metrics.HTTPLatency.WithLabelValues("polymarket", "/markets").Observe(time.Since(start).Seconds())
}

// parsePrices decodes the nested JSON string array of outcome prices.
func parsePrices(raw string) (yes, no float64, ok bool) {
	if raw == "" {
		return 0, 0, false
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil || len(strs) < 2 {
		return 0, 0, false
	}
	yes, errY := strconv.ParseFloat(strs[0], 64)
	no, errN := strconv.ParseFloat(strs[1], 64)
	if errY != nil || errN != nil {
		return 0, 0, false
	}
	return yes, no, true
}
