package signals

import (
	"fmt"
	"regexp"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// CryptoEntity is the asset a crypto market settles on.
type CryptoEntity string

const (
	EntityBitcoin  CryptoEntity = "BITCOIN"
	EntityEthereum CryptoEntity = "ETHEREUM"
	EntitySolana   CryptoEntity = "SOLANA"
	EntityXRP      CryptoEntity = "XRP"
	EntityDogecoin CryptoEntity = "DOGECOIN"
	EntityUnknown  CryptoEntity = ""
)

// DateType describes how the settle date was pinned down.
type DateType string

const (
	DateDayExact  DateType = "DAY_EXACT"
	DateMonthEnd  DateType = "MONTH_END"
	DateQuarter   DateType = "QUARTER"
	DateCloseTime DateType = "CLOSE_TIME"
	DateUnknown   DateType = "UNKNOWN"
)

// CryptoMarketType is the question shape of a crypto market.
type CryptoMarketType string

const (
	TypeDailyThreshold  CryptoMarketType = "DAILY_THRESHOLD"
	TypeDailyRange      CryptoMarketType = "DAILY_RANGE"
	TypeYearlyThreshold CryptoMarketType = "YEARLY_THRESHOLD"
	TypeIntradayUpDown  CryptoMarketType = "INTRADAY_UPDOWN"
)

// PriceContext tags how a numeric mention reads in a crypto title.
type PriceContext string

const (
	ContextPrice     PriceContext = "price"
	ContextThreshold PriceContext = "threshold"
	ContextUnknown   PriceContext = "unknown"
)

// CryptoNumber is one price-like number with its context tag.
type CryptoNumber struct {
	Value   float64      `json:"value"`
	Context PriceContext `json:"context"`
}

// CryptoSignals is the typed bundle for CRYPTO_DAILY and CRYPTO_INTRADAY.
type CryptoSignals struct {
	Entity       CryptoEntity     `json:"entity"`
	SettleDate   string           `json:"settle_date,omitempty"` // YYYY-MM-DD
	DateType     DateType         `json:"date_type"`
	SettlePeriod string           `json:"settle_period,omitempty"` // YYYY-MM or YYYY-Qn
	MarketType   CryptoMarketType `json:"market_type"`
	Numbers      []CryptoNumber   `json:"numbers,omitempty"`
	Comparator   text.Comparator  `json:"comparator"`
	TimeBucket   time.Time        `json:"time_bucket,omitempty"` // intraday, 1h bucket
	Direction    string           `json:"direction,omitempty"`   // up | down
	Meta
}

type cryptoAsset struct {
	entity CryptoEntity
	names  []string
	ticker string
}

var cryptoAssets = []cryptoAsset{
	{EntityBitcoin, []string{"bitcoin"}, "btc"},
	{EntityEthereum, []string{"ethereum", "ether "}, "eth"},
	{EntitySolana, []string{"solana"}, "sol"},
	{EntityXRP, []string{"ripple"}, "xrp"},
	{EntityDogecoin, []string{"dogecoin"}, "doge"},
}

// ExtractCryptoEntity finds the asset a title is about. Full names match by
// substring; short tickers only on word boundaries with an optional leading $,
// so "Hegseth" never reads as ETH.
func ExtractCryptoEntity(title string) CryptoEntity {
	for _, a := range cryptoAssets {
		for _, name := range a.names {
			if text.MatchesName(title, name) {
				return a.entity
			}
		}
		if text.MatchesTicker(title, a.ticker) {
			return a.entity
		}
	}
	return EntityUnknown
}

var (
	reDirectionUp   = regexp.MustCompile(`(?i)\b(up|higher|rise|above open)\b`)
	reDirectionDown = regexp.MustCompile(`(?i)\b(down|lower|fall|below open)\b`)
	reEndOfMonth    = regexp.MustCompile(`(?i)\b(end of (?:the )?month|month[- ]end)\b`)
	reIntradayHint  = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s?(?:am|pm)|this hour|next hour|today at|et\b)`)
)

// ExtractCrypto builds the crypto signal bundle for one market. Intraday is
// signaled by the derived topic or by an hour-of-day mention; the time bucket
// is the close time truncated to the hour.
func ExtractCrypto(m *model.Market) CryptoSignals {
	sig := CryptoSignals{
		Entity:     ExtractCryptoEntity(m.Title),
		Comparator: text.ExtractComparator(m.Title),
		DateType:   DateUnknown,
		MarketType: TypeDailyThreshold,
	}

	intraday := m.DerivedTopic == model.TopicCryptoIntraday ||
		(m.DerivedTopic == model.TopicUnknown && reIntradayHint.MatchString(m.Title) && dirOf(m.Title) != "")
	if intraday {
		sig.MarketType = TypeIntradayUpDown
		sig.Direction = dirOf(m.Title)
		if m.CloseTime != nil {
			sig.TimeBucket = m.CloseTime.UTC().Truncate(time.Hour)
			sig.SettleDate = m.CloseTime.UTC().Format("2006-01-02")
			sig.DateType = DateCloseTime
		}
		sig.Meta = metaFor(m.Title, cryptoConfidence(sig), "")
		return sig
	}

	if best, ok := text.BestDate(text.ExtractDates(m.Title)); ok {
		switch best.Precision {
		case text.PrecisionDay:
			sig.DateType = DateDayExact
			sig.SettleDate = best.Key()
		case text.PrecisionMonth:
			sig.DateType = DateMonthEnd
			sig.SettlePeriod = best.Key()
			sig.SettleDate = endOfMonth(best.Year, best.Month)
		case text.PrecisionQuarter:
			sig.DateType = DateQuarter
			sig.SettlePeriod = best.Key()
			sig.SettleDate = endOfQuarter(best.Year, best.Quarter)
		case text.PrecisionYear:
			sig.MarketType = TypeYearlyThreshold
			sig.SettlePeriod = fmt.Sprintf("%04d", best.Year)
			sig.SettleDate = fmt.Sprintf("%04d-12-31", best.Year)
			sig.DateType = DateMonthEnd
		}
	} else if m.CloseTime != nil {
		sig.DateType = DateCloseTime
		sig.SettleDate = m.CloseTime.UTC().Format("2006-01-02")
	}
	if reEndOfMonth.MatchString(m.Title) && sig.DateType == DateCloseTime {
		sig.DateType = DateMonthEnd
		sig.SettlePeriod = m.CloseTime.UTC().Format("2006-01")
	}

	if sig.Comparator == text.CompBetween {
		sig.MarketType = TypeDailyRange
	}

	for _, n := range text.ExtractNumbers(m.Title) {
		if n.IsPercent {
			continue
		}
		ctx := ContextUnknown
		switch {
		case n.IsMoney:
			ctx = ContextPrice
		case n.Value >= 1000:
			ctx = ContextThreshold
		}
		sig.Numbers = append(sig.Numbers, CryptoNumber{Value: n.Value, Context: ctx})
	}

	sig.Meta = metaFor(m.Title, cryptoConfidence(sig), "")
	return sig
}

// PriceRange returns the (min, max) of the price-like numbers, skipping
// context-unknown mentions when tagged ones exist.
func (s CryptoSignals) PriceRange() (min, max float64, ok bool) {
	tagged := false
	for _, n := range s.Numbers {
		if n.Context != ContextUnknown {
			tagged = true
			break
		}
	}
	for _, n := range s.Numbers {
		if tagged && n.Context == ContextUnknown {
			continue
		}
		if !ok {
			min, max, ok = n.Value, n.Value, true
			continue
		}
		if n.Value < min {
			min = n.Value
		}
		if n.Value > max {
			max = n.Value
		}
	}
	return min, max, ok
}

// Intraday reports whether the bundle describes an up/down hour market.
func (s CryptoSignals) Intraday() bool { return s.MarketType == TypeIntradayUpDown }

func dirOf(title string) string {
	up := reDirectionUp.MatchString(title)
	down := reDirectionDown.MatchString(title)
	switch {
	case up && !down:
		return "up"
	case down && !up:
		return "down"
	default:
		return ""
	}
}

func cryptoConfidence(s CryptoSignals) float64 {
	c := 0.0
	if s.Entity != EntityUnknown {
		c += 0.5
	}
	if s.SettleDate != "" {
		c += 0.3
	}
	if len(s.Numbers) > 0 || s.Intraday() {
		c += 0.2
	}
	return c
}

func endOfMonth(year, month int) string {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Format("2006-01-02")
}

func endOfQuarter(year, quarter int) string {
	return endOfMonth(year, quarter*3)
}
