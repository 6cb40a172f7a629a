// Package classify assigns each market a canonical topic and detects
// multi-variable (parlay) markets. Resolution is ordered: exchange series
// patterns, then the category map, then series/event tags, then title
// keywords, then the UNKNOWN fallback. The first sufficient signal wins.
package classify

import (
	"regexp"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// Classification is the classifier verdict for one market.
type Classification struct {
	Topic      model.Topic          `json:"topic"`
	Confidence float64              `json:"confidence"`
	Source     model.TaxonomySource `json:"source"`
	Reason     string               `json:"reason"`
}

// seriesPrefix maps a Kalshi series-ticker prefix to a topic. Longer
// prefixes are checked first so KXBTCD wins over KXBTC.
type seriesPrefix struct {
	prefix string
	topic  model.Topic
}

var seriesPrefixes = []seriesPrefix{
	// Daily price-threshold series.
	{"KXBTCD", model.TopicCryptoDaily},
	{"KXETHD", model.TopicCryptoDaily},
	{"KXSOLD", model.TopicCryptoDaily},
	{"KXXRPD", model.TopicCryptoDaily},
	{"KXDOGED", model.TopicCryptoDaily},
	{"KXBTCMAX", model.TopicCryptoDaily},
	{"KXBTCMIN", model.TopicCryptoDaily},
	// Intraday up/down series.
	{"KXBTCU", model.TopicCryptoIntraday},
	{"KXETHU", model.TopicCryptoIntraday},
	{"KXBTC15", model.TopicCryptoIntraday},
	{"KXETH15", model.TopicCryptoIntraday},
	// Rates and macro series.
	{"KXFED", model.TopicRates},
	{"KXECB", model.TopicRates},
	{"KXCPI", model.TopicMacro},
	{"KXGDP", model.TopicMacro},
	{"KXPAYROLL", model.TopicMacro},
	{"KXU3", model.TopicMacro},
	// Sports series.
	{"KXNBA", model.TopicSports},
	{"KXNFL", model.TopicSports},
	{"KXMLB", model.TopicSports},
	{"KXNHL", model.TopicSports},
	{"KXUCL", model.TopicSports},
	{"KXEPL", model.TopicSports},
}

// categoryMap resolves normalized venue categories directly. Keys are
// lowercased with hyphens folded to spaces, so "us-current-affairs" and
// "US Current Affairs" land on the same row.
var categoryMap = map[string]model.Topic{
	"crypto":              model.TopicCryptoDaily,
	"cryptocurrency":      model.TopicCryptoDaily,
	"economics":           model.TopicMacro,
	"economy":             model.TopicMacro,
	"inflation":           model.TopicMacro,
	"politics":            model.TopicElections,
	"us current affairs":  model.TopicElections,
	"elections":           model.TopicElections,
	"world":               model.TopicGeopolitics,
	"geopolitics":         model.TopicGeopolitics,
	"sports":              model.TopicSports,
	"entertainment":       model.TopicEntertainment,
	"pop culture":         model.TopicEntertainment,
	"climate and weather": model.TopicClimate,
	"weather":             model.TopicClimate,
	"climate":             model.TopicClimate,
	"commodities":         model.TopicCommodities,
	"financials":          model.TopicFinance,
	"finance":             model.TopicFinance,
	"business":            model.TopicFinance,
}

// commodityTags flips a Financials categorization to COMMODITIES when the
// series is tagged with a physical-asset theme.
var commodityTags = map[string]struct{}{
	"oil": {}, "crude oil": {}, "wti": {}, "brent": {},
	"gold": {}, "silver": {}, "natural gas": {}, "gasoline": {}, "copper": {},
}

// keywordRule is one title rule. Confidence sits in [0.70, 0.95]; regexes
// carry word boundaries so "eth" never fires inside "hegseth".
type keywordRule struct {
	name       string
	re         *regexp.Regexp
	topic      model.Topic
	confidence float64
}

var keywordRules = []keywordRule{
	{"crypto_asset", regexp.MustCompile(`(?i)\b(bitcoin|ethereum|solana|dogecoin)\b|(^|[^a-z0-9])\$?(btc|eth|sol|xrp|doge)([^a-z0-9]|$)`), model.TopicCryptoDaily, 0.90},
	{"rates_action", regexp.MustCompile(`(?i)\b(fed|fomc|ecb|boe|boj)\b.*\b(rates?|hikes?|cuts?|bps|basis points)\b`), model.TopicRates, 0.90},
	{"rates_target", regexp.MustCompile(`(?i)\b(interest rate|fed funds|federal funds)\b`), model.TopicRates, 0.85},
	{"macro_series", regexp.MustCompile(`(?i)\b(cpi|inflation|gdp|nonfarm|non-farm|payrolls|unemployment|pce|jobless claims|retail sales)\b`), model.TopicMacro, 0.88},
	{"election", regexp.MustCompile(`(?i)\b(election|presidential|senate|governor|prime minister|mayoral|ballot|primary|nominee)\b`), model.TopicElections, 0.85},
	{"geopolitics", regexp.MustCompile(`(?i)\b(ceasefire|invasion|sanctions|nato|treaty|military strike|annex)\b`), model.TopicGeopolitics, 0.80},
	{"awards", regexp.MustCompile(`(?i)\b(oscars?|academy award|grammys?|emmys?|golden globes?|tonys?|baftas?|box office)\b`), model.TopicEntertainment, 0.85},
	{"climate", regexp.MustCompile(`(?i)\b(hurricane|temperature|snowfall|rainfall|drought|wildfire|earthquake|heat wave)\b`), model.TopicClimate, 0.82},
	{"commodities", regexp.MustCompile(`(?i)\b(oil|wti|brent|gold|silver|natural gas|copper)\b.*\b(price|above|below|settle)\b`), model.TopicCommodities, 0.80},
	{"equities", regexp.MustCompile(`(?i)\b(s&p ?500|spx|nasdaq|dow jones|stock)\b`), model.TopicFinance, 0.80},
	{"sports_matchup", regexp.MustCompile(`(?i)\b(nba|nfl|mlb|nhl|premier league|champions league|super bowl|world series)\b|\bvs\.?\b.*\b(wins?|winner|beats?)\b`), model.TopicSports, 0.78},
}

// Input is everything the classifier may consult for one market. Event and
// Series are optional exchange-side enrichments.
type Input struct {
	Market *model.Market
	Event  *model.KalshiEvent
	Series *model.KalshiSeries
}

// Classify assigns a canonical topic. It never errors: uncertainty is the
// UNKNOWN topic at confidence 0 with source fallback.
func Classify(in Input) Classification {
	m := in.Market

	// 1. Exchange series-ticker prefixes are the strongest signal.
	if m.Venue == model.VenueKalshi {
		ticker := seriesTickerOf(m)
		if ticker != "" {
			upper := strings.ToUpper(ticker)
			for _, sp := range seriesPrefixes {
				if strings.HasPrefix(upper, sp.prefix) {
					return Classification{
						Topic:      sp.topic,
						Confidence: 0.97,
						Source:     model.SourceTickerPattern,
						Reason:     "series prefix " + sp.prefix,
					}
				}
			}
		}
	}

	// 2. Direct category map.
	if cat := normalizeCategory(categoryOf(in)); cat != "" {
		if topic, ok := categoryMap[cat]; ok {
			// Financials series tagged with a physical asset are commodities.
			if topic == model.TopicFinance && hasCommodityTag(in) {
				return Classification{
					Topic:      model.TopicCommodities,
					Confidence: 0.90,
					Source:     model.SourceSeriesMetadata,
					Reason:     "financials category with commodity tag",
				}
			}
			src := model.SourceCategory
			if m.Category == "" {
				src = model.SourceEventMetadata
			}
			return Classification{
				Topic:      topic,
				Confidence: 0.92,
				Source:     src,
				Reason:     "category " + cat,
			}
		}
	}

	// 3. Series tags on their own.
	if in.Series != nil && hasCommodityTag(in) {
		return Classification{
			Topic:      model.TopicCommodities,
			Confidence: 0.88,
			Source:     model.SourceSeriesMetadata,
			Reason:     "commodity series tag",
		}
	}

	// 4. Title keyword rules, first match wins.
	for _, rule := range keywordRules {
		if rule.re.MatchString(m.Title) {
			return Classification{
				Topic:      rule.topic,
				Confidence: rule.confidence,
				Source:     model.SourceTitleKeywords,
				Reason:     "title rule " + rule.name,
			}
		}
	}

	// 5. Nothing sufficient.
	return Classification{
		Topic:      model.TopicUnknown,
		Confidence: 0,
		Source:     model.SourceFallback,
		Reason:     "no signal",
	}
}

func seriesTickerOf(m *model.Market) string {
	if m.SeriesTicker != "" {
		return m.SeriesTicker
	}
	return m.Meta("seriesTicker", "series_ticker")
}

func categoryOf(in Input) string {
	if in.Market.Category != "" {
		return in.Market.Category
	}
	if in.Event != nil && in.Event.Category != "" {
		return in.Event.Category
	}
	if in.Series != nil && in.Series.Category != "" {
		return in.Series.Category
	}
	return in.Market.Meta("category")
}

func normalizeCategory(cat string) string {
	cat = strings.ToLower(strings.TrimSpace(cat))
	cat = strings.ReplaceAll(cat, "-", " ")
	return strings.Join(strings.Fields(cat), " ")
}

func hasCommodityTag(in Input) bool {
	if in.Series == nil {
		return false
	}
	for _, tag := range in.Series.Tags {
		if _, ok := commodityTags[strings.ToLower(tag)]; ok {
			return true
		}
	}
	return false
}
