package text

import (
	"regexp"
	"strings"
	"sync"
)

// Short tickers are a matching hazard: "eth" lives inside "hegseth", "sol"
// inside "solution". They may only match on word boundaries with an optional
// leading $. Full asset names match by plain substring.

var (
	tickerRegexMu    sync.RWMutex
	tickerRegexCache = make(map[string]*regexp.Regexp)
)

// TickerPattern returns the boundary-anchored regex source for a short
// ticker: (^|[^a-z0-9])\$?<ticker>([^a-z0-9]|$). The repository layer embeds
// this same source into its SQL keyword queries.
func TickerPattern(ticker string) string {
	return `(^|[^a-z0-9])\$?` + regexp.QuoteMeta(strings.ToLower(ticker)) + `([^a-z0-9]|$)`
}

func tickerRegex(ticker string) *regexp.Regexp {
	key := strings.ToLower(ticker)
	tickerRegexMu.RLock()
	re, ok := tickerRegexCache[key]
	tickerRegexMu.RUnlock()
	if ok {
		return re
	}
	re = regexp.MustCompile(TickerPattern(key))
	tickerRegexMu.Lock()
	tickerRegexCache[key] = re
	tickerRegexMu.Unlock()
	return re
}

// MatchesTicker reports whether a title mentions a short ticker on a word
// boundary ("$ETH", "buy eth", "ETH!"), never inside another word.
func MatchesTicker(title, ticker string) bool {
	return tickerRegex(ticker).MatchString(strings.ToLower(title))
}

// MatchesName reports whether a title contains a full asset name; substring
// match is safe because names are long enough not to collide.
func MatchesName(title, name string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(name))
}
