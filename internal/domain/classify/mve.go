package classify

import (
	"regexp"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// MveSource records which signal marked a market as multi-variable.
type MveSource string

const (
	MveSourceEventTicker  MveSource = "event_ticker"
	MveSourceSeriesTicker MveSource = "series_ticker"
	MveSourceAPIField     MveSource = "api_field"
	MveSourceTitle        MveSource = "title_pattern"
	MveSourceUnknown      MveSource = "unknown"
)

// MveResult is the multi-variable verdict for one market.
type MveResult struct {
	IsMve  bool      `json:"is_mve"`
	Source MveSource `json:"source"`
}

const mvePrefix = "KXMV"

var (
	reParlayTitle = regexp.MustCompile(`(?i)\b(same game parlay|sgp|parlay)\b`)
	// "yes X, yes Y, yes Z" leg listings.
	reYesLegs = regexp.MustCompile(`(?i)\byes\s+[^,]+,\s*yes\s+[^,]+,\s*yes\b`)
)

// DetectMve decides whether a market is a multi-variable (same-game-parlay)
// market. MVE markets keep their topic — a KXMV sports parlay is still
// SPORTS — but are excluded from per-outcome sports matching.
func DetectMve(m *model.Market) MveResult {
	if et := eventTickerOf(m); et != "" && strings.HasPrefix(strings.ToUpper(et), mvePrefix) {
		return MveResult{IsMve: true, Source: MveSourceEventTicker}
	}
	if st := seriesTickerOf(m); st != "" && strings.HasPrefix(strings.ToUpper(st), mvePrefix) {
		return MveResult{IsMve: true, Source: MveSourceSeriesTicker}
	}
	if m.MetaBool("is_multivariate", "isMultivariate") {
		return MveResult{IsMve: true, Source: MveSourceAPIField}
	}
	if reParlayTitle.MatchString(m.Title) || reYesLegs.MatchString(m.Title) {
		return MveResult{IsMve: true, Source: MveSourceTitle}
	}
	return MveResult{IsMve: false, Source: MveSourceUnknown}
}

func eventTickerOf(m *model.Market) string {
	if m.EventTicker != "" {
		return m.EventTicker
	}
	return m.Meta("eventTicker", "event_ticker")
}
