package signals

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// SportsMarketType is the bet shape of a sports market.
type SportsMarketType string

const (
	SportsMoneyline SportsMarketType = "moneyline"
	SportsSpread    SportsMarketType = "spread"
	SportsTotal     SportsMarketType = "total"
	SportsProp      SportsMarketType = "prop"
)

// TeamsSource records where the team pair came from.
type TeamsSource string

const (
	TeamsFromTitle TeamsSource = "title"
	TeamsFromEvent TeamsSource = "event"
)

// StartSource records where the start time came from.
type StartSource string

const (
	StartFromTitle     StartSource = "title"
	StartFromEvent     StartSource = "event"
	StartFromCloseTime StartSource = "closeTime"
)

// SportsSignals is the typed bundle for SPORTS markets. Team names are
// normalized to franchise keys; the start bucket is the event start rounded
// down to the hour, which absorbs venue disagreement about tip-off minutes.
type SportsSignals struct {
	League      string           `json:"league,omitempty"`
	TeamA       string           `json:"team_a,omitempty"` // normalized, sorted pair
	TeamB       string           `json:"team_b,omitempty"`
	TeamsSource TeamsSource      `json:"teams_source,omitempty"`
	StartBucket time.Time        `json:"start_bucket,omitempty"`
	StartSource StartSource      `json:"start_source,omitempty"`
	MarketType  SportsMarketType `json:"market_type"`
	LineValue   float64          `json:"line_value,omitempty"`
	HasLine     bool             `json:"has_line"`
	Meta
}

var leaguePatterns = []struct {
	league string
	re     *regexp.Regexp
}{
	{"NBA", regexp.MustCompile(`(?i)\bnba\b`)},
	{"NFL", regexp.MustCompile(`(?i)\bnfl\b|\bsuper bowl\b`)},
	{"MLB", regexp.MustCompile(`(?i)\bmlb\b|\bworld series\b`)},
	{"NHL", regexp.MustCompile(`(?i)\bnhl\b|\bstanley cup\b`)},
	{"EPL", regexp.MustCompile(`(?i)\bpremier league\b|\bepl\b`)},
	{"UCL", regexp.MustCompile(`(?i)\bchampions league\b|\bucl\b`)},
	{"NCAAB", regexp.MustCompile(`(?i)\bncaa\b.*\bbasketball\b|\bmarch madness\b`)},
}

// teamNorm maps market-title spellings to franchise keys. City names and
// nicknames fold to the same key so "LA Lakers" and "Lakers" pair up.
var teamNorm = map[string]string{
	// NBA
	"lakers": "LAL", "la lakers": "LAL", "los angeles lakers": "LAL",
	"celtics": "BOS", "boston celtics": "BOS",
	"knicks": "NYK", "new york knicks": "NYK",
	"warriors": "GSW", "golden state": "GSW", "golden state warriors": "GSW",
	"heat": "MIA", "miami heat": "MIA",
	"nuggets": "DEN", "denver nuggets": "DEN",
	"bucks": "MIL", "milwaukee bucks": "MIL",
	"suns": "PHX", "phoenix suns": "PHX",
	"76ers": "PHI", "sixers": "PHI", "philadelphia 76ers": "PHI",
	"mavericks": "DAL", "mavs": "DAL", "dallas mavericks": "DAL",
	"thunder": "OKC", "oklahoma city thunder": "OKC",
	"cavaliers": "CLE", "cavs": "CLE", "cleveland cavaliers": "CLE",
	// NFL
	"chiefs": "KC", "kansas city chiefs": "KC",
	"eagles": "PHI_NFL", "philadelphia eagles": "PHI_NFL",
	"bills": "BUF", "buffalo bills": "BUF",
	"49ers": "SF", "niners": "SF", "san francisco 49ers": "SF",
	"cowboys": "DAL_NFL", "dallas cowboys": "DAL_NFL",
	"ravens": "BAL", "baltimore ravens": "BAL",
	"lions": "DET", "detroit lions": "DET",
	"packers": "GB", "green bay packers": "GB",
	// MLB
	"yankees": "NYY", "new york yankees": "NYY",
	"dodgers": "LAD", "la dodgers": "LAD", "los angeles dodgers": "LAD",
	"red sox": "BOS_MLB", "boston red sox": "BOS_MLB",
	"cubs": "CHC", "chicago cubs": "CHC",
	"astros": "HOU", "houston astros": "HOU",
	"braves": "ATL", "atlanta braves": "ATL",
	// NHL
	"rangers": "NYR", "new york rangers": "NYR",
	"bruins": "BOS_NHL", "boston bruins": "BOS_NHL",
	"oilers": "EDM", "edmonton oilers": "EDM",
	"maple leafs": "TOR", "toronto maple leafs": "TOR",
	// Soccer
	"manchester city": "MCI", "man city": "MCI",
	"manchester united": "MUN", "man united": "MUN", "man utd": "MUN",
	"arsenal": "ARS", "liverpool": "LIV", "chelsea": "CHE",
	"real madrid": "RMA", "barcelona": "BAR", "bayern": "BAY", "bayern munich": "BAY",
}

var (
	reMatchup  = regexp.MustCompile(`(?i)(.+?)\s+(?:vs\.?|at|@|v)\s+(.+?)(?:[:?]|$)`)
	reSpread   = regexp.MustCompile(`(?i)\b(?:spread|covers?|by (?:more than )?(\d+(?:\.\d)?)\s?(?:points?|pts)?|[-+]\d+(?:\.5)?)\b`)
	reTotal    = regexp.MustCompile(`(?i)\b(?:total|over\/under|combined (?:points|score)|o\/u)\b`)
	reProp     = regexp.MustCompile(`(?i)\b(?:to score|touchdowns?|assists?|rebounds?|passing yards|first basket|hat trick)\b`)
	reLineNum  = regexp.MustCompile(`([-+]?\d+(?:\.\d)?)\s?(?:points?|pts|runs?|goals?)?\b`)
	reGameTime = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s?(am|pm)\s?(?:et|est|edt)?\b`)
)

// ExtractSports builds the sports bundle. The exchange event, when present,
// supplies authoritative teams (from the event title "A at B") and start
// time (strike date); the title is the fallback.
func ExtractSports(m *model.Market, event *model.KalshiEvent) SportsSignals {
	title := m.Title
	sig := SportsSignals{MarketType: SportsMoneyline}

	for _, lp := range leaguePatterns {
		if lp.re.MatchString(title) {
			sig.League = lp.league
			break
		}
	}
	if sig.League == "" && event != nil {
		for _, lp := range leaguePatterns {
			if lp.re.MatchString(event.Title) || lp.re.MatchString(event.SeriesTicker) {
				sig.League = lp.league
				break
			}
		}
	}

	// Teams: prefer the exchange event title, fall back to the market title.
	if event != nil {
		if a, b, ok := teamPair(event.Title); ok {
			sig.TeamA, sig.TeamB = a, b
			sig.TeamsSource = TeamsFromEvent
		}
	}
	if sig.TeamA == "" {
		if a, b, ok := teamPair(title); ok {
			sig.TeamA, sig.TeamB = a, b
			sig.TeamsSource = TeamsFromTitle
		}
	}

	// Start bucket: event strike date, then an explicit title time on the
	// title's date, then the close time.
	ts := titleStart(m)
	switch {
	case event != nil && event.StrikeDate != nil:
		sig.StartBucket = event.StrikeDate.UTC().Truncate(time.Hour)
		sig.StartSource = StartFromEvent
	case ts != nil:
		sig.StartBucket = ts.Truncate(time.Hour)
		sig.StartSource = StartFromTitle
	case m.CloseTime != nil:
		sig.StartBucket = m.CloseTime.UTC().Truncate(time.Hour)
		sig.StartSource = StartFromCloseTime
	}

	switch {
	case reProp.MatchString(title):
		sig.MarketType = SportsProp
	case reTotal.MatchString(title):
		sig.MarketType = SportsTotal
	case reSpread.MatchString(title):
		sig.MarketType = SportsSpread
	}
	if sig.MarketType == SportsSpread || sig.MarketType == SportsTotal {
		if mm := reLineNum.FindStringSubmatch(title); mm != nil {
			if v, err := strconv.ParseFloat(mm[1], 64); err == nil {
				sig.LineValue = v
				sig.HasLine = true
			}
		}
	}

	c := 0.0
	if sig.TeamA != "" {
		c += 0.5
	}
	if !sig.StartBucket.IsZero() {
		c += 0.3
	}
	if sig.League != "" {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}

// EventKey is the primary sports index key: league|teamA|teamB|startBucket.
func (s SportsSignals) EventKey() string {
	if s.TeamA == "" || s.StartBucket.IsZero() {
		return ""
	}
	return strings.Join([]string{
		s.League, s.TeamA, s.TeamB, s.StartBucket.Format(time.RFC3339),
	}, "|")
}

// teamPair finds a matchup "A vs B" and returns the normalized pair in
// lexical order so the key is direction-free.
func teamPair(title string) (string, string, bool) {
	mm := reMatchup.FindStringSubmatch(title)
	if mm == nil {
		return "", "", false
	}
	a := normalizeTeam(mm[1])
	b := normalizeTeam(mm[2])
	if a == "" || b == "" || a == b {
		return "", "", false
	}
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

func normalizeTeam(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if key, ok := teamNorm[lower]; ok {
		return key
	}
	// Longest alias contained in the fragment wins ("Los Angeles Lakers
	// moneyline" still resolves).
	best := ""
	bestLen := 0
	for alias, key := range teamNorm {
		if len(alias) > bestLen && containsWord(lower, alias) {
			best = key
			bestLen = len(alias)
		}
	}
	return best
}

func titleStart(m *model.Market) *time.Time {
	mm := reGameTime.FindStringSubmatch(m.Title)
	if mm == nil {
		return nil
	}
	best, ok := text.BestDate(text.ExtractDates(m.Title))
	if !ok || best.Precision != text.PrecisionDay {
		return nil
	}
	hour, _ := strconv.Atoi(mm[1])
	minute := 0
	if mm[2] != "" {
		minute, _ = strconv.Atoi(mm[2])
	}
	if strings.EqualFold(mm[3], "pm") && hour < 12 {
		hour += 12
	}
	if strings.EqualFold(mm[3], "am") && hour == 12 {
		hour = 0
	}
	t := time.Date(best.Year, time.Month(best.Month), best.Day, hour, minute, 0, 0, time.UTC)
	return &t
}
