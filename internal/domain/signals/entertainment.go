package signals

import (
	"regexp"
	"sort"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// AwardShow identifies the award ceremony a market settles on.
type AwardShow string

const (
	AwardOscars       AwardShow = "OSCARS"
	AwardGrammys      AwardShow = "GRAMMYS"
	AwardEmmys        AwardShow = "EMMYS"
	AwardGoldenGlobes AwardShow = "GOLDEN_GLOBES"
	AwardTonys        AwardShow = "TONYS"
	AwardBaftas       AwardShow = "BAFTAS"
	AwardMTVA         AwardShow = "MTVA"
	AwardUnknown      AwardShow = "UNKNOWN"
)

// EntertainmentSignals is the typed bundle for ENTERTAINMENT markets.
type EntertainmentSignals struct {
	Award     AwardShow `json:"award"`
	MediaType string    `json:"media_type,omitempty"` // film, tv, music, stage
	Year      int       `json:"year,omitempty"`
	Category  string    `json:"category,omitempty"` // e.g. BEST_PICTURE
	Nominees  []string  `json:"nominees,omitempty"`
	Meta
}

var awardPatterns = []struct {
	award AwardShow
	media string
	re    *regexp.Regexp
}{
	{AwardOscars, "film", regexp.MustCompile(`(?i)\b(oscars?|academy awards?)\b`)},
	{AwardGrammys, "music", regexp.MustCompile(`(?i)\bgrammys?\b`)},
	{AwardEmmys, "tv", regexp.MustCompile(`(?i)\bemmys?\b`)},
	{AwardGoldenGlobes, "film", regexp.MustCompile(`(?i)\bgolden globes?\b`)},
	{AwardTonys, "stage", regexp.MustCompile(`(?i)\btonys?\b|\btony awards?\b`)},
	{AwardBaftas, "film", regexp.MustCompile(`(?i)\bbaftas?\b`)},
	{AwardMTVA, "music", regexp.MustCompile(`(?i)\bmtv (?:video music )?awards?\b|\bvmas?\b`)},
}

// Category phrases fold to stable keys: "Best Picture" -> BEST_PICTURE.
var reAwardCategory = regexp.MustCompile(`(?i)\bbest\s+((?:supporting\s+|original\s+|animated\s+|adapted\s+)?[a-z]+(?:\s+[a-z]+)?)\b`)

var categoryStopWords = map[string]struct{}{
	"of": {}, "the": {}, "at": {}, "in": {}, "for": {}, "to": {}, "odds": {}, "winner": {},
}

// ExtractEntertainment builds the awards bundle. Nominees are the quoted or
// trailing proper phrases; title casing at the venue is unreliable so we keep
// lowercased normalized strings.
func ExtractEntertainment(m *model.Market) EntertainmentSignals {
	title := m.Title
	sig := EntertainmentSignals{Award: AwardUnknown}

	for _, ap := range awardPatterns {
		if ap.re.MatchString(title) {
			sig.Award = ap.award
			sig.MediaType = ap.media
			break
		}
	}
	if best, ok := text.BestDate(text.ExtractDates(title)); ok {
		sig.Year = best.Year
	}
	if mm := reAwardCategory.FindStringSubmatch(title); mm != nil {
		sig.Category = normalizeAwardCategory(mm[1])
	}
	sig.Nominees = extractQuoted(title)
	sort.Strings(sig.Nominees)

	c := 0.0
	if sig.Award != AwardUnknown {
		c += 0.5
	}
	if sig.Category != "" {
		c += 0.3
	}
	if sig.Year != 0 {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}

func normalizeAwardCategory(phrase string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(phrase)) {
		if _, stop := categoryStopWords[w]; stop {
			break
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return ""
	}
	return "BEST_" + strings.ToUpper(strings.Join(kept, "_"))
}

var reQuoted = regexp.MustCompile(`[“"']([^”"']{2,60})[”"']`)

func extractQuoted(title string) []string {
	var out []string
	for _, mm := range reQuoted.FindAllStringSubmatch(title, -1) {
		out = append(out, strings.ToLower(strings.TrimSpace(mm[1])))
	}
	return out
}
