package signals

import (
	"regexp"
	"sort"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// GeoEventType is the kind of geopolitical event a market asks about.
type GeoEventType string

const (
	GeoWar       GeoEventType = "WAR"
	GeoPeace     GeoEventType = "PEACE"
	GeoTerritory GeoEventType = "TERRITORY"
	GeoMilitary  GeoEventType = "MILITARY"
	GeoDiplomacy GeoEventType = "DIPLOMACY"
	GeoSanctions GeoEventType = "SANCTIONS"
	GeoUnknown   GeoEventType = ""
)

// GeoSignals is the typed bundle for GEOPOLITICS markets.
type GeoSignals struct {
	Regions   []string     `json:"regions,omitempty"`
	Countries []string     `json:"countries,omitempty"`
	EventType GeoEventType `json:"event_type,omitempty"`
	Actors    []string     `json:"actors,omitempty"`
	Year      int          `json:"year,omitempty"`
	Deadline  string       `json:"deadline,omitempty"` // settle key of the most precise date
	Meta
}

var geoRegions = map[string][]string{
	"MIDDLE_EAST":    {"middle east", "gaza", "israel", "iran", "lebanon", "syria", "yemen"},
	"EASTERN_EUROPE": {"ukraine", "russia", "crimea", "donbas", "belarus"},
	"EAST_ASIA":      {"taiwan", "china", "north korea", "south china sea"},
	"EUROPE":         {"nato", "european union", "eu "},
	"LATIN_AMERICA":  {"venezuela", "latin america"},
	"AFRICA":         {"sudan", "sahel", "africa"},
}

var geoCountries = []string{
	"russia", "ukraine", "israel", "iran", "china", "taiwan", "north korea",
	"south korea", "syria", "lebanon", "yemen", "venezuela", "india", "pakistan",
	"united states", "turkey", "saudi arabia", "egypt", "sudan", "poland",
}

var geoEventPatterns = []struct {
	typ GeoEventType
	re  *regexp.Regexp
}{
	{GeoPeace, regexp.MustCompile(`(?i)\b(ceasefire|peace deal|peace agreement|truce|armistice)\b`)},
	{GeoSanctions, regexp.MustCompile(`(?i)\b(sanctions?|embargo|tariffs? on)\b`)},
	{GeoTerritory, regexp.MustCompile(`(?i)\b(annex(?:es|ation)?|territor(?:y|ial)|occup(?:y|ies|ation)|capture[sd]?)\b`)},
	{GeoMilitary, regexp.MustCompile(`(?i)\b(military strike|airstrike|missile|troops|mobiliz|nuclear test)\b`)},
	{GeoWar, regexp.MustCompile(`(?i)\b(war|invasion|invade[sd]?|conflict)\b`)},
	{GeoDiplomacy, regexp.MustCompile(`(?i)\b(summit|treaty|negotiat|diplomatic|meets? with|talks)\b`)},
}

var geoActors = []string{
	"putin", "zelensky", "zelenskyy", "netanyahu", "xi jinping", "kim jong un",
	"khamenei", "erdogan", "modi", "nato", "un security council", "hamas", "hezbollah",
}

// ExtractGeo builds the geopolitics bundle.
func ExtractGeo(m *model.Market) GeoSignals {
	title := m.Title
	lower := strings.ToLower(title)
	sig := GeoSignals{}

	for region, markers := range geoRegions {
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				sig.Regions = append(sig.Regions, region)
				break
			}
		}
	}
	sort.Strings(sig.Regions)

	for _, c := range geoCountries {
		if strings.Contains(lower, c) {
			sig.Countries = append(sig.Countries, strings.ToUpper(strings.ReplaceAll(c, " ", "_")))
		}
	}

	for _, gp := range geoEventPatterns {
		if gp.re.MatchString(title) {
			sig.EventType = gp.typ
			break
		}
	}

	for _, a := range geoActors {
		if strings.Contains(lower, a) {
			sig.Actors = append(sig.Actors, strings.ToUpper(strings.ReplaceAll(a, " ", "_")))
		}
	}

	if best, ok := text.BestDate(text.ExtractDates(title)); ok {
		sig.Year = best.Year
		sig.Deadline = best.Key()
	}

	c := 0.0
	if len(sig.Regions) > 0 || len(sig.Countries) > 0 {
		c += 0.5
	}
	if sig.EventType != GeoUnknown {
		c += 0.3
	}
	if sig.Deadline != "" {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}
