package signals

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// Country is the country an election market settles on.
type Country string

const (
	CountryUS        Country = "US"
	CountryUK        Country = "UK"
	CountryFrance    Country = "FRANCE"
	CountryGermany   Country = "GERMANY"
	CountryCanada    Country = "CANADA"
	CountryAustralia Country = "AUSTRALIA"
	CountryBrazil    Country = "BRAZIL"
	CountryIndia     Country = "INDIA"
	CountryMalaysia  Country = "MALAYSIA"
	CountryLatvia    Country = "LATVIA"
	CountryPoland    Country = "POLAND"
	CountryJapan     Country = "JAPAN"
	CountryArgentina Country = "ARGENTINA"
	CountryUnknown   Country = "UNKNOWN"
)

// Office is the contested office.
type Office string

const (
	OfficePresident     Office = "PRESIDENT"
	OfficeSenate        Office = "SENATE"
	OfficeHouse         Office = "HOUSE"
	OfficeGovernor      Office = "GOVERNOR"
	OfficePrimeMinister Office = "PRIME_MINISTER"
	OfficeMayor         Office = "MAYOR"
	OfficePartyControl  Office = "PARTY_CONTROL"
	OfficeVicePresident Office = "VICE_PRESIDENT"
	OfficeUnknown       Office = "UNKNOWN"
)

// ElectionIntent is what the market actually asks about the race.
type ElectionIntent string

const (
	IntentWinner       ElectionIntent = "WINNER"
	IntentMargin       ElectionIntent = "MARGIN"
	IntentTurnout      ElectionIntent = "TURNOUT"
	IntentPartyControl ElectionIntent = "PARTY_CONTROL"
	IntentNominee      ElectionIntent = "NOMINEE"
)

// ElectionSignals is the typed bundle for ELECTIONS markets.
type ElectionSignals struct {
	Country    Country        `json:"country"`
	Office     Office         `json:"office"`
	Year       int            `json:"year,omitempty"`
	State      string         `json:"state,omitempty"` // two-letter US state
	Candidates []string       `json:"candidates,omitempty"`
	Intent     ElectionIntent `json:"intent"`
	Party      string         `json:"party,omitempty"`
	Meta
}

var countryPatterns = []struct {
	country Country
	re      *regexp.Regexp
}{
	// US last: its markers ("presidential", state names) are weaker than an
	// explicit foreign country mention.
	{CountryUK, regexp.MustCompile(`(?i)\b(uk|united kingdom|british|britain)\b`)},
	{CountryFrance, regexp.MustCompile(`(?i)\b(france|french)\b`)},
	{CountryGermany, regexp.MustCompile(`(?i)\b(germany|german|bundestag)\b`)},
	{CountryCanada, regexp.MustCompile(`(?i)\b(canada|canadian)\b`)},
	{CountryAustralia, regexp.MustCompile(`(?i)\b(australia|australian)\b`)},
	{CountryBrazil, regexp.MustCompile(`(?i)\b(brazil|brazilian)\b`)},
	{CountryIndia, regexp.MustCompile(`(?i)\b(india|indian|lok sabha)\b`)},
	{CountryMalaysia, regexp.MustCompile(`(?i)\bmalaysia(?:n)?\b`)},
	{CountryLatvia, regexp.MustCompile(`(?i)\blatvia(?:n)?\b`)},
	{CountryPoland, regexp.MustCompile(`(?i)\b(poland|polish|sejm)\b`)},
	{CountryJapan, regexp.MustCompile(`(?i)\b(japan|japanese)\b`)},
	{CountryArgentina, regexp.MustCompile(`(?i)\b(argentina|argentine)\b`)},
	{CountryUS, regexp.MustCompile(`(?i)\b(us|u\.s\.|usa|united states|america(?:n)?|presidential|congress|senate|white house|electoral college)\b`)},
}

var officePatterns = []struct {
	office Office
	re     *regexp.Regexp
}{
	{OfficeVicePresident, regexp.MustCompile(`(?i)\b(vice president|vice-president|vp)\b`)},
	{OfficePresident, regexp.MustCompile(`(?i)\b(president(?:ial|cy)?)\b`)},
	{OfficePartyControl, regexp.MustCompile(`(?i)\b(control(?:s)? (?:of )?(?:the )?(house|senate|congress)|balance of power|majority in)\b`)},
	{OfficeSenate, regexp.MustCompile(`(?i)\bsenate\b|\bsenator\b`)},
	{OfficeHouse, regexp.MustCompile(`(?i)\bhouse (?:of representatives|seat|race|district)\b|\bcongressional district\b`)},
	{OfficeGovernor, regexp.MustCompile(`(?i)\bgovernor(?:ship)?\b|\bgubernatorial\b`)},
	{OfficePrimeMinister, regexp.MustCompile(`(?i)\b(prime minister|pm of)\b`)},
	{OfficeMayor, regexp.MustCompile(`(?i)\bmayor(?:al)?\b`)},
}

var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

// candidateAliases folds nicknames and full names onto a canonical surname.
var candidateAliases = map[string]string{
	"donald trump": "trump", "djt": "trump", "trump": "trump",
	"kamala harris": "harris", "harris": "harris",
	"joe biden": "biden", "biden": "biden",
	"ron desantis": "desantis", "desantis": "desantis",
	"gavin newsom": "newsom", "newsom": "newsom",
	"jd vance": "vance", "j.d. vance": "vance", "vance": "vance",
	"keir starmer": "starmer", "starmer": "starmer",
	"rishi sunak": "sunak", "sunak": "sunak",
	"emmanuel macron": "macron", "macron": "macron",
	"marine le pen": "le pen", "le pen": "le pen",
	"aoc": "ocasio-cortez", "alexandria ocasio-cortez": "ocasio-cortez",
	"pete buttigieg": "buttigieg", "buttigieg": "buttigieg",
	"anwar ibrahim": "anwar", "anwar": "anwar",
}

var (
	reMargin      = regexp.MustCompile(`(?i)\b(margin|by more than|popular vote by)\b`)
	reTurnout     = regexp.MustCompile(`(?i)\bturnout\b`)
	reNominee     = regexp.MustCompile(`(?i)\b(nominee|nomination|primary winner)\b`)
	reParty       = regexp.MustCompile(`(?i)\b(democrat(?:s|ic)?|republican(?:s)?|labour|tory|tories|conservative(?:s)?|libertarian|green)\b`)
	rePartyControl = regexp.MustCompile(`(?i)\b(control|majority|balance of power|flip)\b`)
)

// ExtractElections builds the elections bundle. The race key is
// country|office|year[|state] and is what the candidate index hangs off.
func ExtractElections(m *model.Market) ElectionSignals {
	title := m.Title
	lower := strings.ToLower(title)

	sig := ElectionSignals{
		Country: CountryUnknown,
		Office:  OfficeUnknown,
		Intent:  IntentWinner,
	}
	for _, cp := range countryPatterns {
		if cp.re.MatchString(title) {
			sig.Country = cp.country
			break
		}
	}
	for _, op := range officePatterns {
		if op.re.MatchString(title) {
			sig.Office = op.office
			break
		}
	}
	for name, code := range usStates {
		if strings.Contains(lower, name) {
			sig.State = code
			if sig.Country == CountryUnknown {
				sig.Country = CountryUS
			}
			break
		}
	}
	for _, ref := range text.ExtractDates(title) {
		if ref.Year >= 2000 && ref.Year <= 2099 {
			sig.Year = ref.Year
			break
		}
	}

	seen := make(map[string]struct{})
	for alias, canon := range candidateAliases {
		if containsWord(lower, alias) {
			if _, dup := seen[canon]; !dup {
				seen[canon] = struct{}{}
				sig.Candidates = append(sig.Candidates, canon)
			}
		}
	}
	sort.Strings(sig.Candidates)

	switch {
	case reTurnout.MatchString(title):
		sig.Intent = IntentTurnout
	case reMargin.MatchString(title):
		sig.Intent = IntentMargin
	case reNominee.MatchString(title):
		sig.Intent = IntentNominee
	case sig.Office == OfficePartyControl || (reParty.MatchString(title) && rePartyControl.MatchString(title)):
		sig.Intent = IntentPartyControl
		if sig.Office == OfficeUnknown {
			sig.Office = OfficePartyControl
		}
	}
	if pm := reParty.FindString(title); pm != "" {
		sig.Party = normalizeParty(pm)
	}

	c := 0.0
	if sig.Country != CountryUnknown {
		c += 0.35
	}
	if sig.Office != OfficeUnknown {
		c += 0.30
	}
	if sig.Year != 0 {
		c += 0.20
	}
	if len(sig.Candidates) > 0 {
		c += 0.15
	}
	sig.Meta = metaFor(title, c, sig.RaceKeyString())
	return sig
}

// RaceKeyString joins country, office, year and state into the index key.
func (s ElectionSignals) RaceKeyString() string {
	parts := []string{string(s.Country), string(s.Office)}
	if s.Year != 0 {
		parts = append(parts, strconv.Itoa(s.Year))
	}
	if s.State != "" {
		parts = append(parts, s.State)
	}
	return strings.Join(parts, "|")
}

// OfficesCompatible reports whether two offices can describe the same
// question. HOUSE and SENATE chamber races trade as PARTY_CONTROL on one
// venue and as the chamber on the other.
func OfficesCompatible(a, b Office) bool {
	if a == b {
		return true
	}
	pair := func(x, y Office) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(OfficeHouse, OfficePartyControl) || pair(OfficeSenate, OfficePartyControl)
}

func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(haystack[i-1])
		after := i+len(needle) >= len(haystack) || !isAlnum(haystack[i+len(needle)])
		if before && after {
			return true
		}
		idx = i + len(needle)
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func normalizeParty(p string) string {
	p = strings.ToLower(p)
	switch {
	case strings.HasPrefix(p, "democrat"):
		return "DEMOCRAT"
	case strings.HasPrefix(p, "republican"):
		return "REPUBLICAN"
	case strings.HasPrefix(p, "labour"):
		return "LABOUR"
	case strings.HasPrefix(p, "tor"), strings.HasPrefix(p, "conservative"):
		return "CONSERVATIVE"
	default:
		return strings.ToUpper(p)
	}
}

