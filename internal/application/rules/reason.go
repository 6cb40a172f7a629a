// Package rules re-evaluates existing links after the orchestrator has
// written them. Two packs run over still-suggested links: safe-confirm
// promotes, reject demotes. Both work from the structured reason the
// pipeline recorded, re-parsing titles only where the reason cannot carry
// the evidence (comparators, raw numbers).
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefixes stamped onto a link's reason once a pack has acted on it.
const (
	ConfirmPrefix = "auto_confirm@"
	RejectPrefix  = "auto_reject@"
)

// CryptoDailyReason is the parsed form of the daily crypto pipeline's
// reason string. Parse and String round-trip exactly.
type CryptoDailyReason struct {
	Entity     string
	DateType   string
	DateScore  float64
	DayDiff    int
	NumScore   float64
	NumContext string
	TextScore  float64
}

var reCryptoDaily = regexp.MustCompile(
	`^entity=(\S*) dateType=(\S+) date=([0-9.]+)\((-?\d+)d\) num=([0-9.]+)\[([^\]]*)\] text=([0-9.]+)$`)

func ParseCryptoDailyReason(s string) (CryptoDailyReason, error) {
	m := reCryptoDaily.FindStringSubmatch(s)
	if m == nil {
		return CryptoDailyReason{}, fmt.Errorf("not a crypto daily reason: %q", s)
	}
	diff, _ := strconv.Atoi(m[4])
	return CryptoDailyReason{
		Entity:     m[1],
		DateType:   m[2],
		DateScore:  mustF(m[3]),
		DayDiff:    diff,
		NumScore:   mustF(m[5]),
		NumContext: m[6],
		TextScore:  mustF(m[7]),
	}, nil
}

func (r CryptoDailyReason) String() string {
	return fmt.Sprintf("entity=%s dateType=%s date=%s(%dd) num=%s[%s] text=%s",
		r.Entity, r.DateType, f2(r.DateScore), r.DayDiff, f2(r.NumScore), r.NumContext, f2(r.TextScore))
}

// MacroReason is the parsed form of the macro pipeline's reason.
type MacroReason struct {
	Tier        string
	MeScore     float64
	PerScore    float64
	PeriodKind  string
	PeriodLeft  string
	PeriodRight string
	NumScore    float64
	TextScore   float64
}

var reMacro = regexp.MustCompile(
	`^MACRO: tier=(\S+) me=([0-9.]+) per=([0-9.]+)\[([a-z_]+)\]\(([^/)]*)/([^)]*)\) num=([0-9.]+) txt=([0-9.]+)$`)

func ParseMacroReason(s string) (MacroReason, error) {
	m := reMacro.FindStringSubmatch(s)
	if m == nil {
		return MacroReason{}, fmt.Errorf("not a macro reason: %q", s)
	}
	return MacroReason{
		Tier:        m[1],
		MeScore:     mustF(m[2]),
		PerScore:    mustF(m[3]),
		PeriodKind:  m[4],
		PeriodLeft:  m[5],
		PeriodRight: m[6],
		NumScore:    mustF(m[7]),
		TextScore:   mustF(m[8]),
	}, nil
}

func (r MacroReason) String() string {
	return fmt.Sprintf("MACRO: tier=%s me=%s per=%s[%s](%s/%s) num=%s txt=%s",
		r.Tier, f2(r.MeScore), f2(r.PerScore), r.PeriodKind, r.PeriodLeft, r.PeriodRight,
		f2(r.NumScore), f2(r.TextScore))
}

// ElectionsReason is the parsed form of the elections pipeline's reason.
type ElectionsReason struct {
	Tier         string
	RaceKey      string
	CountryScore float64
	OfficeScore  float64
	YearScore    float64
	CandScore    float64
	TextScore    float64
}

var reElections = regexp.MustCompile(
	`^ELECTIONS: tier=(\S+) race=(\S+) country=([0-9.]+) office=([0-9.]+) year=([0-9.]+) cand=([0-9.]+) text=([0-9.]+)$`)

func ParseElectionsReason(s string) (ElectionsReason, error) {
	m := reElections.FindStringSubmatch(s)
	if m == nil {
		return ElectionsReason{}, fmt.Errorf("not an elections reason: %q", s)
	}
	return ElectionsReason{
		Tier:         m[1],
		RaceKey:      m[2],
		CountryScore: mustF(m[3]),
		OfficeScore:  mustF(m[4]),
		YearScore:    mustF(m[5]),
		CandScore:    mustF(m[6]),
		TextScore:    mustF(m[7]),
	}, nil
}

func (r ElectionsReason) String() string {
	return fmt.Sprintf("ELECTIONS: tier=%s race=%s country=%s office=%s year=%s cand=%s text=%s",
		r.Tier, r.RaceKey, f2(r.CountryScore), f2(r.OfficeScore), f2(r.YearScore),
		f2(r.CandScore), f2(r.TextScore))
}

// GenericReason covers the colon-prefixed topics the packs only need tier
// and component values from. Pair order is preserved so String round-trips.
type GenericReason struct {
	Header string
	Pairs  []KV
}

// KV is one key=value token of a reason string.
type KV struct {
	Key   string
	Value string
}

func ParseGenericReason(s string) (GenericReason, error) {
	head, rest, ok := strings.Cut(s, ": ")
	if !ok {
		return GenericReason{}, fmt.Errorf("no reason header: %q", s)
	}
	out := GenericReason{Header: head}
	for _, tok := range strings.Fields(rest) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			return GenericReason{}, fmt.Errorf("malformed token %q in %q", tok, s)
		}
		out.Pairs = append(out.Pairs, KV{Key: k, Value: v})
	}
	return out, nil
}

func (r GenericReason) String() string {
	var b strings.Builder
	b.WriteString(r.Header)
	b.WriteString(":")
	for _, kv := range r.Pairs {
		b.WriteString(" ")
		b.WriteString(kv.Key)
		b.WriteString("=")
		b.WriteString(kv.Value)
	}
	return b.String()
}

// Get returns the first value for key, or "".
func (r GenericReason) Get(key string) string {
	for _, kv := range r.Pairs {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Float parses the value for key; malformed or missing values read as 0.
func (r GenericReason) Float(key string) float64 {
	v, _ := strconv.ParseFloat(r.Get(key), 64)
	return v
}

// ConfirmedReason builds the rewritten reason for a promoted link.
func ConfirmedReason(version, topic, rule string) string {
	return fmt.Sprintf("%s%s:%s:%s", ConfirmPrefix, version, topic, rule)
}

// RejectedReason builds the rewritten reason for a demoted link. Rule order
// follows evaluation order.
func RejectedReason(version string, fired []string) string {
	return fmt.Sprintf("%s%s:%s", RejectPrefix, version, strings.Join(fired, "+"))
}

// AlreadyProcessed reports whether a reason was rewritten by a pack.
func AlreadyProcessed(reason string) bool {
	return strings.HasPrefix(reason, ConfirmPrefix) || strings.HasPrefix(reason, RejectPrefix)
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func mustF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
