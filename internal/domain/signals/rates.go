package signals

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// CentralBank identifies the rate-setting institution.
type CentralBank string

const (
	BankFed     CentralBank = "FED"
	BankECB     CentralBank = "ECB"
	BankBOE     CentralBank = "BOE"
	BankBOJ     CentralBank = "BOJ"
	BankSNB     CentralBank = "SNB"
	BankRBA     CentralBank = "RBA"
	BankUnknown CentralBank = ""
)

// RateAction is the direction of a rate decision.
type RateAction string

const (
	ActionHike    RateAction = "HIKE"
	ActionCut     RateAction = "CUT"
	ActionHold    RateAction = "HOLD"
	ActionUnknown RateAction = ""
)

// RatesSignals is the typed bundle for RATES markets.
type RatesSignals struct {
	Bank        CentralBank  `json:"bank,omitempty"`
	Action      RateAction   `json:"action,omitempty"`
	Bps         int          `json:"bps,omitempty"`
	Meeting     text.DateRef `json:"meeting,omitempty"`
	HasMeeting  bool         `json:"has_meeting"`
	TargetLow   float64      `json:"target_low,omitempty"`
	TargetHigh  float64      `json:"target_high,omitempty"`
	ActionCount int          `json:"action_count,omitempty"` // "at least 3 cuts in 2026"
	Meta
}

var bankPatterns = []struct {
	bank CentralBank
	re   *regexp.Regexp
}{
	{BankFed, regexp.MustCompile(`(?i)\b(fed|fomc|federal reserve|powell)\b`)},
	{BankECB, regexp.MustCompile(`(?i)\b(ecb|european central bank|lagarde)\b`)},
	{BankBOE, regexp.MustCompile(`(?i)\b(boe|bank of england)\b`)},
	{BankBOJ, regexp.MustCompile(`(?i)\b(boj|bank of japan)\b`)},
	{BankSNB, regexp.MustCompile(`(?i)\b(snb|swiss national bank)\b`)},
	{BankRBA, regexp.MustCompile(`(?i)\b(rba|reserve bank of australia)\b`)},
}

var (
	reHike        = regexp.MustCompile(`(?i)\b(hikes?|raises?|increases?)\b`)
	reCut         = regexp.MustCompile(`(?i)\b(cuts?|lowers?|reduces?)\b`)
	reHold        = regexp.MustCompile(`(?i)\b(holds?|unchanged|pauses?|no change)\b`)
	reBps         = regexp.MustCompile(`(?i)\b(\d{1,3})\s?(?:bps|basis points?)\b`)
	reTargetBand  = regexp.MustCompile(`(?i)\b(\d(?:\.\d{1,2})?)\s?(?:%|percent)?\s?(?:-|to|–)\s?(\d(?:\.\d{1,2})?)\s?%`)
	reActionCount = regexp.MustCompile(`(?i)\b(\d|one|two|three|four|five)\s+(?:or more\s+)?(?:rate\s+)?(?:cuts?|hikes?)\b`)
)

var wordCounts = map[string]int{"one": 1, "two": 2, "three": 3, "four": 4, "five": 5}

// ExtractRates builds the rates bundle from a title.
func ExtractRates(m *model.Market) RatesSignals {
	title := m.Title
	sig := RatesSignals{}

	for _, bp := range bankPatterns {
		if bp.re.MatchString(title) {
			sig.Bank = bp.bank
			break
		}
	}
	switch {
	case reHike.MatchString(title):
		sig.Action = ActionHike
	case reCut.MatchString(title):
		sig.Action = ActionCut
	case reHold.MatchString(title):
		sig.Action = ActionHold
	}
	if mm := reBps.FindStringSubmatch(title); mm != nil {
		sig.Bps, _ = strconv.Atoi(mm[1])
	}
	if mm := reTargetBand.FindStringSubmatch(title); mm != nil {
		sig.TargetLow, _ = strconv.ParseFloat(mm[1], 64)
		sig.TargetHigh, _ = strconv.ParseFloat(mm[2], 64)
	}
	if mm := reActionCount.FindStringSubmatch(title); mm != nil {
		if n, ok := wordCounts[strings.ToLower(mm[1])]; ok {
			sig.ActionCount = n
		} else {
			sig.ActionCount, _ = strconv.Atoi(mm[1])
		}
	}
	if best, ok := text.BestDate(text.ExtractDates(title)); ok {
		sig.Meeting = best
		sig.HasMeeting = true
	}

	c := 0.0
	if sig.Bank != BankUnknown {
		c += 0.5
	}
	if sig.Action != ActionUnknown {
		c += 0.3
	}
	if sig.HasMeeting {
		c += 0.2
	}
	sig.Meta = metaFor(title, c, "")
	return sig
}
