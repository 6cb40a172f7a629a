package rules

import (
	"math"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// linkView is one link with both market rows loaded.
type linkView struct {
	Link  *model.MarketLink
	Left  *model.Market
	Right *model.Market
}

// confirmPack is a topic's safe-confirm rule set. Evaluate returns the
// rule name to stamp on success, or the first failing check.
type confirmPack struct {
	Version  string
	Evaluate func(lv linkView) (rule, fail string)
}

// confirmPackFor returns the safe-confirm pack for a topic. Only topics
// with a vetted pack confirm automatically; everything else waits for a
// human.
func confirmPackFor(topic model.Topic) (confirmPack, bool) {
	switch topic {
	case model.TopicCryptoDaily:
		return confirmPack{Version: "v2.6.8", Evaluate: evalCryptoDailyConfirm}, true
	case model.TopicMacro:
		return confirmPack{Version: "v2.1.4", Evaluate: evalMacroConfirm}, true
	case model.TopicElections:
		return confirmPack{Version: "v3.0.15", Evaluate: evalElectionsConfirm}, true
	}
	return confirmPack{}, false
}

// cryptoConfirmDateTypes are the date types the daily pack trusts.
var cryptoConfirmDateTypes = map[string]bool{
	"DAY_EXACT":        true,
	"DAILY_THRESHOLD":  true,
	"DAILY_RANGE":      true,
	"YEARLY_THRESHOLD": true,
	"MONTH_END":        true,
	"QUARTER":          true,
	"QUARTER_END":      true,
	"CLOSE_TIME":       true,
}

func evalCryptoDailyConfirm(lv linkView) (string, string) {
	r, err := ParseCryptoDailyReason(lv.Link.Reason)
	if err != nil {
		return "", "reason_unparsed"
	}
	if lv.Link.Score < 0.88 {
		return "", "score_floor"
	}
	if r.Entity == "" || r.Entity == "UNKNOWN" {
		return "", "entity_missing"
	}
	if !cryptoConfirmDateTypes[r.DateType] {
		return "", "date_type"
	}
	if r.DayDiff != 0 {
		return "", "day_drift"
	}
	// The reason cannot carry comparators or raw strikes; re-parse titles.
	lc := text.ExtractComparator(lv.Left.Title)
	rc := text.ExtractComparator(lv.Right.Title)
	if !lc.Compatible(rc) {
		return "", "comparator_contradiction"
	}
	if !cryptoPricesWithinTolerance(lv.Left, lv.Right) {
		return "", "number_gap"
	}
	if r.TextScore < 0.12 {
		return "", "text_floor"
	}
	if r.DateScore < 0.90 {
		return "", "date_subscore"
	}
	return "exact_date_number_tolerance", ""
}

// cryptoPricesWithinTolerance re-derives both price ranges from the titles
// and accepts an absolute gap <= 1 or a relative gap <= 0.1%.
func cryptoPricesWithinTolerance(left, right *model.Market) bool {
	minL, maxL, okL := signals.ExtractCrypto(left).PriceRange()
	minR, maxR, okR := signals.ExtractCrypto(right).PriceRange()
	if !okL || !okR {
		return false
	}
	var gap float64
	switch {
	case maxL >= minR && maxR >= minL:
		gap = 0
	case maxL < minR:
		gap = minR - maxL
	default:
		gap = minL - maxR
	}
	if gap <= 1 {
		return true
	}
	scale := math.Max(maxL, maxR)
	return scale > 0 && gap/scale <= 0.001
}

// macroConfirmKinds are the period alignments that pin the same release.
// month_in_year does not: twelve releases share the year.
var macroConfirmKinds = map[string]bool{
	"exact":            true,
	"month_in_quarter": true,
	"quarter_in_year":  true,
}

func evalMacroConfirm(lv linkView) (string, string) {
	r, err := ParseMacroReason(lv.Link.Reason)
	if err != nil {
		return "", "reason_unparsed"
	}
	if r.Tier != "STRONG" {
		return "", "tier"
	}
	if r.MeScore < 0.50 {
		return "", "entity_subscore"
	}
	if !macroConfirmKinds[r.PeriodKind] {
		return "", "period_kind"
	}
	if r.PerScore < 0.22 {
		return "", "period_subscore"
	}
	if r.TextScore < 0.10 {
		return "", "text_floor"
	}
	return "strong_period_" + r.PeriodKind, ""
}

func evalElectionsConfirm(lv linkView) (string, string) {
	r, err := ParseElectionsReason(lv.Link.Reason)
	if err != nil {
		return "", "reason_unparsed"
	}
	if lv.Link.Score < 0.95 {
		return "", "score_floor"
	}
	if r.CountryScore < 1 || r.OfficeScore < 1 || r.YearScore < 1 {
		return "", "race_component"
	}
	l := signals.ExtractElections(lv.Left)
	rr := signals.ExtractElections(lv.Right)
	if len(l.Candidates) > 0 && len(rr.Candidates) > 0 && candidateOverlap(l.Candidates, rr.Candidates) < 1 {
		return "", "candidate_disjoint"
	}
	return "exact_race_candidate_overlap", ""
}

func candidateOverlap(l, r []string) int {
	set := make(map[string]struct{}, len(l))
	for _, s := range l {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range r {
		if _, ok := set[s]; ok {
			n++
		}
	}
	return n
}
