package pipeline

import (
	"strings"

	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// bracketKey groups crypto candidates that differ only by strike: same
// entity, same settle date, same normalized comparator. One venue often
// lists a ladder of thresholds against a single market on the other side;
// without grouping every rung becomes a suggestion.
func bracketKey(v View) string {
	sig := signals.ExtractCrypto(v.Market)
	return strings.Join([]string{
		string(sig.Entity), sig.SettleDate, normalizeComparator(sig.Comparator),
	}, "|")
}

func normalizeComparator(c text.Comparator) string {
	switch c {
	case text.CompGE:
		return "GE"
	case text.CompLE:
		return "LE"
	case text.CompBetween:
		return "RANGE"
	default:
		return "EQ"
	}
}

// bracketDedup keeps one representative per bracket group and caps the
// number of groups per left market, then applies the plain per-side caps.
// Input order does not matter; output is the stable persistence order.
func bracketDedup(cands []Candidate, limits DedupLimits) []Candidate {
	sortCandidates(cands)

	maxGroups := limits.MaxGroupsPerLeft
	if maxGroups <= 0 {
		maxGroups = DefaultDedupLimits.MaxGroupsPerLeft
	}
	perGroup := limits.MaxPerGroup
	if perGroup <= 0 {
		perGroup = DefaultDedupLimits.MaxPerGroup
	}

	groupCounts := map[int64]map[string]int{} // leftID -> group -> kept
	kept := cands[:0:0]
	for _, c := range cands {
		leftID := c.Left.Market.ID
		groups := groupCounts[leftID]
		if groups == nil {
			groups = map[string]int{}
			groupCounts[leftID] = groups
		}
		key := bracketKey(c.Right)
		if groups[key] == 0 && len(groups) >= maxGroups {
			continue
		}
		if groups[key] >= perGroup {
			continue
		}
		groups[key]++
		kept = append(kept, c)
	}
	return capCandidates(kept, limits)
}
