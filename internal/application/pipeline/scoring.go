package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/predmatch/predmatch/internal/domain/text"
)

// component is one weighted sub-score.
type component struct {
	name   string
	weight float64
	score  float64
}

// weightedScore folds components into the final [0,1] score plus the
// breakdown map. Weights are expected to sum to 1; the clamp catches
// overlap bonuses pushing past the ceiling.
func weightedScore(comps []component, bonus float64) (float64, map[string]float64) {
	sum := 0.0
	breakdown := make(map[string]float64, len(comps))
	for _, c := range comps {
		sum += c.score * c.weight
		breakdown[c.name] = c.score
	}
	return clamp01(sum + bonus), breakdown
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// textScore is the Jaccard similarity over title token sets, shared by
// every pipeline as its weakest component.
func textScore(leftTitle, rightTitle string) float64 {
	return text.TitleSimilarity(leftTitle, rightTitle)
}

// eqScore collapses an equality check into a {0,1} sub-score.
func eqScore(equal bool) float64 {
	if equal {
		return 1
	}
	return 0
}

// overlapBonus rewards shared rare tokens without letting the bonus move a
// weak pair over a floor. Capped at 0.05.
func overlapBonus(leftTitle, rightTitle string) float64 {
	j := text.TitleSimilarity(leftTitle, rightTitle)
	if j >= 0.5 {
		return 0.05
	}
	if j >= 0.3 {
		return 0.02
	}
	return 0
}

// f2 renders a sub-score the way the reason grammar wants it: 0.00-1.00.
func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// sortCandidates orders candidates score-descending with (leftID, rightID)
// tie-breaks, the stable order the upsert path relies on.
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Result.Score != cands[j].Result.Score {
			return cands[i].Result.Score > cands[j].Result.Score
		}
		li, lj := cands[i].Left.Market.ID, cands[j].Left.Market.ID
		if li != lj {
			return li < lj
		}
		return cands[i].Right.Market.ID < cands[j].Right.Market.ID
	})
}

// capCandidates enforces per-left and per-right caps over an already sorted
// slice. The iteration order is the persistence order, so the best pairs
// claim their slots first.
func capCandidates(cands []Candidate, limits DedupLimits) []Candidate {
	sortCandidates(cands)
	perLeft := map[int64]int{}
	perRight := map[int64]int{}
	out := cands[:0:0]
	for _, c := range cands {
		l, r := c.Left.Market.ID, c.Right.Market.ID
		if limits.MaxPerLeft > 0 && perLeft[l] >= limits.MaxPerLeft {
			continue
		}
		if limits.MaxPerRight > 0 && perRight[r] >= limits.MaxPerRight {
			continue
		}
		perLeft[l]++
		perRight[r]++
		out = append(out, c)
	}
	return out
}
