// Package pipeline holds the per-topic matching pipelines and the registry
// that dispatches on canonical topic. A pipeline is a capability bundle:
// fetch, index, gate, score, dedup and the optional auto-confirm/reject
// hooks. Pipelines are stateless; all per-run data flows through arguments.
package pipeline

import (
	"context"
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// View is one market plus the exchange event it hangs off, when known.
// Only the sports pipeline populates Event.
type View struct {
	Market *model.Market
	Event  *model.KalshiEvent
}

// Index is the candidate index: key -> markets sharing that key.
type Index map[string][]View

// Add appends a market under a key, skipping empty keys.
func (idx Index) Add(key string, v View) {
	if key == "" {
		return
	}
	idx[key] = append(idx[key], v)
}

// Tier is the qualitative label attached to a score.
type Tier string

const (
	TierStrong Tier = "STRONG"
	TierWeak   Tier = "WEAK"
)

// ScoreResult is the outcome of scoring one candidate pair.
type ScoreResult struct {
	Score      float64            `json:"score"`
	Tier       Tier               `json:"tier"`
	Reason     string             `json:"reason"`
	Components map[string]float64 `json:"components,omitempty"`
}

// GateResult reports a hard-gate decision. A failed gate drops the pair
// before scoring; FailReason is only for diagnostics, never persisted.
type GateResult struct {
	Passed     bool
	FailReason string
}

// Candidate is one surviving (left, right) pair with its score.
type Candidate struct {
	Left   View
	Right  View
	Result ScoreResult
}

// DedupLimits caps how many candidates survive dedup.
type DedupLimits struct {
	MaxPerLeft  int
	MaxPerRight int
	// Bracket caps (crypto): distinct comparator groups per left market and
	// lines kept per group.
	MaxGroupsPerLeft int
	MaxPerGroup      int
}

// DefaultDedupLimits mirrors the production caps.
var DefaultDedupLimits = DedupLimits{
	MaxPerLeft:       3,
	MaxPerRight:      3,
	MaxGroupsPerLeft: 3,
	MaxPerGroup:      1,
}

// ConfirmDecision is the safe-confirm hook verdict.
type ConfirmDecision struct {
	Confirm    bool
	Rule       string
	Confidence float64
}

// RejectDecision is the auto-reject hook verdict.
type RejectDecision struct {
	Reject bool
	Rule   string
	Reason string
}

// FetchOptions selects one side's market set for a run.
type FetchOptions struct {
	Venue         model.Venue
	LookbackHours int
	Limit         int
	Now           time.Time
}

// Pipeline is the per-topic capability bundle. Implementations are
// registered once at startup and never mutated afterwards.
type Pipeline interface {
	Topic() model.Topic
	AlgoVersion() string
	SupportsAutoConfirm() bool
	SupportsAutoReject() bool
	// MinScore is the topic's suggestion floor; the orchestrator drops
	// anything below it.
	MinScore() float64

	FetchMarkets(ctx context.Context, repo persistence.Repository, opts FetchOptions) ([]View, error)
	BuildIndex(markets []View) Index
	FindCandidates(m View, idx Index) []View
	CheckHardGates(left, right View) GateResult
	// Score returns nil when the pair cannot be scored (missing signals on
	// one side); that is a silent drop, not an error.
	Score(left, right View) *ScoreResult
	ApplyDedup(cands []Candidate, limits DedupLimits) []Candidate

	ShouldAutoConfirm(left, right View, s *ScoreResult) ConfirmDecision
	ShouldAutoReject(left, right View, s *ScoreResult) RejectDecision
}
