package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/predmatch/predmatch/internal/domain/model"
)

var now = time.Date(2026, 1, 21, 12, 0, 0, 0, time.UTC)

func activeAt(ct time.Time) *model.Market {
	return &model.Market{Status: model.StatusActive, CloseTime: &ct}
}

func TestEligibleGraceBoundary(t *testing.T) {
	opts := ForTopic(model.TopicCryptoDaily)
	eps := time.Second

	// closeTime = now - grace + eps: still inside the grace window.
	m := activeAt(now.Add(-opts.Grace + eps))
	assert.True(t, Eligible(m, now, opts))
	assert.Contains(t, Explain(m, now, opts), ReasonWithinGrace)

	// closeTime = now - grace - eps: stale.
	m = activeAt(now.Add(-opts.Grace - eps))
	assert.False(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonStaleActive}, Explain(m, now, opts))
}

func TestEligibleForwardWindow(t *testing.T) {
	opts := ForTopic(model.TopicCryptoDaily)

	m := activeAt(now.Add(48 * time.Hour))
	assert.True(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonEligible}, Explain(m, now, opts))

	// Beyond the 72h crypto_daily horizon.
	m = activeAt(now.Add(100 * time.Hour))
	assert.False(t, Eligible(m, now, opts))
}

func TestEligibleNoCloseTime(t *testing.T) {
	opts := ForTopic(model.TopicMacro)
	m := &model.Market{Status: model.StatusActive}
	assert.True(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonNoCloseTime}, Explain(m, now, opts))

	// A closed market without a close time cannot be placed in the lookback
	// window and never qualifies.
	m = &model.Market{Status: model.StatusClosed}
	assert.False(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonNoCloseTime}, Explain(m, now, opts))
}

func TestEligibleClosedLookback(t *testing.T) {
	opts := ForTopic(model.TopicCryptoDaily)

	ct := now.Add(-100 * time.Hour)
	m := &model.Market{Status: model.StatusClosed, CloseTime: &ct}
	assert.True(t, Eligible(m, now, opts))

	ct = now.Add(-200 * time.Hour) // past the 168h crypto lookback
	m = &model.Market{Status: model.StatusClosed, CloseTime: &ct}
	assert.False(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonClosedTooOld}, Explain(m, now, opts))
}

func TestEligibleTerminalStatuses(t *testing.T) {
	opts := ForTopic(model.TopicElections)
	ct := now.Add(-time.Hour)

	m := &model.Market{Status: model.StatusResolved, CloseTime: &ct}
	assert.False(t, Eligible(m, now, opts))
	assert.Equal(t, []ReasonCode{ReasonStatusTerminal}, Explain(m, now, opts))

	opts.IncludeResolved = true
	assert.True(t, Eligible(m, now, opts))
}

func TestForTopicWindows(t *testing.T) {
	assert.Equal(t, 72, ForTopic(model.TopicCryptoDaily).ForwardHours)
	assert.Equal(t, 24, ForTopic(model.TopicCryptoIntraday).ForwardHours)
	assert.Equal(t, 168, ForTopic(model.TopicCryptoIntraday).LookbackHours)
	assert.Equal(t, 8760, ForTopic(model.TopicElections).ForwardHours)
	assert.Equal(t, 720, ForTopic(model.TopicMacro).LookbackHours)
}

func TestCategorizeStaleActive(t *testing.T) {
	grace := time.Hour
	assert.Equal(t, StaleOK, CategorizeStaleActive(30*time.Minute, grace))
	assert.Equal(t, StaleOK, CategorizeStaleActive(grace, grace))
	assert.Equal(t, StaleMinor, CategorizeStaleActive(90*time.Minute, grace))
	assert.Equal(t, StaleMinor, CategorizeStaleActive(2*grace, grace))
	assert.Equal(t, StaleMajor, CategorizeStaleActive(2*grace+time.Second, grace))
}
