// Package eligibility is the one canonical "is this market usable now"
// filter. Every fetch path in the engine goes through it; pipelines never
// re-implement their own staleness rules.
package eligibility

import (
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// Options controls the eligibility window for one fetch.
type Options struct {
	Grace           time.Duration
	ForwardHours    int
	LookbackHours   int
	IncludeResolved bool // resolved/archived within lookback, diagnostics only
}

// Defaults per spec: grace 60 min; forward window 72 h for crypto_daily,
// 24 h for crypto_intraday, a year for macro/politics; lookback 168 h for
// crypto, 720 h otherwise.
const (
	DefaultGraceMinutes = 60

	ForwardHoursCryptoDaily    = 72
	ForwardHoursCryptoIntraday = 24
	ForwardHoursLongRange      = 8760

	LookbackHoursCrypto = 168
	LookbackHoursMacro  = 720
)

// ForTopic returns the default options for a topic.
func ForTopic(topic model.Topic) Options {
	opts := Options{
		Grace:         DefaultGraceMinutes * time.Minute,
		ForwardHours:  ForwardHoursLongRange,
		LookbackHours: LookbackHoursMacro,
	}
	switch topic {
	case model.TopicCryptoDaily:
		opts.ForwardHours = ForwardHoursCryptoDaily
		opts.LookbackHours = LookbackHoursCrypto
	case model.TopicCryptoIntraday:
		opts.ForwardHours = ForwardHoursCryptoIntraday
		opts.LookbackHours = LookbackHoursCrypto
	}
	return opts
}

// ReasonCode explains one eligibility decision.
type ReasonCode string

const (
	ReasonEligible       ReasonCode = "eligible"
	ReasonStatusTerminal ReasonCode = "status_terminal"
	ReasonStaleActive    ReasonCode = "stale_active"
	ReasonWithinGrace    ReasonCode = "within_grace"
	ReasonClosedTooOld   ReasonCode = "closed_too_old"
	ReasonNoCloseTime    ReasonCode = "no_close_time"
)

// StaleCategory grades how far past its close an active market is.
type StaleCategory string

const (
	StaleOK    StaleCategory = "ok"
	StaleMinor StaleCategory = "minor"
	StaleMajor StaleCategory = "major"
)

// Eligible reports whether a market should enter a matching run at `now`.
func Eligible(m *model.Market, now time.Time, opts Options) bool {
	codes := Explain(m, now, opts)
	for _, c := range codes {
		switch c {
		case ReasonEligible, ReasonWithinGrace:
			return true
		case ReasonNoCloseTime:
			// Only an active market may ride without a close time; a closed
			// row missing one cannot be placed in the lookback window.
			if m.Status == model.StatusActive {
				return true
			}
		}
	}
	return false
}

// Explain returns the reason codes for a market's eligibility decision.
func Explain(m *model.Market, now time.Time, opts Options) []ReasonCode {
	switch m.Status {
	case model.StatusActive:
		return explainActive(m, now, opts)
	case model.StatusClosed:
		if m.CloseTime == nil {
			return []ReasonCode{ReasonNoCloseTime}
		}
		if m.CloseTime.Before(now.Add(-time.Duration(opts.LookbackHours) * time.Hour)) {
			return []ReasonCode{ReasonClosedTooOld}
		}
		return []ReasonCode{ReasonEligible}
	case model.StatusResolved, model.StatusArchived:
		if opts.IncludeResolved && m.CloseTime != nil &&
			!m.CloseTime.Before(now.Add(-time.Duration(opts.LookbackHours)*time.Hour)) {
			return []ReasonCode{ReasonEligible, ReasonStatusTerminal}
		}
		return []ReasonCode{ReasonStatusTerminal}
	default:
		return []ReasonCode{ReasonStatusTerminal}
	}
}

func explainActive(m *model.Market, now time.Time, opts Options) []ReasonCode {
	if m.CloseTime == nil {
		return []ReasonCode{ReasonNoCloseTime}
	}
	ct := *m.CloseTime
	lower := now.Add(-opts.Grace)
	upper := now.Add(time.Duration(opts.ForwardHours) * time.Hour)
	if ct.Before(lower) {
		return []ReasonCode{ReasonStaleActive}
	}
	if ct.After(upper) {
		// Closes too far out for this topic's window.
		return []ReasonCode{ReasonClosedTooOld}
	}
	if ct.Before(now) {
		return []ReasonCode{ReasonEligible, ReasonWithinGrace}
	}
	return []ReasonCode{ReasonEligible}
}

// CategorizeStaleActive grades an active market whose close time is `age` in
// the past: ok within grace, minor within 2x grace, major beyond that.
func CategorizeStaleActive(age, grace time.Duration) StaleCategory {
	switch {
	case age <= grace:
		return StaleOK
	case age <= 2*grace:
		return StaleMinor
	default:
		return StaleMajor
	}
}
