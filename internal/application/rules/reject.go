package rules

import (
	"time"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/domain/signals"
	"github.com/predmatch/predmatch/internal/domain/text"
)

// RejectPackVersion tags rewritten reasons from the reject pack. The pack
// is shared across topics, so it versions independently of any pipeline.
const RejectPackVersion = "v1.9.3"

// textSanityFloor is the Jaccard below which two titles plainly describe
// different questions regardless of what the signals said.
const textSanityFloor = 0.05

// hardFloors are the per-topic scores under which a suggestion is noise.
var hardFloors = map[model.Topic]float64{
	model.TopicCryptoDaily:    0.45,
	model.TopicCryptoIntraday: 0.45,
	model.TopicMacro:          0.40,
	model.TopicRates:          0.40,
	model.TopicElections:      0.40,
	model.TopicGeopolitics:    0.35,
	model.TopicSports:         0.60,
	model.TopicEntertainment:  0.40,
	model.TopicClimate:        0.40,
	model.TopicCommodities:    0.40,
	model.TopicFinance:        0.40,
	model.TopicUniversal:      0.35,
}

// rejectOptions tunes the age-based rule; zero MinAge disables it.
type rejectOptions struct {
	Now             time.Time
	MinAge          time.Duration
	StaleScoreBelow float64
}

// evalReject runs every reject rule and returns the ones that fired, in
// evaluation order. An empty slice means the link survives.
func evalReject(topic model.Topic, lv linkView, opts rejectOptions) []string {
	var fired []string

	if floor, ok := hardFloors[topic]; ok && lv.Link.Score < floor {
		fired = append(fired, "below_hard_floor")
	}
	fired = append(fired, topicRejectRules(topic, lv)...)

	if text.TitleSimilarity(lv.Left.Title, lv.Right.Title) < textSanityFloor {
		fired = append(fired, "text_sanity")
	}
	if opts.MinAge > 0 &&
		lv.Link.Status == model.LinkSuggested &&
		opts.Now.Sub(lv.Link.CreatedAt) >= opts.MinAge &&
		lv.Link.Score < opts.StaleScoreBelow {
		fired = append(fired, "stale_low_score")
	}
	return fired
}

func topicRejectRules(topic model.Topic, lv linkView) []string {
	switch topic {
	case model.TopicCryptoDaily, model.TopicCryptoIntraday:
		return cryptoRejectRules(lv)
	case model.TopicMacro:
		return macroRejectRules(lv)
	case model.TopicElections:
		return electionsRejectRules(lv)
	case model.TopicCommodities, model.TopicFinance:
		return instrumentRejectRules(lv)
	}
	return nil
}

func cryptoRejectRules(lv linkView) []string {
	var fired []string
	l := signals.ExtractCrypto(lv.Left)
	r := signals.ExtractCrypto(lv.Right)

	if l.Entity != r.Entity {
		fired = append(fired, "entity_mismatch")
	}
	if l.Intraday() != r.Intraday() {
		fired = append(fired, "class_incompatible")
	}
	// Settle dates beyond the one-day drift tolerance mean different
	// settlements even when everything else lines up.
	if l.SettleDate != "" && r.SettleDate != "" {
		lt, errL := time.Parse("2006-01-02", l.SettleDate)
		rt, errR := time.Parse("2006-01-02", r.SettleDate)
		if errL == nil && errR == nil {
			diff := rt.Sub(lt).Hours() / 24
			if diff < -1 || diff > 1 {
				fired = append(fired, "date_mismatch")
			}
		}
	}
	return fired
}

func macroRejectRules(lv linkView) []string {
	var fired []string
	l := signals.ExtractMacro(lv.Left)
	r := signals.ExtractMacro(lv.Right)

	if l.Entity != "" && r.Entity != "" && l.Entity != r.Entity {
		fired = append(fired, "entity_mismatch")
	}
	if l.HasPeriod && r.HasPeriod && signals.AlignPeriods(l.Period, r.Period) == signals.PeriodMismatch {
		fired = append(fired, "date_mismatch")
	}
	return fired
}

func electionsRejectRules(lv linkView) []string {
	var fired []string
	l := signals.ExtractElections(lv.Left)
	r := signals.ExtractElections(lv.Right)

	if l.Country != signals.CountryUnknown && r.Country != signals.CountryUnknown && l.Country != r.Country {
		fired = append(fired, "entity_mismatch")
	}
	if l.Year != 0 && r.Year != 0 && l.Year != r.Year {
		fired = append(fired, "date_mismatch")
	}
	if len(l.Candidates) > 0 && len(r.Candidates) > 0 && candidateOverlap(l.Candidates, r.Candidates) == 0 {
		fired = append(fired, "disjoint_candidates")
	}
	return fired
}

func instrumentRejectRules(lv linkView) []string {
	l := signals.ExtractInstrument(lv.Left)
	r := signals.ExtractInstrument(lv.Right)
	if l.Instrument != "" && r.Instrument != "" && l.Instrument != r.Instrument {
		return []string{"entity_mismatch"}
	}
	return nil
}
