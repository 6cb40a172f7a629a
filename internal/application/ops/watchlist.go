package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
	"github.com/predmatch/predmatch/internal/persistence"
)

// WatchlistCaps bounds the rebuilt watchlist.
type WatchlistCaps struct {
	MaxTotal     int
	MaxPerVenue  int
	MaxSuggested int
	// TopSuggested is how many suggested links get the elevated priority.
	TopSuggested int
}

// DefaultWatchlistCaps mirrors the production quoting budget.
var DefaultWatchlistCaps = WatchlistCaps{
	MaxTotal:     400,
	MaxPerVenue:  250,
	MaxSuggested: 150,
	TopSuggested: 50,
}

// safeConfirmableFloors marks suggested links that a safe-confirm pack is
// likely to promote; their quotes are worth keeping as fresh as confirmed
// ones.
var safeConfirmableFloors = map[model.Topic]float64{
	model.TopicCryptoDaily: 0.88,
	model.TopicMacro:       0.85,
	model.TopicElections:   0.95,
}

// syncWatchlist rebuilds the watchlist from links: both sides of every
// confirmed link first, then suggested links in score order, then the rest,
// all subject to the caps. Returns the number of entries written.
func syncWatchlist(ctx context.Context, repo persistence.Repository, topics []model.Topic, caps WatchlistCaps) (int, error) {
	type scored struct {
		entry     model.WatchlistEntry
		score     float64
		suggested bool
	}
	var pool []scored

	appendSides := func(link *model.MarketLink, priority int, suggested bool) {
		reason := fmt.Sprintf("link:%d status:%s", link.ID, link.Status)
		pool = append(pool,
			scored{
				entry: model.WatchlistEntry{
					Venue: link.LeftVenue, MarketID: link.LeftMarketID,
					Priority: priority, Reason: reason,
				},
				score: link.Score, suggested: suggested,
			},
			scored{
				entry: model.WatchlistEntry{
					Venue: link.RightVenue, MarketID: link.RightMarketID,
					Priority: priority, Reason: reason,
				},
				score: link.Score, suggested: suggested,
			},
		)
	}

	for _, topic := range topics {
		confirmed, err := repo.ListLinks(ctx, persistence.LinkQuery{
			Topic: topic, Status: model.LinkConfirmed,
		})
		if err != nil {
			return 0, fmt.Errorf("list confirmed links for %s: %w", topic, err)
		}
		for _, link := range confirmed {
			appendSides(link, model.PriorityConfirmed, false)
		}

		suggested, err := repo.ListLinks(ctx, persistence.LinkQuery{
			Topic: topic, Status: model.LinkSuggested,
		})
		if err != nil {
			return 0, fmt.Errorf("list suggested links for %s: %w", topic, err)
		}
		sort.SliceStable(suggested, func(i, j int) bool {
			return suggested[i].Score > suggested[j].Score
		})
		for i, link := range suggested {
			priority := model.PriorityOther
			if floor, ok := safeConfirmableFloors[topic]; ok && link.Score >= floor {
				priority = model.PriorityCandidateSafe
			} else if i < caps.TopSuggested {
				priority = model.PriorityTopSuggested
			}
			appendSides(link, priority, true)
		}
	}

	// Highest priority first, then score; a market on several links keeps
	// its best slot.
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].entry.Priority != pool[j].entry.Priority {
			return pool[i].entry.Priority > pool[j].entry.Priority
		}
		return pool[i].score > pool[j].score
	})

	type marketKey struct {
		venue model.Venue
		id    int64
	}
	seen := map[marketKey]bool{}
	perVenue := map[model.Venue]int{}
	suggestedCount := 0
	var entries []model.WatchlistEntry

	for _, s := range pool {
		key := marketKey{s.entry.Venue, s.entry.MarketID}
		if seen[key] {
			continue
		}
		if caps.MaxTotal > 0 && len(entries) >= caps.MaxTotal {
			break
		}
		if caps.MaxPerVenue > 0 && perVenue[s.entry.Venue] >= caps.MaxPerVenue {
			continue
		}
		if s.suggested && caps.MaxSuggested > 0 && suggestedCount >= caps.MaxSuggested {
			continue
		}
		seen[key] = true
		perVenue[s.entry.Venue]++
		if s.suggested {
			suggestedCount++
		}
		entries = append(entries, s.entry)
	}

	if err := repo.ReplaceWatchlist(ctx, entries); err != nil {
		return 0, fmt.Errorf("replace watchlist: %w", err)
	}
	log.Info().
		Int("entries", len(entries)).
		Int("suggested", suggestedCount).
		Msg("Watchlist rebuilt")
	return len(entries), nil
}
