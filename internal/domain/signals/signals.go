// Package signals turns raw markets into typed per-topic signal bundles.
// Extractors are pure functions of the market (title, close time, metadata,
// optional exchange event); they read the metadata bag defensively and never
// let it leak past the bundle boundary.
package signals

import (
	"github.com/predmatch/predmatch/internal/domain/text"
)

// Meta accompanies every signal bundle for indexing and diagnostics.
type Meta struct {
	TitleTokens []string `json:"title_tokens"`
	Confidence  float64  `json:"confidence"`
	RaceKey     string   `json:"race_key,omitempty"`
}

func metaFor(title string, confidence float64, raceKey string) Meta {
	return Meta{
		TitleTokens: text.Tokenize(title),
		Confidence:  confidence,
		RaceKey:     raceKey,
	}
}
