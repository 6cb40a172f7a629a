package pipeline

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/predmatch/predmatch/internal/domain/model"
)

// The registry is the only process-global in the engine. It is written once
// by RegisterAllPipelines at startup and read-only afterwards, so no lock.
var registry = map[model.Topic]Pipeline{}

// Register adds one pipeline. Registering a topic twice is a programming
// error and panics at startup rather than silently shadowing.
func Register(p Pipeline) {
	if _, dup := registry[p.Topic()]; dup {
		panic("pipeline already registered: " + string(p.Topic()))
	}
	registry[p.Topic()] = p
}

// Lookup returns the pipeline for a topic. Dispatch is a pure map read.
func Lookup(topic model.Topic) (Pipeline, bool) {
	p, ok := registry[topic]
	return p, ok
}

// RegisteredTopics lists every topic with a pipeline, sorted for stable
// iteration in the operational loop.
func RegisteredTopics() []model.Topic {
	topics := make([]model.Topic, 0, len(registry))
	for t := range registry {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

var registerOnce sync.Once

// RegisterAllPipelines wires every topic pipeline into the registry.
// Idempotent so main and tests can both call it.
func RegisterAllPipelines() {
	registerOnce.Do(registerAll)
}

func registerAll() {
	Register(newCryptoDailyPipeline())
	Register(newCryptoIntradayPipeline())
	Register(newMacroPipeline())
	Register(newRatesPipeline())
	Register(newElectionsPipeline())
	Register(newGeopoliticsPipeline())
	Register(newSportsPipeline())
	Register(newEntertainmentPipeline())
	Register(newClimatePipeline())
	Register(newInstrumentPipeline(model.TopicCommodities))
	Register(newInstrumentPipeline(model.TopicFinance))
	Register(newUniversalPipeline())

	log.Info().Int("pipelines", len(registry)).Msg("Pipeline registry initialized")
}
