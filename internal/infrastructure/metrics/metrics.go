// Package metrics holds the Prometheus instruments for predmatch. One
// Registry is built at startup and threaded into the orchestrator, the
// operational loop and the venue clients.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all predmatch metrics.
type Registry struct {
	// Step duration for operational-loop and orchestrator phases.
	StepDuration *prometheus.HistogramVec

	// Matching funnel counters by topic and stage.
	MatchCandidates *prometheus.CounterVec
	MatchErrors     *prometheus.CounterVec

	// Link writes by topic and upsert outcome.
	LinkUpserts *prometheus.CounterVec

	// Score distribution per topic.
	MatchScores *prometheus.HistogramVec

	// Operational state.
	QuoteFreshness *prometheus.GaugeVec
	WatchlistSize  *prometheus.GaugeVec
	ActiveRuns     prometheus.Gauge
	RunsTotal      prometheus.Counter

	// Venue HTTP clients.
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewRegistry builds and registers all metrics. A nil registerer uses the
// process-wide default.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Registry{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predmatch_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"step", "result"},
		),
		MatchCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predmatch_match_candidates_total",
				Help: "Candidate pairs seen per topic and funnel stage",
			},
			[]string{"topic", "stage"},
		),
		MatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predmatch_match_errors_total",
				Help: "Matching errors per topic and kind",
			},
			[]string{"topic", "kind"},
		),
		LinkUpserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predmatch_link_upserts_total",
				Help: "Link upserts per topic and outcome",
			},
			[]string{"topic", "outcome"},
		),
		MatchScores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predmatch_match_score",
				Help:    "Accepted candidate scores per topic",
				Buckets: []float64{0.6, 0.7, 0.8, 0.9},
			},
			[]string{"topic"},
		),
		QuoteFreshness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "predmatch_recent_quotes",
				Help: "Quotes observed in the freshness window per venue",
			},
			[]string{"venue"},
		),
		WatchlistSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "predmatch_watchlist_size",
				Help: "Watchlist entries per venue",
			},
			[]string{"venue"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "predmatch_active_runs",
				Help: "Operational-loop runs currently in flight",
			},
		),
		RunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "predmatch_runs_total",
				Help: "Operational-loop runs started",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predmatch_http_requests_total",
				Help: "Venue API requests by venue and outcome",
			},
			[]string{"venue", "outcome"},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predmatch_http_latency_seconds",
				Help:    "Venue API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"venue", "endpoint"},
		),
	}

	reg.MustRegister(
		r.StepDuration,
		r.MatchCandidates,
		r.MatchErrors,
		r.LinkUpserts,
		r.MatchScores,
		r.QuoteFreshness,
		r.WatchlistSize,
		r.ActiveRuns,
		r.RunsTotal,
		r.HTTPRequests,
		r.HTTPLatency,
	)
	return r
}

// StepTimer tracks execution time for one named step.
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a step. Safe on a nil Registry.
func (r *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: r, step: step, start: time.Now()}
}

// Stop completes the timing and records it under the given result label.
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	if st.metrics != nil {
		st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())
	}
	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Step completed")
}

// Handler serves the default scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
