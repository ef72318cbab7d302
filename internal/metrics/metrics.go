// Package metrics owns the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "detective"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStopped = "stopped"
	OutcomeStale   = "stale"
)

type Metrics struct {
	registry *prometheus.Registry

	RCARuns         *prometheus.CounterVec
	RCARunDuration  prometheus.Histogram
	TreeLoads       *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	SimulationTicks prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can build as
// many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RCARuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rca_runs_total",
			Help:      "RCA runs by outcome.",
		}, []string{"outcome"}),
		RCARunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rca_run_duration_seconds",
			Help:      "Wall time of completed RCA runs.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30, 60, 180},
		}),
		TreeLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_loads_total",
			Help:      "Hierarchy loads by outcome.",
		}, []string{"outcome"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Data boundary failures by operation.",
		}, []string{"op"}),
		SimulationTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_ticks_total",
			Help:      "Force simulation steps executed.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
