// Package metrics exposes experiment counters and histograms to Prometheus.
//
// All Record methods are safe on a nil *Registry so that callers which do
// not export metrics can pass nil.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all acpsim metrics.
type Registry struct {
	// Episode metrics
	EpisodesTotal         *prometheus.CounterVec
	EpisodeReward         *prometheus.HistogramVec
	EpisodeSteps          *prometheus.HistogramVec
	LatencyExploitations  *prometheus.CounterVec
	RestoreActions        *prometheus.CounterVec
	ActionsTotal          *prometheus.CounterVec
	FinalCompromisedRatio *prometheus.HistogramVec

	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	EpisodesPending prometheus.Gauge

	// Tool server metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialised.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initEpisodeMetrics()
	r.initRunMetrics()
	r.initToolMetrics()
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) initEpisodeMetrics() {
	r.EpisodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_episodes_total",
			Help: "Total number of episodes run",
		},
		[]string{"strategy", "status"},
	)

	r.EpisodeReward = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acpsim_episode_reward",
			Help:    "Total reward per episode",
			Buckets: []float64{-5000, -2000, -1000, -500, -250, -100, -50, 0, 50, 100},
		},
		[]string{"strategy"},
	)

	r.EpisodeSteps = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acpsim_episode_steps",
			Help:    "Steps per episode",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"strategy"},
	)

	r.LatencyExploitations = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_latency_exploitations_total",
			Help: "Deceptions deployed inside the attacker's latency window that the attacker fell for",
		},
		[]string{"strategy"},
	)

	r.RestoreActions = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_restore_actions_total",
			Help: "Total RESTORE_NODE actions taken",
		},
		[]string{"strategy"},
	)

	r.ActionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_defender_actions_total",
			Help: "Defender actions by type",
		},
		[]string{"strategy", "action"},
	)

	r.FinalCompromisedRatio = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acpsim_final_compromised_ratio",
			Help:    "Fraction of nodes compromised at episode end",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"strategy"},
	)
}

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_runs_total",
			Help: "Total experiment runs by outcome",
		},
		[]string{"status"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "acpsim_run_duration_seconds",
			Help:    "Experiment run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	r.EpisodesPending = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "acpsim_episodes_pending",
			Help: "Episodes queued but not yet finished in the current run",
		},
	)
}

func (r *Registry) initToolMetrics() {
	r.ToolCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "acpsim_tool_calls_total",
			Help: "MCP tool invocations by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	r.ToolCallDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acpsim_tool_call_duration_seconds",
			Help:    "MCP tool call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
}
