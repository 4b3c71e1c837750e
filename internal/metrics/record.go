package metrics

import (
	"time"

	"github.com/nvandessel/acpsim/internal/models"
)

// Episode statuses.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RecordEpisode records a completed episode.
func (r *Registry) RecordEpisode(res models.EpisodeResult) {
	if r == nil {
		return
	}
	s := res.Strategy
	r.EpisodesTotal.WithLabelValues(s, StatusSuccess).Inc()
	r.EpisodeReward.WithLabelValues(s).Observe(res.TotalReward)
	r.EpisodeSteps.WithLabelValues(s).Observe(float64(res.Steps))
	r.FinalCompromisedRatio.WithLabelValues(s).Observe(res.FinalCompromisedRatio)
	r.LatencyExploitations.WithLabelValues(s).Add(float64(res.CognitiveLatencyExploitations))
	r.RestoreActions.WithLabelValues(s).Add(float64(res.RestoreNodeCount))
	for action, n := range res.ActionCounts {
		r.ActionsTotal.WithLabelValues(s, string(action)).Add(float64(n))
	}
	r.EpisodesPending.Dec()
}

// RecordEpisodeFailure records an aborted episode.
func (r *Registry) RecordEpisodeFailure(strategy string) {
	if r == nil {
		return
	}
	r.EpisodesTotal.WithLabelValues(strategy, StatusFailed).Inc()
	r.EpisodesPending.Dec()
}

// StartRun sets the pending gauge for a run of n episodes.
func (r *Registry) StartRun(n int) {
	if r == nil {
		return
	}
	r.EpisodesPending.Set(float64(n))
}

// RecordRun records a finished run with its outcome.
func (r *Registry) RecordRun(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(status).Inc()
	r.RunDuration.Observe(duration.Seconds())
	r.EpisodesPending.Set(0)
}

// RecordToolCall records one MCP tool invocation.
func (r *Registry) RecordToolCall(tool, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	r.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
