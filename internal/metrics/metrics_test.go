package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/models"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.EpisodesTotal == nil || r.RunDuration == nil || r.ActionsTotal == nil {
		t.Fatal("metrics not initialized")
	}
	if r.PrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestRecordEpisode(t *testing.T) {
	r := NewRegistry()
	r.StartRun(2)
	res := models.EpisodeResult{
		Strategy:                      "optimistic_acp",
		TotalReward:                   -42,
		Steps:                         10,
		RestoreNodeCount:              2,
		CognitiveLatencyExploitations: 3,
		ActionCounts: map[models.Action]int{
			models.ActionRestoreNode: 2,
			models.ActionDeceive:     4,
		},
	}
	r.RecordEpisode(res)
	r.RecordEpisode(res)

	c, err := r.EpisodesTotal.GetMetricWithLabelValues("optimistic_acp", StatusSuccess)
	if err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, c); got != 2 {
		t.Errorf("episodes = %v, want 2", got)
	}

	c, _ = r.LatencyExploitations.GetMetricWithLabelValues("optimistic_acp")
	if got := counterValue(t, c); got != 6 {
		t.Errorf("exploitations = %v, want 6", got)
	}

	c, _ = r.ActionsTotal.GetMetricWithLabelValues("optimistic_acp", "DECEIVE")
	if got := counterValue(t, c); got != 8 {
		t.Errorf("deceive actions = %v, want 8", got)
	}

	var m dto.Metric
	if err := r.EpisodesPending.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetGauge().GetValue(); got != 0 {
		t.Errorf("pending = %v, want 0", got)
	}
}

func TestRecordRun(t *testing.T) {
	r := NewRegistry()
	r.RecordEpisodeFailure("pessimistic")
	r.RecordRun(StatusCancelled, 2*time.Second)

	c, _ := r.EpisodesTotal.GetMetricWithLabelValues("pessimistic", StatusFailed)
	if got := counterValue(t, c); got != 1 {
		t.Errorf("failed episodes = %v, want 1", got)
	}
	c, _ = r.RunsTotal.GetMetricWithLabelValues(StatusCancelled)
	if got := counterValue(t, c); got != 1 {
		t.Errorf("cancelled runs = %v, want 1", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	r.StartRun(1)
	r.RecordEpisode(models.EpisodeResult{})
	r.RecordEpisodeFailure("pessimistic")
	r.RecordRun(StatusSuccess, time.Second)
	r.RecordToolCall("acpsim_list_runs", StatusSuccess, time.Millisecond)
}

func TestRecordToolCall(t *testing.T) {
	r := NewRegistry()
	r.RecordToolCall("acpsim_get_run", StatusSuccess, 5*time.Millisecond)
	r.RecordToolCall("acpsim_get_run", StatusFailed, time.Millisecond)
	r.RecordToolCall("acpsim_get_run", StatusSuccess, time.Millisecond)

	c, _ := r.ToolCallsTotal.GetMetricWithLabelValues("acpsim_get_run", StatusSuccess)
	if got := counterValue(t, c); got != 2 {
		t.Errorf("successful calls = %v, want 2", got)
	}

	h, _ := r.ToolCallDuration.GetMetricWithLabelValues("acpsim_get_run")
	var m dto.Metric
	if err := h.(interface{ Write(*dto.Metric) error }).Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("observations = %v, want 3", got)
	}
}

func TestServer(t *testing.T) {
	r := NewRegistry()
	r.RecordRun(StatusSuccess, time.Second)

	s := NewServer("127.0.0.1:0", r, logging.Discard())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "acpsim_runs_total") {
		t.Errorf("exposition missing acpsim_runs_total:\n%s", body)
	}
}
