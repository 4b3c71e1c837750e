package simulation_test

import (
	"sync/atomic"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/simulation"
)

// TestACPOutperformsPessimistic is the reference experiment: 50-node random
// topology, connectivity 0.6, acp_strength 0.65, learning_rate 1.0, seed 42,
// 100 episodes per strategy.
func TestACPOutperformsPessimistic(t *testing.T) {
	if testing.Short() {
		t.Skip("reference experiment")
	}
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name: "acp-vs-pessimistic",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 50
			cfg.TopologyType = "random"
			cfg.Connectivity = 0.6
			cfg.ACPStrength = 0.65
			cfg.LearningRate = 1.0
			cfg.BootstrapSamples = 2000
		},
		Episodes: 100,
		Seed:     simulation.Int64(42),
	})

	simulation.AssertNoFailures(t, result)
	simulation.AssertMeanRewardGreater(t, result, simulation.Optimistic, simulation.Pessimistic)
	simulation.AssertSignificant(t, result)
	t.Logf("ACP advantage: %.3f", result.Advantage())
	if c := result.Report.Analysis.Comparison; c != nil && c.RestoreRateRatio != nil {
		t.Logf("restore rate ratio: %.2fx, effect %s", *c.RestoreRateRatio, c.EffectSize)
	}
}

// TestLatencyArbitrage validates that ACP's edge comes from the latency
// window: with a zero-width window it collapses to the pessimistic policy,
// and every positive-width window beats it.
func TestLatencyArbitrage(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sweep")
	}
	r := simulation.NewRunner(t)

	points := r.SweepLatency(simulation.Scenario{
		Name: "latency-sweep",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.BootstrapSamples = 500
		},
		Episodes: 60,
		Seed:     simulation.Int64(42),
	},
		config.LatencyWindow{Min: 0, Max: 0},
		config.LatencyWindow{Min: 0, Max: 1},
		config.LatencyWindow{Min: 1, Max: 1},
		config.LatencyWindow{Min: 1, Max: 3},
		config.LatencyWindow{Min: 5, Max: 5},
	)

	zero := points[0]
	if zero.Advantage != 0 {
		t.Errorf("zero window: advantage %.6f, want exactly 0", zero.Advantage)
	}
	if n := simulation.CountAction(zero.Result, simulation.Optimistic, models.ActionDeceive); n != 0 {
		t.Errorf("zero window: ACP deceived %d times", n)
	}
	for _, p := range points[1:] {
		w := p.Window
		if p.Advantage <= zero.Advantage {
			t.Errorf("advantage did not shrink: window [%d,%d]=%.4f, window [0,0]=%.4f", w.Min, w.Max, p.Advantage, zero.Advantage)
		}
		if n := simulation.CountAction(p.Result, simulation.Optimistic, models.ActionDeceive); n == 0 {
			t.Errorf("window [%d,%d]: ACP never deceived", w.Min, w.Max)
		}
	}
}

func TestHubSpokeTopology(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name: "hub-spoke",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.TopologyType = "hub_spoke"
			cfg.NumNodes = 50
			cfg.HubRatio = 0.1
			cfg.MaxSteps = 20
			cfg.BootstrapSamples = 200
		},
		Episodes: 5,
	})

	simulation.AssertNoFailures(t, result)
	simulation.AssertHubsPresent(t, result)
	for _, res := range result.Report.RawResults {
		if res.TopologyMetrics.Type != "hub_spoke" || res.TopologyMetrics.Nodes != 50 {
			t.Errorf("episode %d: topology %+v", res.EpisodeIndex, res.TopologyMetrics)
		}
	}
}

func TestRestoreCost(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name: "restore-cost",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 30
			cfg.MaxSteps = 30
			cfg.BootstrapSamples = 200
		},
		Episodes: 20,
	})

	simulation.AssertRestoreCostExact(t, result)
	if simulation.CountAction(result, simulation.Pessimistic, models.ActionRestoreNode) == 0 {
		t.Error("pessimistic defender never restored a node")
	}
}

func TestPessimisticNeverDeceives(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name: "strategy-separation",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 30
			cfg.MaxSteps = 30
			cfg.ACPStrength = 1
			cfg.DetectionRate = 1
			cfg.BootstrapSamples = 200
		},
		Episodes: 30,
	})

	simulation.AssertNeverSelects(t, result, simulation.Pessimistic, models.ActionDeceive)
	if simulation.CountAction(result, simulation.Optimistic, models.ActionDeceive) == 0 {
		t.Error("ACP defender never deceived with acp_strength=1")
	}
}

func TestDeterminism(t *testing.T) {
	r := simulation.NewRunner(t)

	scenario := simulation.Scenario{
		Name: "determinism",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 25
			cfg.MaxSteps = 25
			cfg.BootstrapSamples = 200
		},
		Episodes: 10,
		Seed:     simulation.Int64(7),
	}
	a := r.Run(scenario)
	b := r.Run(scenario)

	if a.Report.VersionMetadata.RunID == b.Report.VersionMetadata.RunID {
		t.Error("runs share a run id")
	}
	simulation.AssertDeterministic(t, a, b)
	if a.Advantage() != b.Advantage() {
		t.Errorf("advantage differs: %v vs %v", a.Advantage(), b.Advantage())
	}
}

func TestSingleConfigurationMatchesExperiment(t *testing.T) {
	r := simulation.NewRunner(t)

	scenario := simulation.Scenario{
		Name: "single",
		Config: simulation.Configured(func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 20
			cfg.MaxSteps = 20
			cfg.BootstrapSamples = 200
		}),
		Episodes: 2,
		Seed:     simulation.Int64(11),
	}
	result := r.Run(scenario)

	for _, strategy := range []string{simulation.Pessimistic, simulation.Optimistic} {
		s := scenario
		s.Configure = func(cfg *config.SimulationConfig) { cfg.Defender = strategy }
		single := r.RunSingle(s)

		first := result.Results(strategy)[0]
		if single.Seed != 11 || first.Seed != 11 {
			t.Errorf("%s: seeds %d and %d, want 11", strategy, single.Seed, first.Seed)
		}
		if single.TotalReward != first.TotalReward || single.Steps != first.Steps {
			t.Errorf("%s: single run (reward %.4f, %d steps) differs from episode 0 (reward %.4f, %d steps)",
				strategy, single.TotalReward, single.Steps, first.TotalReward, first.Steps)
		}
	}
}

func TestProgressAndMetrics(t *testing.T) {
	r := simulation.NewRunner(t)

	var calls atomic.Int64
	var finished atomic.Bool
	result := r.Run(simulation.Scenario{
		Name: "progress",
		Configure: func(cfg *config.SimulationConfig) {
			cfg.NumNodes = 15
			cfg.MaxSteps = 10
			cfg.Workers = 3
			cfg.BootstrapSamples = 100
		},
		Episodes: 8,
		Progress: func(done, planned int) {
			calls.Add(1)
			if planned != 16 {
				t.Errorf("planned = %d, want 16", planned)
			}
			if done == planned {
				finished.Store(true)
			}
		},
	})

	simulation.AssertNoFailures(t, result)
	if calls.Load() != 16 || !finished.Load() {
		t.Errorf("progress: %d calls (want 16), reached planned: %v", calls.Load(), finished.Load())
	}

	c, err := r.Metrics().RunsTotal.GetMetricWithLabelValues(metrics.StatusSuccess)
	if err != nil {
		t.Fatalf("RunsTotal: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("runs_total{success} = %v, want 1", got)
	}
}
