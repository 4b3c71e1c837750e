package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/store"
)

// Runner orchestrates scenario experiments against a real result store.
type Runner struct {
	t       *testing.T
	store   *store.Store
	metrics *metrics.Registry
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.Open(context.Background(), filepath.Join(tmpDir, "acpsim.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s, metrics: metrics.NewRegistry()}
}

// Metrics returns the registry shared by every scenario of this runner.
func (r *Runner) Metrics() *metrics.Registry { return r.metrics }

// Run executes the scenario, stores the report, and returns the stored copy.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	cfg := r.resolve(scenario)
	opts := []experiment.Option{
		experiment.WithMetrics(r.metrics),
		experiment.WithVersion("simulation", scenario.Name),
	}
	if scenario.Progress != nil {
		opts = append(opts, experiment.WithProgress(scenario.Progress))
	}

	report, err := experiment.NewRunner(cfg, opts...).Run(ctx)
	if err != nil {
		r.t.Fatalf("%s: Run: %v", scenario.Name, err)
	}
	if err := r.store.SaveReport(ctx, report); err != nil {
		r.t.Fatalf("%s: SaveReport: %v", scenario.Name, err)
	}
	stored, err := r.store.LoadRun(ctx, report.VersionMetadata.RunID)
	if err != nil {
		r.t.Fatalf("%s: LoadRun: %v", scenario.Name, err)
	}
	if len(stored.RawResults) != len(report.RawResults) {
		r.t.Fatalf("%s: stored %d results, ran %d", scenario.Name, len(stored.RawResults), len(report.RawResults))
	}

	return SimulationResult{
		Name:   scenario.Name,
		Report: stored,
		Store:  r.store,
	}
}

// RunSingle runs one episode of the scenario's configured defender.
func (r *Runner) RunSingle(scenario Scenario) models.EpisodeResult {
	r.t.Helper()
	res, err := experiment.RunSingleConfiguration(context.Background(), r.resolve(scenario),
		experiment.WithMetrics(r.metrics))
	if err != nil {
		r.t.Fatalf("%s: RunSingleConfiguration: %v", scenario.Name, err)
	}
	return res
}

// resolve builds the scenario's configuration and validates it.
func (r *Runner) resolve(scenario Scenario) config.SimulationConfig {
	r.t.Helper()
	cfg := config.DefaultSimulationConfig()
	if scenario.Config != nil {
		cfg = *scenario.Config
	}
	if scenario.Configure != nil {
		scenario.Configure(&cfg)
	}
	if scenario.Episodes > 0 {
		cfg.NumEpisodes = scenario.Episodes
	}
	if scenario.Seed != nil {
		cfg.RandomSeed = *scenario.Seed
	}
	if err := cfg.Validate(); err != nil {
		r.t.Fatalf("%s: invalid configuration: %v", scenario.Name, err)
	}
	return cfg
}
