package simulation

import (
	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name string

	// Config is the starting configuration. Nil means
	// config.DefaultSimulationConfig().
	Config *config.SimulationConfig

	// Configure, when non-nil, adjusts the configuration before the run.
	Configure func(cfg *config.SimulationConfig)

	// Episodes per strategy; 0 keeps the configured value.
	Episodes int

	// Seed, when non-nil, replaces the configured random seed.
	Seed *int64

	// Progress, when non-nil, receives the runner's progress callbacks.
	Progress func(done, planned int)
}

// SimulationResult captures a finished scenario as read back from the store.
type SimulationResult struct {
	Name   string
	Report *experiment.Report
	Store  *store.Store
}

// Results returns the episodes of one strategy in episode order.
func (r SimulationResult) Results(strategy string) []models.EpisodeResult {
	return r.Report.ResultsFor(strategy)
}

// MeanReward is the mean total reward of strategy, or NaN without results.
func (r SimulationResult) MeanReward(strategy string) float64 {
	return mean(models.Rewards(r.Results(strategy)))
}

// Advantage is the ACP mean reward minus the Pessimistic mean reward.
func (r SimulationResult) Advantage() float64 {
	return r.MeanReward(Optimistic) - r.MeanReward(Pessimistic)
}

// Strategy names as they appear in results.
const (
	Pessimistic = "pessimistic"
	Optimistic  = "optimistic_acp"
)

// Int64 returns a pointer to v, for Scenario.Seed.
func Int64(v int64) *int64 { return &v }
