package simulation

import (
	"fmt"

	"github.com/nvandessel/acpsim/internal/config"
)

// SweepPoint is one latency window of a sweep and its outcome.
type SweepPoint struct {
	Window    config.LatencyWindow
	Result    SimulationResult
	Advantage float64
}

// SweepLatency runs base once per latency window and records the ACP
// advantage of each. All points share base's seed, so episode i sees the
// same network at every window.
func (r *Runner) SweepLatency(base Scenario, windows ...config.LatencyWindow) []SweepPoint {
	r.t.Helper()
	points := make([]SweepPoint, 0, len(windows))
	for _, w := range windows {
		s := base
		s.Name = fmt.Sprintf("%s/latency-%d-%d", base.Name, w.Min, w.Max)
		configure := base.Configure
		s.Configure = func(cfg *config.SimulationConfig) {
			if configure != nil {
				configure(cfg)
			}
			cfg.LatencyWindow = w
		}
		res := r.Run(s)
		points = append(points, SweepPoint{Window: w, Result: res, Advantage: res.Advantage()})
	}
	return points
}

// Configured returns a copy of the default configuration with fn applied.
func Configured(fn func(cfg *config.SimulationConfig)) *config.SimulationConfig {
	cfg := config.DefaultSimulationConfig()
	if fn != nil {
		fn(&cfg)
	}
	return &cfg
}
