package experiment

import (
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/models"
)

// VersionMetadata identifies the build and run that produced a report.
type VersionMetadata struct {
	Version   string    `json:"version" yaml:"version"`
	Commit    string    `json:"commit" yaml:"commit"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewVersionMetadata stamps a fresh run id.
func NewVersionMetadata(version, commit string, now time.Time) VersionMetadata {
	return VersionMetadata{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		RunID:     uuid.NewString(),
		CreatedAt: now.UTC(),
	}
}

// Counts summarises episode outcomes. Planned includes episodes skipped by
// cancellation; Total counts only episodes that ran.
type Counts struct {
	Planned   int `json:"planned" yaml:"planned"`
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Report is the aggregate bundle of an experiment run.
type Report struct {
	RawResults      []models.EpisodeResult  `json:"raw_results" yaml:"raw_results"`
	Failures        []models.EpisodeFailure `json:"failures" yaml:"failures"`
	Analysis        *Analysis               `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	ConfigSnapshot  config.SimulationConfig `json:"config_snapshot" yaml:"config_snapshot"`
	VersionMetadata VersionMetadata         `json:"version_metadata" yaml:"version_metadata"`
	Counts          Counts                  `json:"counts" yaml:"counts"`
	Cancelled       bool                    `json:"cancelled" yaml:"cancelled"`
}

// ResultsFor returns the results of one strategy in episode order.
func (r *Report) ResultsFor(strategy string) []models.EpisodeResult {
	var out []models.EpisodeResult
	for _, res := range r.RawResults {
		if res.Strategy == strategy {
			out = append(out, res)
		}
	}
	return out
}
