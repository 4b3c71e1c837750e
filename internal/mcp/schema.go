package mcp

import (
	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/store"
)

// RunConfigurationInput defines the input for the acpsim_run_configuration tool.
type RunConfigurationInput struct {
	Config   map[string]any `json:"config,omitempty" jsonschema:"Simulation parameters overriding the server defaults, keyed by their YAML names (e.g. acp_strength, num_nodes, latency_window)"`
	Defender string         `json:"defender,omitempty" jsonschema:"Defender strategy: pessimistic or optimistic_acp"`
	Seed     *int64         `json:"seed,omitempty" jsonschema:"Random seed for the episode"`
}

// RunConfigurationOutput defines the output for the acpsim_run_configuration tool.
type RunConfigurationOutput struct {
	Result models.EpisodeResult `json:"result" jsonschema:"Outcome of the single episode"`
}

// RunExperimentInput defines the input for the acpsim_run_experiment tool.
type RunExperimentInput struct {
	Config   map[string]any `json:"config,omitempty" jsonschema:"Simulation parameters overriding the server defaults"`
	Episodes int            `json:"episodes,omitempty" jsonschema:"Episodes per strategy (overrides config.num_episodes)"`
	NoSave   bool           `json:"no_save,omitempty" jsonschema:"Do not persist the report in the result store"`
}

// RunExperimentOutput defines the output for the acpsim_run_experiment tool.
type RunExperimentOutput struct {
	RunID     string                  `json:"run_id" jsonschema:"Identifier of the run"`
	Counts    experiment.Counts       `json:"counts" jsonschema:"Planned, succeeded and failed episode counts"`
	Cancelled bool                    `json:"cancelled" jsonschema:"Whether the run was interrupted"`
	Saved     bool                    `json:"saved" jsonschema:"Whether the report was stored"`
	Analysis  *experiment.Analysis    `json:"analysis,omitempty" jsonschema:"Statistical comparison of the strategies"`
	Failures  []models.EpisodeFailure `json:"failures,omitempty" jsonschema:"Episodes that were aborted"`
	Message   string                  `json:"message" jsonschema:"Human-readable summary"`
}

// ListRunsInput defines the input for the acpsim_list_runs tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return (default 20)"`
}

// ListRunsOutput defines the output for the acpsim_list_runs tool.
type ListRunsOutput struct {
	Runs  []store.RunSummary `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int                `json:"count" jsonschema:"Number of runs returned"`
}

// GetRunInput defines the input for the acpsim_get_run tool.
type GetRunInput struct {
	RunID          string `json:"run_id" jsonschema:"Identifier of the run"`
	IncludeResults bool   `json:"include_results,omitempty" jsonschema:"Include raw episode results"`
	Strategy       string `json:"strategy,omitempty" jsonschema:"Only include results of this strategy"`
}

// GetRunOutput defines the output for the acpsim_get_run tool.
type GetRunOutput struct {
	VersionMetadata experiment.VersionMetadata `json:"version_metadata" jsonschema:"Build and run identification"`
	Config          config.SimulationConfig    `json:"config" jsonschema:"Configuration snapshot"`
	Counts          experiment.Counts          `json:"counts" jsonschema:"Episode counts"`
	Cancelled       bool                       `json:"cancelled" jsonschema:"Whether the run was interrupted"`
	Analysis        *experiment.Analysis       `json:"analysis,omitempty" jsonschema:"Statistical comparison of the strategies"`
	Failures        []models.EpisodeFailure    `json:"failures,omitempty" jsonschema:"Episodes that were aborted"`
	Results         []models.EpisodeResult     `json:"results,omitempty" jsonschema:"Raw episode results when requested"`
}

// BackupInput defines the input for the acpsim_backup tool.
type BackupInput struct {
	Path string `json:"path,omitempty" jsonschema:"Archive file name or path inside the backup directory (default: timestamped name)"`
}

// BackupOutput defines the output for the acpsim_backup tool.
type BackupOutput struct {
	Path         string `json:"path" jsonschema:"Where the archive was written"`
	RunCount     int    `json:"run_count" jsonschema:"Number of runs archived"`
	EpisodeCount int    `json:"episode_count" jsonschema:"Number of episode results archived"`
	Message      string `json:"message" jsonschema:"Human-readable summary"`
}

// ValidateConfigInput defines the input for the acpsim_validate_config tool.
type ValidateConfigInput struct {
	Config map[string]any `json:"config,omitempty" jsonschema:"Simulation parameters overriding the server defaults"`
}

// ValidateConfigOutput defines the output for the acpsim_validate_config tool.
type ValidateConfigOutput struct {
	Valid   bool                     `json:"valid" jsonschema:"Whether the configuration is valid"`
	Field   string                   `json:"field,omitempty" jsonschema:"First offending field"`
	Message string                   `json:"message,omitempty" jsonschema:"Validation error"`
	Config  *config.SimulationConfig `json:"config,omitempty" jsonschema:"The resolved configuration when valid"`
}
