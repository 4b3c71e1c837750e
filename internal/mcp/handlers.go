package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/acpsim/internal/backup"
	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/pathutil"
	"github.com/nvandessel/acpsim/internal/ratelimit"
)

// runURIPrefix addresses stored runs as resources.
const runURIPrefix = "acpsim://runs/"

// defaultListLimit is the number of runs acpsim_list_runs returns by default.
const defaultListLimit = 20

// registerTools registers all acpsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRunConfiguration,
		Description: "Run one simulation episode for a single configuration (a covering-array row) and return its result",
	}, s.handleRunConfiguration)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRunExperiment,
		Description: "Run a Pessimistic vs OptimisticACP experiment, store the report and return the statistical analysis",
	}, s.handleRunExperiment)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolListRuns,
		Description: "List stored experiment runs, newest first",
	}, s.handleListRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolGetRun,
		Description: "Get a stored experiment report by run id",
	}, s.handleGetRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolValidateConfig,
		Description: "Validate simulation parameters without running anything",
	}, s.handleValidateConfig)

	if s.backupDir != nil {
		sdk.AddTool(s.server, &sdk.Tool{
			Name:        ratelimit.ToolBackup,
			Description: "Archive every stored run to a compressed, checksummed file in the backup directory",
		}, s.handleBackup)
	}
}

// registerResources exposes stored runs as markdown summaries.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runURIPrefix + "{id}",
		Name:        "acpsim-run",
		Description: "Markdown summary of a stored experiment run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

// handleRunResource renders a stored run. URI format: acpsim://runs/{id}
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	report, err := s.store.LoadRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     experiment.FormatMarkdown(report),
			},
		},
	}, nil
}

// resolveConfig applies tool overrides to the server defaults and validates
// the result.
func (s *Server) resolveConfig(overrides map[string]any) (config.SimulationConfig, error) {
	cfg, err := s.defaults.WithOverrides(overrides)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *Server) handleRunConfiguration(ctx context.Context, req *sdk.CallToolRequest, args RunConfigurationInput) (_ *sdk.CallToolResult, _ RunConfigurationOutput, retErr error) {
	start := time.Now()
	params := map[string]any{"config": args.Config, "defender": args.Defender}
	if args.Seed != nil {
		params["seed"] = *args.Seed
	}
	defer func() {
		s.auditTool(ratelimit.ToolRunConfiguration, start, retErr, sanitizeToolParams(params), "")
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRunConfiguration); err != nil {
		return nil, RunConfigurationOutput{}, err
	}

	cfg, err := s.defaults.WithOverrides(args.Config)
	if err != nil {
		return nil, RunConfigurationOutput{}, err
	}
	if args.Defender != "" {
		cfg.Defender = args.Defender
	}
	if args.Seed != nil {
		cfg.RandomSeed = *args.Seed
	}

	res, err := experiment.RunSingleConfiguration(ctx, cfg,
		experiment.WithLogger(s.logger), experiment.WithMetrics(s.metrics))
	if err != nil {
		return nil, RunConfigurationOutput{}, err
	}
	return nil, RunConfigurationOutput{Result: res}, nil
}

func (s *Server) handleRunExperiment(ctx context.Context, req *sdk.CallToolRequest, args RunExperimentInput) (_ *sdk.CallToolResult, _ RunExperimentOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		s.auditTool(ratelimit.ToolRunExperiment, start, retErr, sanitizeToolParams(map[string]any{
			"config": args.Config, "episodes": args.Episodes, "no_save": args.NoSave,
		}), runID)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRunExperiment); err != nil {
		return nil, RunExperimentOutput{}, err
	}

	cfg, err := s.defaults.WithOverrides(args.Config)
	if err != nil {
		return nil, RunExperimentOutput{}, err
	}
	if args.Episodes > 0 {
		cfg.NumEpisodes = args.Episodes
	}
	if cfg.NumEpisodes > s.maxEpisodes {
		return nil, RunExperimentOutput{}, models.NewConfigurationError("num_episodes",
			"at most %d episodes per strategy may be run from a tool call, got %d", s.maxEpisodes, cfg.NumEpisodes)
	}

	runner := experiment.NewRunner(cfg,
		experiment.WithLogger(s.logger),
		experiment.WithMetrics(s.metrics),
		experiment.WithVersion(s.version, s.commit))
	report, err := runner.Run(ctx)
	if err != nil {
		return nil, RunExperimentOutput{}, err
	}
	runID = report.VersionMetadata.RunID

	out := RunExperimentOutput{
		RunID:     runID,
		Counts:    report.Counts,
		Cancelled: report.Cancelled,
		Analysis:  report.Analysis,
		Failures:  report.Failures,
	}
	if !args.NoSave {
		if err := s.store.SaveReport(ctx, report); err != nil {
			return nil, RunExperimentOutput{}, fmt.Errorf("failed to save report: %w", err)
		}
		out.Saved = true
	}
	out.Message = experimentMessage(report, out.Saved)
	return nil, out, nil
}

// experimentMessage is the one-line result shown to the caller.
func experimentMessage(r *experiment.Report, saved bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %d/%d episodes succeeded", r.VersionMetadata.RunID, r.Counts.Succeeded, r.Counts.Planned)
	if r.Counts.Failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.Counts.Failed)
	}
	if r.Cancelled {
		sb.WriteString(", cancelled")
	}
	if r.Analysis != nil && r.Analysis.Comparison != nil {
		c := r.Analysis.Comparison
		fmt.Fprintf(&sb, ". %s - %s mean reward difference %.2f (d = %.2f %s, p = %.3g)",
			c.Treatment, c.Baseline, c.MeanDifference.Point, c.CohensD, c.EffectSize, c.Test.PValue)
	}
	if saved {
		sb.WriteString(". Stored.")
	}
	return sb.String()
}

func (s *Server) handleListRuns(ctx context.Context, req *sdk.CallToolRequest, args ListRunsInput) (_ *sdk.CallToolResult, _ ListRunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolListRuns, start, retErr, sanitizeToolParams(map[string]any{"limit": args.Limit}), "")
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolListRuns); err != nil {
		return nil, ListRunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	return nil, ListRunsOutput{Runs: runs, Count: len(runs)}, nil
}

func (s *Server) handleGetRun(ctx context.Context, req *sdk.CallToolRequest, args GetRunInput) (_ *sdk.CallToolResult, _ GetRunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolGetRun, start, retErr, sanitizeToolParams(map[string]any{
			"run_id": args.RunID, "include_results": args.IncludeResults, "strategy": args.Strategy,
		}), args.RunID)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolGetRun); err != nil {
		return nil, GetRunOutput{}, err
	}
	if args.RunID == "" {
		return nil, GetRunOutput{}, fmt.Errorf("'run_id' parameter is required")
	}

	report, err := s.store.LoadRun(ctx, args.RunID)
	if err != nil {
		return nil, GetRunOutput{}, err
	}

	out := GetRunOutput{
		VersionMetadata: report.VersionMetadata,
		Config:          report.ConfigSnapshot,
		Counts:          report.Counts,
		Cancelled:       report.Cancelled,
		Analysis:        report.Analysis,
		Failures:        report.Failures,
	}
	if args.IncludeResults {
		out.Results = report.RawResults
		if args.Strategy != "" {
			out.Results = report.ResultsFor(args.Strategy)
		}
	}
	return nil, out, nil
}

func (s *Server) handleValidateConfig(ctx context.Context, req *sdk.CallToolRequest, args ValidateConfigInput) (_ *sdk.CallToolResult, _ ValidateConfigOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolValidateConfig, start, retErr, sanitizeToolParams(map[string]any{"config": args.Config}), "")
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolValidateConfig); err != nil {
		return nil, ValidateConfigOutput{}, err
	}

	cfg, err := s.resolveConfig(args.Config)
	if err != nil {
		var cfgErr *models.ConfigurationError
		if !errors.As(err, &cfgErr) {
			return nil, ValidateConfigOutput{}, err
		}
		return nil, ValidateConfigOutput{Valid: false, Field: cfgErr.Field, Message: cfgErr.Message}, nil
	}
	return nil, ValidateConfigOutput{Valid: true, Config: &cfg}, nil
}

func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolBackup, start, retErr, sanitizeToolParams(map[string]any{
			"path": pathutil.RedactPath(args.Path),
		}), "")
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolBackup); err != nil {
		return nil, BackupOutput{}, err
	}
	if s.backupDir == nil {
		return nil, BackupOutput{}, fmt.Errorf("backups are not enabled on this server")
	}

	path := backup.GenerateBackupPath(s.backupDir.Base())
	if args.Path != "" {
		resolved, err := s.backupDir.Resolve(args.Path)
		if err != nil {
			return nil, BackupOutput{}, fmt.Errorf("backup path rejected: %w", err)
		}
		path = resolved
	}

	archive, err := backup.Backup(ctx, s.store, path)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}
	return nil, BackupOutput{
		Path:         path,
		RunCount:     len(archive.Reports),
		EpisodeCount: archive.EpisodeCount(),
		Message:      fmt.Sprintf("Archived %d runs (%d episodes) to %s", len(archive.Reports), archive.EpisodeCount(), pathutil.RedactPath(path)),
	}, nil
}
