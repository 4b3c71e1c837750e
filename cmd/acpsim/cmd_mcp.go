package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/mcp"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/ratelimit"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve acpsim tools over the Model Context Protocol (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing:

  acpsim_run_configuration  run one episode for a single configuration
  acpsim_run_experiment     run and store a full experiment
  acpsim_list_runs          list stored runs
  acpsim_get_run            fetch a stored report
  acpsim_validate_config    validate simulation parameters
  acpsim_backup             archive the result store

Stored runs are also readable as acpsim://runs/{id} resources. Tool calls
are appended to audit.jsonl next to the result store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("the MCP server needs a result store (set store.path or --db)")
			}
			logger := newLogger(cmd, cfg)
			maxEpisodes, _ := cmd.Flags().GetInt("max-episodes")
			noLimit, _ := cmd.Flags().GetBool("no-rate-limit")

			reg := metrics.NewRegistry()
			addr := cfg.Metrics.Addr
			if cmd.Flags().Changed("metrics-addr") {
				addr, _ = cmd.Flags().GetString("metrics-addr")
			}
			if addr != "" {
				srv := metrics.NewServer(addr, reg, logger)
				if err := srv.Start(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				defer func() {
					stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
					defer stop()
					_ = srv.Stop(stopCtx)
				}()
			}

			serverCfg := &mcp.Config{
				Name:        "acpsim",
				Version:     version,
				Commit:      commit,
				StorePath:   cfg.Store.Path,
				Defaults:    cfg.Simulation,
				AuditDir:    filepath.Dir(cfg.Store.Path),
				BackupDir:   cfg.BackupDir(),
				MaxEpisodes: maxEpisodes,
				Logger:      logger,
				Metrics:     reg,
			}
			if noLimit {
				serverCfg.RateLimits = map[string]ratelimit.Rule{}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			server, err := mcp.NewServer(ctx, serverCfg)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.Run(ctx)
		},
	}

	cmd.Flags().Int("max-episodes", mcp.DefaultMaxEpisodes, "Maximum episodes per strategy for one tool call")
	cmd.Flags().Bool("no-rate-limit", false, "Disable per-tool rate limits")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
