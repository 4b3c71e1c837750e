package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/store"
)

// runOutput is the JSON shape of `acpsim run`.
type runOutput struct {
	RunID     string               `json:"run_id"`
	Counts    experiment.Counts    `json:"counts"`
	Cancelled bool                 `json:"cancelled"`
	Saved     bool                 `json:"saved"`
	Store     string               `json:"store,omitempty"`
	Bundle    string               `json:"bundle,omitempty"`
	Analysis  *experiment.Analysis `json:"analysis,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Pessimistic vs OptimisticACP experiment",
		Long: `Run NumEpisodes seeded episodes for each defender, compare the two
statistically, and store the report.

Interrupting the run (Ctrl+C) stops dispatching new episodes; the partial
report is still analysed and stored.

Examples:
  acpsim run                                     # reference experiment
  acpsim run --episodes 200 --seed 7
  acpsim run --set latency_window.max=0 --set acp_strength=0.9
  acpsim run --out report.yaml --no-save
  acpsim run --metrics-addr :9464 --progress`,
		Args: cobra.NoArgs,
		RunE: runExperimentCmd,
	}

	cmd.Flags().Int("episodes", 0, "Episodes per strategy (default from config)")
	cmd.Flags().Int64("seed", 0, "Base random seed (default from config)")
	cmd.Flags().Int("workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
	cmd.Flags().Bool("fixed-topology", false, "Hold the network fixed across episodes")
	cmd.Flags().StringArray("set", nil, "Override a simulation parameter as key=value (repeatable)")
	cmd.Flags().StringP("out", "o", "", "Also write the report bundle to this file (.json or .yaml)")
	cmd.Flags().Bool("no-save", false, "Do not store the report in the result store")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().Bool("progress", false, "Print progress to stderr")

	return cmd
}

func runExperimentCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sim, err := simulationFromFlags(cmd, cfg.Simulation)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

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

	trace := logging.NewTraceLogger(cfg.TraceDir(), cfg.Logging.Level)
	defer trace.Close()

	opts := []experiment.Option{
		experiment.WithLogger(logger),
		experiment.WithMetrics(reg),
		experiment.WithTraceLogger(trace),
		experiment.WithVersion(version, commit),
	}
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		opts = append(opts, experiment.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}

	report, err := experiment.NewRunner(sim, opts...).Run(ctx)
	if err != nil {
		return err
	}

	out := runOutput{
		RunID:     report.VersionMetadata.RunID,
		Counts:    report.Counts,
		Cancelled: report.Cancelled,
		Analysis:  report.Analysis,
	}

	noSave, _ := cmd.Flags().GetBool("no-save")
	if !noSave && cfg.Store.Path != "" {
		// The run context may be cancelled; storing the partial report must not be.
		saveCtx := context.WithoutCancel(ctx)
		s, err := store.Open(saveCtx, cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer s.Close()
		if err := s.SaveReport(saveCtx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		out.Saved = true
		out.Store = s.Path()
	}

	if path, _ := cmd.Flags().GetString("out"); path != "" {
		if err := store.WriteBundle(path, report); err != nil {
			return err
		}
		out.Bundle = path
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	w := cmd.OutOrStdout()
	fmt.Fprint(w, experiment.FormatMarkdown(report))
	fmt.Fprintln(w)
	if out.Saved {
		fmt.Fprintf(w, "Stored run %s in %s\n", out.RunID, out.Store)
	}
	if out.Bundle != "" {
		fmt.Fprintf(w, "Wrote report bundle to %s\n", out.Bundle)
	}
	return nil
}

// simulationFromFlags applies --set overrides and the dedicated flags a
// command defines, then validates.
func simulationFromFlags(cmd *cobra.Command, sim config.SimulationConfig) (config.SimulationConfig, error) {
	flags := cmd.Flags()

	if flags.Lookup("set") != nil {
		sets, _ := flags.GetStringArray("set")
		overrides, err := config.ParseOverrides(sets)
		if err != nil {
			return sim, err
		}
		if sim, err = sim.WithOverrides(overrides); err != nil {
			return sim, err
		}
	}

	if flags.Changed("episodes") {
		sim.NumEpisodes, _ = flags.GetInt("episodes")
	}
	if flags.Changed("seed") {
		sim.RandomSeed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("workers") {
		sim.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("fixed-topology") {
		sim.FixedTopology, _ = flags.GetBool("fixed-topology")
	}
	if flags.Changed("defender") {
		sim.Defender, _ = flags.GetString("defender")
	}

	if err := sim.Validate(); err != nil {
		return sim, err
	}
	return sim, nil
}

// progressPrinter reports roughly every 5% of the planned episodes.
func progressPrinter(w io.Writer) func(done, planned int) {
	var mu sync.Mutex
	return func(done, planned int) {
		step := max(planned/20, 1)
		if done%step != 0 && done != planned {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "progress: %d/%d episodes (%.0f%%)\n", done, planned, 100*float64(done)/float64(planned))
	}
}
