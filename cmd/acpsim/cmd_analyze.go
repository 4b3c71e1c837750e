package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/randutil"
	"github.com/nvandessel/acpsim/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <run-id | bundle-file>",
		Short: "Re-run the statistical analysis of a finished experiment",
		Long: `Recompute descriptive statistics, confidence intervals, effect size, and
hypothesis tests for a stored run or a report bundle, optionally with a
different confidence level, alpha, or bootstrap sample count. Episodes are
not re-simulated.

Examples:
  acpsim analyze 3f1c0a4e-...                      # stored run
  acpsim analyze report.yaml --confidence 0.99
  acpsim analyze report.json --bootstrap 20000 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadReport(cmd, args[0])
			if err != nil {
				return err
			}

			cfg := report.ConfigSnapshot
			flags := cmd.Flags()
			if flags.Changed("confidence") {
				cfg.ConfidenceLevel, _ = flags.GetFloat64("confidence")
			}
			if flags.Changed("alpha") {
				cfg.Alpha, _ = flags.GetFloat64("alpha")
			}
			if flags.Changed("bootstrap") {
				cfg.BootstrapSamples, _ = flags.GetInt("bootstrap")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			analysis, err := experiment.Analyze(report.RawResults, cfg,
				randutil.Derive(cfg.RandomSeed, randutil.StreamBootstrap))
			if err != nil {
				return err
			}
			report.ConfigSnapshot = cfg
			report.Analysis = analysis

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":   report.VersionMetadata.RunID,
					"counts":   report.Counts,
					"analysis": analysis,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), experiment.FormatMarkdown(report))
			return nil
		},
	}

	cmd.Flags().Float64("confidence", 0, "Confidence level for intervals (default from the run)")
	cmd.Flags().Float64("alpha", 0, "Significance level (default from the run)")
	cmd.Flags().Int("bootstrap", 0, "Bootstrap resamples (default from the run)")
	return cmd
}

// loadReport reads a bundle file when ref names an existing file, otherwise
// the stored run with that id.
func loadReport(cmd *cobra.Command, ref string) (*experiment.Report, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return store.ReadBundle(ref)
	}
	var report *experiment.Report
	err := withStore(cmd, func(ctx context.Context, s *store.Store) error {
		var err error
		report, err = s.LoadRun(ctx, ref)
		return err
	})
	return report, err
}
