package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored experiment runs",
		Long: `List, show, export, and delete runs kept in the result store.

Examples:
  acpsim runs list --limit 5
  acpsim runs show <run-id>
  acpsim runs show <run-id> --results --strategy optimistic_acp --json
  acpsim runs export <run-id> --out run.yaml
  acpsim runs delete <run-id>`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

// withStore opens the configured result store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no result store configured (set store.path or --db)")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer s.Close()
	return fn(ctx, s)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, s *store.Store) error {
				runs, err := s.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"runs":  runs,
						"count": len(runs),
					})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN ID\tCREATED\tTOPOLOGY\tNODES\tEPISODES\tSEED\tSUCCEEDED\tFAILED\t")
				for _, r := range runs {
					status := fmt.Sprintf("%d/%d", r.Succeeded, r.Planned)
					if r.Cancelled {
						status += " (cancelled)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%d\t\n",
						r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TopologyType, r.NumNodes,
						r.NumEpisodes, r.RandomSeed, status, r.Failed)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withResults, _ := cmd.Flags().GetBool("results")
			strategy, _ := cmd.Flags().GetString("strategy")
			return withStore(cmd, func(ctx context.Context, s *store.Store) error {
				report, err := s.LoadRun(ctx, args[0])
				if err != nil {
					return err
				}
				if !withResults {
					report.RawResults = nil
				} else if strategy != "" {
					report.RawResults = report.ResultsFor(strategy)
				}

				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				w := cmd.OutOrStdout()
				fmt.Fprint(w, experiment.FormatMarkdown(report))
				if len(report.Failures) > 0 {
					fmt.Fprintln(w, "\n## Failures")
					fmt.Fprintln(w)
					for _, f := range report.Failures {
						fmt.Fprintf(w, "- episode %d (%s, seed %d): %s\n", f.EpisodeIndex, f.Strategy, f.Seed, f.Error)
					}
				}
				if withResults {
					fmt.Fprintln(w, "\n## Episodes")
					fmt.Fprintln(w)
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "EPISODE\tSTRATEGY\tSEED\tREWARD\tSTEPS\tRESTORES\tDECEPTIONS\tEND\t")
					for _, r := range report.RawResults {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\t%d\t%d\t%d\t%s\t\n",
							r.EpisodeIndex, r.Strategy, r.Seed, r.TotalReward, r.Steps,
							r.RestoreNodeCount, r.DeceptionsDeployed, r.TerminationReason)
					}
					return tw.Flush()
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("results", false, "Include per-episode results")
	cmd.Flags().String("strategy", "", "Only show results of this strategy")
	return cmd
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a stored run as a JSON or YAML report bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			return withStore(cmd, func(ctx context.Context, s *store.Store) error {
				report, err := s.LoadRun(ctx, args[0])
				if err != nil {
					return err
				}
				if path == "" {
					data, err := store.EncodeBundle(report, store.FormatJSON)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := store.WriteBundle(path, report); err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"run_id": args[0],
						"path":   path,
						"format": store.FormatForPath(path),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s\n", args[0], path)
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Bundle file (.json or .yaml); stdout as JSON when empty")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *store.Store) error {
				if err := s.DeleteRun(ctx, args[0]); err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"status": "deleted",
						"run_id": args[0],
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}
