package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/models"
)

func newSingleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "single",
		Short: "Run one episode for a single configuration",
		Long: `Run exactly one episode of one defender and print its result.

This is the entry point for covering-array sweeps: each array row is a
YAML or JSON file of simulation parameters passed with --row. Unset
parameters keep their defaults.

Examples:
  acpsim single --row rows/row-017.yaml
  acpsim single --defender pessimistic --seed 3 --json
  acpsim single --set latency_window.min=0 --set latency_window.max=0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sim := cfg.Simulation
			if row, _ := cmd.Flags().GetString("row"); row != "" {
				if sim, err = config.LoadSimulationConfig(row); err != nil {
					return err
				}
			}
			if sim, err = simulationFromFlags(cmd, sim); err != nil {
				return err
			}

			trace := logging.NewTraceLogger(cfg.TraceDir(), cfg.Logging.Level)
			defer trace.Close()

			res, err := experiment.RunSingleConfiguration(cmd.Context(), sim,
				experiment.WithLogger(newLogger(cmd, cfg)),
				experiment.WithTraceLogger(trace))
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printEpisode(cmd, res)
			return nil
		},
	}

	cmd.Flags().String("row", "", "Simulation parameter file (YAML or JSON) for this run")
	cmd.Flags().String("defender", "", "Defender strategy: pessimistic or optimistic_acp")
	cmd.Flags().Int64("seed", 0, "Episode seed (default from config)")
	cmd.Flags().StringArray("set", nil, "Override a simulation parameter as key=value (repeatable)")

	return cmd
}

func printEpisode(cmd *cobra.Command, res models.EpisodeResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Episode %d (%s, seed %d)\n", res.EpisodeIndex, res.Strategy, res.Seed)
	fmt.Fprintf(w, "  reward:        %.2f (cost %.2f, compromise %.2f, bonus %.2f)\n",
		res.TotalReward, res.CostComponent, res.CompromiseComponent, res.BonusComponent)
	fmt.Fprintf(w, "  steps:         %d (%s)\n", res.Steps, res.TerminationReason)
	if res.WarmupSteps > 0 {
		fmt.Fprintf(w, "  warmup steps:  %d\n", res.WarmupSteps)
	}
	fmt.Fprintf(w, "  compromised:   %.1f%% of %d nodes\n", 100*res.FinalCompromisedRatio, res.TopologyMetrics.Nodes)
	fmt.Fprintf(w, "  attacks:       %d attempted, %d succeeded, %d deceived\n",
		res.AttacksAttempted, res.AttacksSucceeded, res.AttacksDeceived)
	fmt.Fprintf(w, "  deceptions:    %d deployed, %d latency exploitations\n",
		res.DeceptionsDeployed, res.CognitiveLatencyExploitations)

	actions := make([]string, 0, len(res.ActionCounts))
	for a := range res.ActionCounts {
		actions = append(actions, string(a))
	}
	slices.Sort(actions)
	fmt.Fprintln(w, "  actions:")
	for _, a := range actions {
		act := models.Action(a)
		fmt.Fprintf(w, "    %-13s %4d  (cost %.1f)\n", a, res.ActionCounts[act], res.CostByAction[act])
	}
}
