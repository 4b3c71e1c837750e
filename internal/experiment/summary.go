package experiment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nvandessel/acpsim/internal/models"
)

// FormatMarkdown renders a human-readable summary of report.
func FormatMarkdown(r *Report) string {
	var sb strings.Builder
	vm := r.VersionMetadata
	cfg := r.ConfigSnapshot

	fmt.Fprintf(&sb, "# Experiment %s\n\n", vm.RunID)
	fmt.Fprintf(&sb, "- created: %s (acpsim %s, %s)\n", vm.CreatedAt.Format("2006-01-02 15:04:05 MST"), vm.Version, vm.GoVersion)
	fmt.Fprintf(&sb, "- topology: %s, %d nodes, connectivity %.2f", cfg.TopologyType, cfg.NumNodes, cfg.Connectivity)
	if cfg.FixedTopology {
		sb.WriteString(" (fixed)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "- latency window: [%d, %d] ticks, acp strength %.2f, seed %d\n",
		cfg.LatencyWindow.Min, cfg.LatencyWindow.Max, cfg.ACPStrength, cfg.RandomSeed)
	if cfg.WarmupSteps > 0 {
		fmt.Fprintf(&sb, "- steps: %d recorded after %d warmup\n", cfg.MaxSteps, cfg.WarmupSteps)
	}
	fmt.Fprintf(&sb, "- episodes: %d succeeded, %d failed of %d planned", r.Counts.Succeeded, r.Counts.Failed, r.Counts.Planned)
	if r.Cancelled {
		sb.WriteString(" (cancelled)")
	}
	sb.WriteString("\n")

	a := r.Analysis
	if a == nil {
		sb.WriteString("\nNo analysis available.\n")
		return sb.String()
	}

	sb.WriteString("\n## Strategies\n\n")
	fmt.Fprintf(&sb, "| strategy | n | mean reward | %s CI | median | restores | restore rate | deceptions | exploitations | attacker confidence |\n",
		percent(cfg.ConfidenceLevel))
	sb.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, s := range a.Strategies {
		fmt.Fprintf(&sb, "| %s | %d | %.2f | [%.2f, %.2f] | %.2f | %.2f | %.3f | %.2f | %.2f | %.3f |\n",
			s.Strategy, s.Reward.N, s.Reward.Mean, s.MeanCI.Lower, s.MeanCI.Upper, s.Reward.Median,
			s.MeanRestoreCount, s.RestoreRate, s.MeanDeceptions, s.MeanExploitations, s.MeanAttackerConfidence)
	}

	sb.WriteString("\n## Action distribution\n\n")
	sb.WriteString("| strategy |")
	for _, action := range models.AllActions() {
		fmt.Fprintf(&sb, " %s |", action)
	}
	sb.WriteString("\n|---|" + strings.Repeat("---|", len(models.AllActions())) + "\n")
	for _, s := range a.Strategies {
		fmt.Fprintf(&sb, "| %s |", s.Strategy)
		for _, action := range models.AllActions() {
			fmt.Fprintf(&sb, " %.1f%% |", s.ActionDistribution[action]*100)
		}
		sb.WriteString("\n")
	}

	if c := a.Comparison; c != nil {
		sb.WriteString("\n## Comparison\n\n")
		fmt.Fprintf(&sb, "- %s vs %s: mean difference %.2f [%.2f, %.2f]\n",
			c.Treatment, c.Baseline, c.MeanDifference.Point, c.MeanDifference.Lower, c.MeanDifference.Upper)
		if c.PercentImprovement != nil {
			fmt.Fprintf(&sb, "- improvement: %.1f%%\n", *c.PercentImprovement)
		}
		fmt.Fprintf(&sb, "- Cohen's d: %.3f [%.3f, %.3f] (%s)\n", c.CohensD, c.CohensDCI.Lower, c.CohensDCI.Upper, c.EffectSize)
		fmt.Fprintf(&sb, "- %s: statistic %.4g, p = %.4g", c.Test.TestName, c.Test.Statistic, c.Test.PValue)
		if c.Significant {
			fmt.Fprintf(&sb, " (significant at alpha = %.2g)", cfg.Alpha)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "- power: %.3f", c.Power)
		if c.RequiredSampleSize > 0 {
			fmt.Fprintf(&sb, " (%d episodes per strategy reach %.2g)", c.RequiredSampleSize, TargetPower)
		}
		sb.WriteString("\n")
		if c.RestoreRateRatio != nil {
			fmt.Fprintf(&sb, "- restore rate ratio (%s / %s): %.2fx\n", c.Baseline, c.Treatment, *c.RestoreRateRatio)
		} else {
			fmt.Fprintf(&sb, "- restore rate ratio: undefined, %s never restored\n", c.Treatment)
		}
		fmt.Fprintf(&sb, "- attacker confidence degradation: %.1f%%\n", c.ConfidenceDegradation)
	}

	if len(a.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range a.Warnings {
			fmt.Fprintf(&sb, "- %s: %s\n", w.Assumption, w.Detail)
		}
	}
	return sb.String()
}

// percent formats a level such as 0.95 or 0.975 as "95%" or "97.5%".
func percent(level float64) string {
	return strconv.FormatFloat(math.Round(level*1000)/10, 'f', -1, 64) + "%"
}
