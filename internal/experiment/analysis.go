package experiment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/defender"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/stats"
)

// StrategyStats summarises one strategy's episodes.
type StrategyStats struct {
	Strategy string        `json:"strategy" yaml:"strategy"`
	Reward   stats.Summary `json:"reward" yaml:"reward"`
	MeanCI   stats.CI      `json:"mean_ci" yaml:"mean_ci"`

	MeanRestoreCount       float64 `json:"mean_restore_count" yaml:"mean_restore_count"`
	MeanDeceptions         float64 `json:"mean_deceptions" yaml:"mean_deceptions"`
	MeanExploitations      float64 `json:"mean_exploitations" yaml:"mean_exploitations"`
	MeanCompromisedRatio   float64 `json:"mean_compromised_ratio" yaml:"mean_compromised_ratio"`
	MeanAttackerConfidence float64 `json:"mean_attacker_confidence" yaml:"mean_attacker_confidence"`

	// Decisions is the number of recorded steps, each one defender decision.
	// RestoreRate is RESTORE_NODE decisions per decision and
	// ActionDistribution the share of every action, NO_OP included.
	Decisions          int                       `json:"decisions" yaml:"decisions"`
	RestoreRate        float64                   `json:"restore_rate" yaml:"restore_rate"`
	ActionDistribution map[models.Action]float64 `json:"action_distribution" yaml:"action_distribution"`
}

// Comparison contrasts a treatment strategy with the baseline.
// Positive differences and effect sizes favour the treatment.
type Comparison struct {
	Baseline       string           `json:"baseline" yaml:"baseline"`
	Treatment      string           `json:"treatment" yaml:"treatment"`
	MeanDifference stats.CI         `json:"mean_difference" yaml:"mean_difference"`
	CohensD        float64          `json:"cohens_d" yaml:"cohens_d"`
	CohensDCI      stats.CI         `json:"cohens_d_ci" yaml:"cohens_d_ci"`
	Test           stats.TestResult `json:"test" yaml:"test"`
	Power          float64          `json:"power" yaml:"power"`
	Significant    bool             `json:"significant" yaml:"significant"`

	// EffectSize labels CohensD: negligible, small, medium or large.
	EffectSize string `json:"effect_size" yaml:"effect_size"`

	// RequiredSampleSize is the per-group episode count that reaches
	// TargetPower at alpha for the observed effect; 0 when d is 0.
	RequiredSampleSize int `json:"required_sample_size,omitempty" yaml:"required_sample_size,omitempty"`

	// PercentImprovement is the mean difference relative to the baseline's
	// absolute mean. Nil when the baseline mean is 0.
	PercentImprovement *float64 `json:"percent_improvement,omitempty" yaml:"percent_improvement,omitempty"`

	// RestoreRateRatio is the baseline restore rate over the treatment's.
	// Nil when the treatment never restores.
	RestoreRateRatio *float64 `json:"restore_rate_ratio,omitempty" yaml:"restore_rate_ratio,omitempty"`

	// ConfidenceDegradation is how much lower, in percent, the attacker's
	// final confidence ends against the treatment than against the baseline.
	ConfidenceDegradation float64 `json:"confidence_degradation" yaml:"confidence_degradation"`
}

// TargetPower is the power RequiredSampleSize is computed for.
const TargetPower = 0.8

// Analysis is the statistical summary of a run.
type Analysis struct {
	Strategies []StrategyStats            `json:"strategies" yaml:"strategies"`
	Comparison *Comparison                `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Warnings   []models.AssumptionWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Strategy returns the summary for name.
func (a *Analysis) Strategy(name string) (StrategyStats, bool) {
	for _, s := range a.Strategies {
		if s.Strategy == name {
			return s, true
		}
	}
	return StrategyStats{}, false
}

// Analyze summarises results per strategy and compares OptimisticACP with
// the Pessimistic baseline. All resampling draws from rng.
func Analyze(results []models.EpisodeResult, cfg config.SimulationConfig, rng *rand.Rand) (*Analysis, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("analyze: %w: no episode results", stats.ErrInsufficientData)
	}

	byStrategy := make(map[string][]models.EpisodeResult)
	for _, r := range results {
		byStrategy[r.Strategy] = append(byStrategy[r.Strategy], r)
	}

	a := &Analysis{}
	for _, kind := range defender.AllKinds() {
		group := byStrategy[kind.String()]
		if len(group) == 0 {
			continue
		}
		s, err := summarise(kind.String(), group, cfg, rng)
		if err != nil {
			return nil, err
		}
		a.Strategies = append(a.Strategies, s)
	}

	base, _ := a.Strategy(defender.KindPessimistic.String())
	treat, _ := a.Strategy(defender.KindOptimisticACP.String())
	baseline := models.Rewards(byStrategy[base.Strategy])
	treatment := models.Rewards(byStrategy[treat.Strategy])
	if len(baseline) < 2 || len(treatment) < 2 {
		a.Warnings = append(a.Warnings, models.AssumptionWarning{
			Assumption: "comparison",
			Detail:     fmt.Sprintf("need at least 2 episodes per strategy, got %d and %d", len(baseline), len(treatment)),
		})
		return a, nil
	}

	cmp, err := compare(baseline, treatment, cfg, rng)
	if err != nil {
		return nil, err
	}
	contrast(cmp, base, treat)
	a.Comparison = cmp
	a.Warnings = append(a.Warnings, cmp.Test.Warnings...)
	return a, nil
}

func summarise(name string, group []models.EpisodeResult, cfg config.SimulationConfig, rng *rand.Rand) (StrategyStats, error) {
	rewards := models.Rewards(group)
	ci, err := stats.BootstrapCI(rewards, stats.Mean, cfg.BootstrapSamples, cfg.ConfidenceLevel, rng)
	if err != nil {
		return StrategyStats{}, fmt.Errorf("analyze %s: %w", name, err)
	}

	s := StrategyStats{
		Strategy:           name,
		Reward:             stats.Describe(rewards),
		MeanCI:             ci,
		ActionDistribution: make(map[models.Action]float64),
	}
	n := float64(len(group))
	counts := make(map[models.Action]int)
	for _, r := range group {
		s.MeanRestoreCount += float64(r.RestoreNodeCount) / n
		s.MeanDeceptions += float64(r.DeceptionsDeployed) / n
		s.MeanExploitations += float64(r.CognitiveLatencyExploitations) / n
		s.MeanCompromisedRatio += r.FinalCompromisedRatio / n
		s.MeanAttackerConfidence += r.FinalAttackerConfidence / n

		s.Decisions += r.Steps
		acted := 0
		for action, c := range r.ActionCounts {
			counts[action] += c
			acted += c
		}
		counts[models.ActionNoOp] += max(r.Steps-acted, 0)
	}

	if s.Decisions > 0 {
		for _, action := range models.AllActions() {
			s.ActionDistribution[action] = float64(counts[action]) / float64(s.Decisions)
		}
		s.RestoreRate = s.ActionDistribution[models.ActionRestoreNode]
	}
	return s, nil
}

// contrast fills the descriptive baseline-versus-treatment ratios.
func contrast(c *Comparison, base, treat StrategyStats) {
	if m := base.Reward.Mean; m != 0 {
		pct := (treat.Reward.Mean - m) / math.Abs(m) * 100
		c.PercentImprovement = &pct
	}
	if treat.RestoreRate > 0 {
		ratio := base.RestoreRate / treat.RestoreRate
		c.RestoreRateRatio = &ratio
	}
	if conf := base.MeanAttackerConfidence; conf > 0 {
		c.ConfidenceDegradation = (1 - treat.MeanAttackerConfidence/conf) * 100
	}
}

func compare(baseline, treatment []float64, cfg config.SimulationConfig, rng *rand.Rand) (*Comparison, error) {
	diff := func(t, b []float64) float64 { return stats.Mean(t) - stats.Mean(b) }
	diffCI, err := stats.BootstrapPairCI(treatment, baseline, diff, cfg.BootstrapSamples, cfg.ConfidenceLevel, rng)
	if err != nil {
		return nil, fmt.Errorf("analyze mean difference: %w", err)
	}
	dCI, err := stats.BootstrapPairCI(treatment, baseline, stats.CohensDSamples, cfg.BootstrapSamples, cfg.ConfidenceLevel, rng)
	if err != nil {
		return nil, fmt.Errorf("analyze effect size: %w", err)
	}
	test, err := stats.HypothesisTest(treatment, baseline)
	if err != nil {
		return nil, fmt.Errorf("analyze hypothesis test: %w", err)
	}

	d := dCI.Point
	required := 0
	if d != 0 {
		if n, err := stats.RequiredSampleSize(d, cfg.Alpha, TargetPower); err == nil {
			required = n
		}
	}
	return &Comparison{
		Baseline:       defender.KindPessimistic.String(),
		Treatment:      defender.KindOptimisticACP.String(),
		MeanDifference: diffCI,
		CohensD:        d,
		CohensDCI:      dCI,
		Test:           test,
		Power:          stats.PowerAnalysis(d, cfg.Alpha, min(len(baseline), len(treatment))),
		Significant:    test.Significant(cfg.Alpha),

		EffectSize:         stats.InterpretCohensD(d),
		RequiredSampleSize: required,
	}, nil
}
