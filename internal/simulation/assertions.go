package simulation

import (
	"math"
	"reflect"
	"testing"

	"github.com/nvandessel/acpsim/internal/defender"
	"github.com/nvandessel/acpsim/internal/models"
)

// AssertMeanRewardGreater asserts that strategy a's mean reward is strictly
// greater than strategy b's.
func AssertMeanRewardGreater(t *testing.T, result SimulationResult, a, b string) {
	t.Helper()
	ma, mb := result.MeanReward(a), result.MeanReward(b)
	if math.IsNaN(ma) || math.IsNaN(mb) {
		t.Errorf("AssertMeanRewardGreater: %s: missing results (%s=%v, %s=%v)", result.Name, a, ma, b, mb)
		return
	}
	if ma <= mb {
		t.Errorf("AssertMeanRewardGreater: %s: mean reward %s=%.4f not greater than %s=%.4f", result.Name, a, ma, b, mb)
	}
}

// AssertNeverSelects asserts that strategy never took action in any episode.
func AssertNeverSelects(t *testing.T, result SimulationResult, strategy string, action models.Action) {
	t.Helper()
	for _, r := range result.Results(strategy) {
		if n := r.ActionCounts[action]; n > 0 {
			t.Errorf("AssertNeverSelects: %s: episode %d: %s selected %s %d times", result.Name, r.EpisodeIndex, strategy, action, n)
		}
	}
}

// AssertRestoreCostExact asserts that every episode's restore cost is
// exactly -6 per RESTORE_NODE action.
func AssertRestoreCostExact(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, r := range result.Report.RawResults {
		want := -defender.CostRestoreNode * float64(r.RestoreNodeCount)
		if got := r.CostByAction[models.ActionRestoreNode]; math.Abs(got-want) > 1e-9 {
			t.Errorf("AssertRestoreCostExact: %s: episode %d (%s): restore cost %.4f, want %.4f for %d restores",
				result.Name, r.EpisodeIndex, r.Strategy, got, want, r.RestoreNodeCount)
		}
		if r.ActionCounts[models.ActionRestoreNode] != r.RestoreNodeCount {
			t.Errorf("AssertRestoreCostExact: %s: episode %d (%s): %d restore actions counted, %d recorded",
				result.Name, r.EpisodeIndex, r.Strategy, r.ActionCounts[models.ActionRestoreNode], r.RestoreNodeCount)
		}
	}
}

// AssertDeterministic asserts that two runs of the same scenario produced
// identical raw results.
func AssertDeterministic(t *testing.T, a, b SimulationResult) {
	t.Helper()
	if len(a.Report.RawResults) != len(b.Report.RawResults) {
		t.Fatalf("AssertDeterministic: %d results vs %d", len(a.Report.RawResults), len(b.Report.RawResults))
	}
	for i := range a.Report.RawResults {
		ra, rb := a.Report.RawResults[i], b.Report.RawResults[i]
		if !reflect.DeepEqual(ra, rb) {
			t.Errorf("AssertDeterministic: result %d (episode %d, %s) differs: reward %.6f vs %.6f",
				i, ra.EpisodeIndex, ra.Strategy, ra.TotalReward, rb.TotalReward)
		}
	}
}

// AssertNoFailures asserts that every planned episode succeeded.
func AssertNoFailures(t *testing.T, result SimulationResult) {
	t.Helper()
	c := result.Report.Counts
	if c.Failed > 0 || c.Succeeded != c.Planned {
		t.Errorf("AssertNoFailures: %s: %d/%d succeeded, %d failed", result.Name, c.Succeeded, c.Planned, c.Failed)
	}
	for _, f := range result.Report.Failures {
		t.Logf("  episode %d (%s, seed %d): %s", f.EpisodeIndex, f.Strategy, f.Seed, f.Error)
	}
}

// AssertHubsPresent asserts that every episode's topology has at least one
// hub.
func AssertHubsPresent(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, r := range result.Report.RawResults {
		if r.TopologyMetrics.Hubs < 1 {
			t.Errorf("AssertHubsPresent: %s: episode %d (%s) has no hubs", result.Name, r.EpisodeIndex, r.Strategy)
		}
	}
}

// AssertSignificant asserts that the stored analysis found a significant
// difference between the strategies.
func AssertSignificant(t *testing.T, result SimulationResult) {
	t.Helper()
	a := result.Report.Analysis
	if a == nil || a.Comparison == nil {
		t.Errorf("AssertSignificant: %s: no comparison", result.Name)
		return
	}
	if !a.Comparison.Significant {
		t.Errorf("AssertSignificant: %s: %s p=%.4g not significant", result.Name, a.Comparison.Test.TestName, a.Comparison.Test.PValue)
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// CountAction totals how often strategy took action across all episodes.
func CountAction(result SimulationResult, strategy string, action models.Action) int {
	n := 0
	for _, r := range result.Results(strategy) {
		n += r.ActionCounts[action]
	}
	return n
}
