package attacker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/network"
	"github.com/nvandessel/acpsim/internal/randutil"
	"github.com/nvandessel/acpsim/internal/topology"
)

func testConfig() Config {
	return Config{
		LearningRate: 1.0,
		DecayRate:    0.8,
		Noise:        0,
		LatencyMin:   1,
		LatencyMax:   3,
		Activation:   DefaultActivationPolicy(),
		Learning:     DefaultLearningPolicy(),
	}
}

// lineManager builds 0-1-2-3-4 with uniform vulnerability.
func lineManager(t *testing.T) *network.Manager {
	t.Helper()
	g := topology.NewGraph(5)
	for i := 0; i < 4; i++ {
		g.AddEdge(i, i+1)
	}
	m, err := network.NewManager(g, []float64{0.5, 0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	return m
}

func TestDecideTarget_EmptyMemoryExploresAllReachable(t *testing.T) {
	m := lineManager(t)
	_, err := m.Apply(models.ActionIsolate, 2)
	require.NoError(t, err)

	a := New(testConfig(), 5)
	rng := randutil.New(1)
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		target, ok := a.DecideTarget(m.AttackerView(), 0, rng)
		require.True(t, ok)
		seen[target] = true
	}
	assert.False(t, seen[2], "isolated node must never be targeted")
	assert.Len(t, seen, 4)
}

func TestCandidates_Frontier(t *testing.T) {
	m := lineManager(t)
	a := New(testConfig(), 5)
	a.GainFoothold(2)

	assert.Equal(t, []int{1, 3}, a.Candidates(m.AttackerView()))

	a.GainFoothold(1)
	a.GainFoothold(3)
	assert.Equal(t, []int{0, 4}, a.Candidates(m.AttackerView()))

	a.LoseFoothold(3)
	assert.Equal(t, []int{0, 3}, a.Candidates(m.AttackerView()))
	assert.False(t, a.HasFoothold(3))
}

func TestCandidates_NoneLeft(t *testing.T) {
	m := lineManager(t)
	a := New(testConfig(), 5)
	for i := 0; i < 5; i++ {
		a.GainFoothold(i)
	}
	_, ok := a.DecideTarget(m.AttackerView(), 0, randutil.New(1))
	assert.False(t, ok)
	assert.Equal(t, -1, a.Target())
}

func TestDecideTarget_PrefersRecentSuccess(t *testing.T) {
	m := lineManager(t)
	cfg := testConfig()
	cfg.Activation.ExplorationScale = 0
	a := New(cfg, 5)
	rng := randutil.New(3)

	a.ObserveOutcome(1, 0, false, false, rng)
	a.ObserveOutcome(3, 1, true, false, rng)

	// Node 3 scores ln(2^-0.8) + 0.5*ln(2) + 1 ≈ 0.79; unseen nodes score 0
	// and node 0 is negative.
	target, ok := a.DecideTarget(m.AttackerView(), 2, rng)
	require.True(t, ok)
	assert.Equal(t, 3, target)
}

func TestDecideTarget_TieBreakUsesRNG(t *testing.T) {
	m := lineManager(t)
	cfg := testConfig()
	cfg.Activation.ExplorationScale = 0
	a := New(cfg, 5)
	rng := randutil.New(11)
	// A single failure on node 0 makes memory non-empty; the other nodes all
	// score UnseenActivation and tie.
	a.ObserveOutcome(0, 0, false, false, rng)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		target, ok := a.DecideTarget(m.AttackerView(), 1, rng)
		require.True(t, ok)
		seen[target] = true
	}
	assert.False(t, seen[0])
	assert.Len(t, seen, 4)
}

func TestObserveOutcome_Confidence(t *testing.T) {
	rng := randutil.New(1)

	a := New(testConfig(), 5)
	a.ObserveOutcome(0, 0, true, false, rng)
	assert.InDelta(t, 0.55, a.Confidence(), 1e-12)

	b := New(testConfig(), 5)
	b.ObserveOutcome(0, 0, false, false, rng)
	assert.InDelta(t, 0.475, b.Confidence(), 1e-12)

	c := New(testConfig(), 5)
	c.ObserveOutcome(0, 0, true, true, rng)
	assert.InDelta(t, 0.4, c.Confidence(), 1e-12)
	mem := c.Memory()
	require.Len(t, mem, 1)
	assert.True(t, mem[0].Poisoned)
	assert.GreaterOrEqual(t, mem[0].Weight, 0.3)
	assert.Less(t, mem[0].Weight, 0.5)
}

func TestObserveOutcome_ConfidenceStaysInRange(t *testing.T) {
	cfg := testConfig()
	cfg.LearningRate = 5
	a := New(cfg, 5)
	rng := randutil.New(2)
	for i := 0; i < 500; i++ {
		a.ObserveOutcome(i%5, i, rng.IntN(2) == 0, rng.IntN(4) == 0, rng)
		require.GreaterOrEqual(t, a.Confidence(), 0.0)
		require.LessOrEqual(t, a.Confidence(), 1.0)
	}
}

func TestMemoryPruning(t *testing.T) {
	a := New(testConfig(), 5)
	rng := randutil.New(1)
	for step := 0; step <= 150; step++ {
		a.ObserveOutcome(step%5, step, true, false, rng)
	}
	mem := a.Memory()
	require.Len(t, mem, 100)
	// Equal weights: the most recent instances survive, in order.
	assert.Equal(t, 51, mem[0].Step)
	assert.Equal(t, 150, mem[99].Step)
}

func TestLatency(t *testing.T) {
	rng := randutil.New(5)
	a := New(testConfig(), 5)
	for i := 0; i < 100; i++ {
		l := a.BeginLatency(rng)
		require.GreaterOrEqual(t, l, 1)
		require.LessOrEqual(t, l, 3)
		for a.LatencyRemaining() > 0 {
			assert.False(t, a.Ready())
			a.Tick()
		}
		assert.True(t, a.Ready())
	}

	cfg := testConfig()
	cfg.LatencyMin, cfg.LatencyMax = 0, 0
	z := New(cfg, 5)
	assert.Equal(t, 0, z.BeginLatency(rng))
	assert.True(t, z.Ready())
}

func TestSeesThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Learning.InitialConfidence = 0.9
	assert.True(t, New(cfg, 1).SeesThrough())

	cfg.Learning.InitialConfidence = 0.5
	assert.False(t, New(cfg, 1).SeesThrough())
}
