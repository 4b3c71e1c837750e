package defender

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/network"
	"github.com/nvandessel/acpsim/internal/randutil"
	"github.com/nvandessel/acpsim/internal/topology"
)

// starManager builds a star with hub 0 and leaves 1..4.
func starManager(t *testing.T) *network.Manager {
	t.Helper()
	g, err := topology.Generate(5, "hub_spoke", 0, topology.Options{HubRatio: 0.2}, randutil.New(1))
	require.NoError(t, err)
	require.True(t, g.IsHub(0))
	m, err := network.NewManager(g, []float64{0.2, 0.3, 0.9, 0.4, 0.5})
	require.NoError(t, err)
	return m
}

func TestKinds(t *testing.T) {
	for _, k := range AllKinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)

		s, err := New(k, Config{ACPStrength: 0.5, Paranoia: DefaultParanoia})
		require.NoError(t, err)
		assert.Equal(t, k, s.Kind())
	}

	_, err := ParseKind("random")
	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(Kind(9), Config{})
	assert.Error(t, err)
}

func TestCost(t *testing.T) {
	assert.Equal(t, 6.0, Cost(models.ActionRestoreNode))
	assert.Equal(t, 3.0, Cost(models.ActionIsolate))
	assert.Equal(t, 1.0, Cost(models.ActionDeceive))
	assert.Equal(t, 0.0, Cost(models.ActionNoOp))
	assert.Equal(t, 6.0, NewOptimisticACP(Config{}).Cost(models.ActionRestoreNode))
}

func TestRemediate_Priorities(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(m *network.Manager)
		obs      func(v network.DefenderView) Observation
		want     Decision
		paranoia float64
	}{
		{
			name: "compromised hub is isolated",
			setup: func(m *network.Manager) {
				m.Compromise(3)
				m.Compromise(0)
			},
			want: Decision{Action: models.ActionIsolate, Target: 0},
		},
		{
			name:  "compromised leaf is restored",
			setup: func(m *network.Manager) { m.Compromise(3) },
			want:  Decision{Action: models.ActionRestoreNode, Target: 3},
		},
		{
			name: "detected clean target is restored",
			obs: func(v network.DefenderView) Observation {
				return Observation{View: v, Detected: true, Target: 4}
			},
			want: Decision{Action: models.ActionRestoreNode, Target: 4},
		},
		{
			name:     "paranoia restores the weakest clean node",
			paranoia: 1,
			want:     Decision{Action: models.ActionRestoreNode, Target: 2},
		},
		{
			name:     "calm defender does nothing",
			paranoia: 0,
			want:     NoOp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := starManager(t)
			if tt.setup != nil {
				tt.setup(m)
			}
			obs := Observation{View: m.DefenderView(), Target: -1}
			if tt.obs != nil {
				obs = tt.obs(m.DefenderView())
			}
			p := NewPessimistic(Config{Paranoia: tt.paranoia})
			got := p.ObserveAndAct(obs, 0, randutil.New(1))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPessimistic_WaitsWithoutSuspicion(t *testing.T) {
	m := starManager(t)
	p := NewPessimistic(Config{Paranoia: 1})
	d := p.ObserveAndAct(Observation{View: m.DefenderView(), Target: -1}, 3, randutil.New(1))
	assert.Equal(t, NoOp, d)
	assert.Equal(t, PhaseObserving, p.State().Phase)

	d = p.ObserveAndAct(Observation{View: m.DefenderView(), Target: -1}, 1, randutil.New(1))
	assert.Equal(t, models.ActionRestoreNode, d.Action)
	assert.Equal(t, PhaseActing, p.State().Phase)

	p.EndStep()
	assert.Equal(t, PhaseIdle, p.State().Phase)
}

func TestPessimistic_NeverDeceives(t *testing.T) {
	rng := randutil.New(7)
	m := starManager(t)
	p := NewPessimistic(Config{ACPStrength: 1, Paranoia: 0.5})
	for i := 0; i < 500; i++ {
		obs := Observation{View: m.DefenderView(), Detected: rng.IntN(2) == 0, Target: 1 + rng.IntN(4)}
		d := p.ObserveAndAct(obs, rng.IntN(4), rng)
		require.NotEqual(t, models.ActionDeceive, d.Action)
	}
}

func TestOptimisticACP_DeceivesInsideWindow(t *testing.T) {
	m := starManager(t)
	o := NewOptimisticACP(Config{ACPStrength: 1, Paranoia: DefaultParanoia})
	obs := Observation{View: m.DefenderView(), Detected: true, Target: 2}

	d := o.ObserveAndAct(obs, 2, randutil.New(1))
	assert.Equal(t, Decision{Action: models.ActionDeceive, Target: 2}, d)

	o.Record(d)
	st := o.State()
	assert.Equal(t, 1, st.Deceptions)
	assert.Equal(t, 1.0, st.TotalCost)
	assert.Equal(t, 1, st.ActionCounts[models.ActionDeceive])
}

func TestOptimisticACP_NoDeceptionOutsideWindow(t *testing.T) {
	m := starManager(t)
	o := NewOptimisticACP(Config{ACPStrength: 1, Paranoia: DefaultParanoia})
	obs := Observation{View: m.DefenderView(), Detected: true, Target: 2}
	d := o.ObserveAndAct(obs, 0, randutil.New(1))
	assert.Equal(t, Decision{Action: models.ActionRestoreNode, Target: 2}, d)
}

func TestOptimisticACP_MatchesPessimisticWithoutWindow(t *testing.T) {
	// With latencyRemaining == 0 both strategies must make the same
	// decisions and consume the generator identically.
	m := starManager(t)
	pRng, oRng := randutil.New(21), randutil.New(21)
	p := NewPessimistic(Config{ACPStrength: 0.65, Paranoia: DefaultParanoia})
	o := NewOptimisticACP(Config{ACPStrength: 0.65, Paranoia: DefaultParanoia})

	for i := 0; i < 200; i++ {
		obs := Observation{View: m.DefenderView(), Detected: i%3 == 0, Target: 1 + i%4}
		require.Equal(t, p.ObserveAndAct(obs, 0, pRng), o.ObserveAndAct(obs, 0, oRng))
	}
	assert.Equal(t, pRng.Uint64(), oRng.Uint64())
}

func TestOptimisticACP_HoldsBackUntilLastTick(t *testing.T) {
	m := starManager(t)
	m.Compromise(3)
	o := NewOptimisticACP(Config{ACPStrength: 1, Paranoia: DefaultParanoia})

	d := o.ObserveAndAct(Observation{View: m.DefenderView(), Target: -1}, 2, randutil.New(1))
	assert.Equal(t, NoOp, d)

	d = o.ObserveAndAct(Observation{View: m.DefenderView(), Target: -1}, 1, randutil.New(1))
	assert.Equal(t, Decision{Action: models.ActionRestoreNode, Target: 3}, d)
}
