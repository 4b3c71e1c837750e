package network

import (
	"errors"
	"testing"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/topology"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	g := topology.NewGraph(4)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	m, err := NewManager(g, []float64{0.2, 0.4, 0.6, 0.8})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManager_LengthMismatch(t *testing.T) {
	g := topology.NewGraph(3)
	if _, err := NewManager(g, []float64{0.5}); err == nil {
		t.Fatal("expected error for mismatched vulnerability length")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *Manager)
		action  models.Action
		want    models.NodeState
		wantErr bool
	}{
		{"restore clean", nil, models.ActionRestoreNode, models.NodeStatePatched, false},
		{"restore compromised", func(m *Manager) { m.Compromise(0) }, models.ActionRestoreNode, models.NodeStatePatched, false},
		{"isolate compromised", func(m *Manager) { m.Compromise(0) }, models.ActionIsolate, models.NodeStateIsolated, false},
		{"deceive clean", nil, models.ActionDeceive, models.NodeStateHoneypot, false},
		{"restore isolated", func(m *Manager) { m.Apply(models.ActionIsolate, 0) }, models.ActionRestoreNode, models.NodeStateIsolated, true},
		{"deceive isolated", func(m *Manager) { m.Apply(models.ActionIsolate, 0) }, models.ActionDeceive, models.NodeStateIsolated, true},
		{"deceive honeypot", func(m *Manager) { m.Apply(models.ActionDeceive, 0) }, models.ActionDeceive, models.NodeStateHoneypot, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			if tt.setup != nil {
				tt.setup(m)
			}
			_, err := m.Apply(tt.action, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("want TransitionError, got %T", err)
				}
				if te.Diagnostic()["node"] != 0 {
					t.Errorf("diagnostic node = %v", te.Diagnostic()["node"])
				}
			}
			if got := m.State(0); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompromise_RejectsTerminal(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Apply(models.ActionIsolate, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Compromise(1); err == nil {
		t.Fatal("compromising an isolated node should fail")
	}
	if err := m.Compromise(2); err != nil {
		t.Fatal(err)
	}
	if err := m.Compromise(2); err == nil {
		t.Fatal("compromising a compromised node should fail")
	}
}

func TestDeception_RevertsToPrior(t *testing.T) {
	m := newTestManager(t)
	m.Compromise(3)

	prior, err := m.Apply(models.ActionDeceive, 3)
	if err != nil {
		t.Fatal(err)
	}
	if prior != models.NodeStateCompromised {
		t.Errorf("prior = %s", prior)
	}
	if got := m.Honeypots(); len(got) != 1 || got[0] != 3 {
		t.Errorf("Honeypots() = %v", got)
	}
	if err := m.RevertDeception(3); err != nil {
		t.Fatal(err)
	}
	if m.State(3) != models.NodeStateCompromised {
		t.Errorf("state after revert = %s", m.State(3))
	}
	if err := m.RevertDeception(3); err == nil {
		t.Error("reverting a node without a honeypot should fail")
	}
}

func TestCountsAndRatio(t *testing.T) {
	m := newTestManager(t)
	m.Compromise(0)
	m.Compromise(1)
	m.Apply(models.ActionRestoreNode, 1)

	if got := m.Count(models.NodeStateCompromised); got != 1 {
		t.Errorf("compromised count = %d", got)
	}
	if got := m.Count(models.NodeStateClean); got != 2 {
		t.Errorf("clean count = %d", got)
	}
	if got := m.CompromisedRatio(); got != 0.25 {
		t.Errorf("CompromisedRatio() = %v", got)
	}
}

func TestEffectiveVulnerability(t *testing.T) {
	m := newTestManager(t)
	if got := m.EffectiveVulnerability(1); got != 0.4 {
		t.Errorf("clean = %v", got)
	}
	m.Apply(models.ActionRestoreNode, 1)
	if got := m.EffectiveVulnerability(1); got != 0.2 {
		t.Errorf("patched = %v", got)
	}
	m.Apply(models.ActionIsolate, 1)
	if got := m.EffectiveVulnerability(1); got != 0 {
		t.Errorf("isolated = %v", got)
	}
}

func TestViews(t *testing.T) {
	m := newTestManager(t)
	m.Compromise(2)
	m.Apply(models.ActionIsolate, 3)

	av := m.AttackerView()
	if av.Reachable(3) {
		t.Error("isolated node should be unreachable")
	}
	if !av.Reachable(2) {
		t.Error("compromised node should be reachable")
	}
	if len(av.Neighbors(1)) != 2 {
		t.Errorf("Neighbors(1) = %v", av.Neighbors(1))
	}

	dv := m.DefenderView()
	if got := dv.Compromised(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Compromised() = %v", got)
	}
	if dv.State(3) != models.NodeStateIsolated {
		t.Errorf("State(3) = %s", dv.State(3))
	}
}
