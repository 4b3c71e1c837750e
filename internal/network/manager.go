// Package network owns per-node security state for one episode.
//
// Nodes live in a flat arena indexed by topology node id. The Manager is the
// only writer; agents receive AttackerView and DefenderView, which expose
// read-only slices of what each side is allowed to know.
package network

import (
	"fmt"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/topology"
)

// DefaultPatchFactor scales the vulnerability of patched nodes.
const DefaultPatchFactor = 0.5

// Node is one entry of the state arena.
type Node struct {
	ID            int
	State         models.NodeState
	Vulnerability float64

	// prior is the state a honeypot overlay replaced.
	prior models.NodeState
}

// TransitionError describes a rejected state change. The environment wraps
// it into a SimulationRuntimeError with step context.
type TransitionError struct {
	Node   int
	From   models.NodeState
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on node %d in state %s", e.Action, e.Node, e.From)
}

// Diagnostic returns the error as a diagnostic payload.
func (e *TransitionError) Diagnostic() map[string]any {
	return map[string]any{
		"node":   e.Node,
		"from":   string(e.From),
		"action": e.Action,
	}
}

// Manager owns node state for a single episode.
type Manager struct {
	graph       *topology.Graph
	nodes       []Node
	patchFactor float64
	counts      map[models.NodeState]int
}

// NewManager creates a manager with every node Clean.
func NewManager(g *topology.Graph, vulnerability []float64) (*Manager, error) {
	if len(vulnerability) != g.NumNodes() {
		return nil, fmt.Errorf("vulnerability length %d does not match %d nodes", len(vulnerability), g.NumNodes())
	}
	nodes := make([]Node, g.NumNodes())
	for i := range nodes {
		nodes[i] = Node{ID: i, State: models.NodeStateClean, Vulnerability: vulnerability[i]}
	}
	return &Manager{
		graph:       g,
		nodes:       nodes,
		patchFactor: DefaultPatchFactor,
		counts:      map[models.NodeState]int{models.NodeStateClean: len(nodes)},
	}, nil
}

// Graph returns the underlying topology.
func (m *Manager) Graph() *topology.Graph { return m.graph }

// NumNodes returns the arena size.
func (m *Manager) NumNodes() int { return len(m.nodes) }

// State returns the current state of node id.
func (m *Manager) State(id int) models.NodeState { return m.nodes[id].State }

// Count returns how many nodes are in state s.
func (m *Manager) Count(s models.NodeState) int { return m.counts[s] }

// CompromisedRatio is the fraction of nodes currently compromised.
func (m *Manager) CompromisedRatio() float64 {
	if len(m.nodes) == 0 {
		return 0
	}
	return float64(m.counts[models.NodeStateCompromised]) / float64(len(m.nodes))
}

// EffectiveVulnerability is the attack success probability against id in
// its current state.
func (m *Manager) EffectiveVulnerability(id int) float64 {
	n := m.nodes[id]
	switch n.State {
	case models.NodeStateClean:
		return n.Vulnerability
	case models.NodeStatePatched:
		return n.Vulnerability * m.patchFactor
	}
	return 0
}

// Compromise marks id compromised after a successful attack.
func (m *Manager) Compromise(id int) error {
	switch m.nodes[id].State {
	case models.NodeStateClean, models.NodeStatePatched:
		m.set(id, models.NodeStateCompromised)
		return nil
	}
	return m.reject(id, "compromise")
}

// Apply executes a defender action against id and returns the state the
// node was in beforehand. NO_OP is always accepted.
func (m *Manager) Apply(action models.Action, id int) (models.NodeState, error) {
	if action == models.ActionNoOp {
		return "", nil
	}
	if id < 0 || id >= len(m.nodes) {
		return "", fmt.Errorf("%s: node %d out of range", action, id)
	}
	from := m.nodes[id].State
	if !remediable(from) {
		return from, m.reject(id, string(action))
	}

	switch action {
	case models.ActionRestoreNode:
		m.set(id, models.NodeStatePatched)
	case models.ActionIsolate:
		m.set(id, models.NodeStateIsolated)
	case models.ActionDeceive:
		m.nodes[id].prior = from
		m.set(id, models.NodeStateHoneypot)
	default:
		return from, fmt.Errorf("unknown action %q", action)
	}
	return from, nil
}

// RevertDeception removes the honeypot overlay on id, restoring the state it
// replaced.
func (m *Manager) RevertDeception(id int) error {
	if m.nodes[id].State != models.NodeStateHoneypot {
		return m.reject(id, "revert_deception")
	}
	m.set(id, m.nodes[id].prior)
	m.nodes[id].prior = ""
	return nil
}

// Honeypots returns the ids currently carrying a honeypot overlay.
func (m *Manager) Honeypots() []int {
	var out []int
	for i := range m.nodes {
		if m.nodes[i].State == models.NodeStateHoneypot {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) set(id int, s models.NodeState) {
	m.counts[m.nodes[id].State]--
	m.counts[s]++
	m.nodes[id].State = s
}

func (m *Manager) reject(id int, action string) error {
	return &TransitionError{Node: id, From: m.nodes[id].State, Action: action}
}

// remediable reports whether a defender action may start from s.
func remediable(s models.NodeState) bool {
	switch s {
	case models.NodeStateClean, models.NodeStatePatched, models.NodeStateCompromised:
		return true
	}
	return false
}
