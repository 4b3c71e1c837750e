package network

import "github.com/nvandessel/acpsim/internal/models"

// AttackerView is what the attacker can observe: which nodes are still
// reachable and how they are wired. True node state stays hidden.
type AttackerView struct {
	m *Manager
}

// AttackerView returns a read-only attacker view.
func (m *Manager) AttackerView() AttackerView { return AttackerView{m: m} }

// NumNodes returns the number of nodes.
func (v AttackerView) NumNodes() int { return len(v.m.nodes) }

// Reachable reports whether id can still be targeted.
func (v AttackerView) Reachable(id int) bool {
	return !v.m.nodes[id].State.IsTerminal()
}

// Neighbors returns the neighbours of id.
func (v AttackerView) Neighbors(id int) []int { return v.m.graph.Neighbors(id) }

// DefenderView exposes true node state to the defender.
type DefenderView struct {
	m *Manager
}

// DefenderView returns a read-only defender view.
func (m *Manager) DefenderView() DefenderView { return DefenderView{m: m} }

// NumNodes returns the number of nodes.
func (v DefenderView) NumNodes() int { return len(v.m.nodes) }

// State returns the true state of id.
func (v DefenderView) State(id int) models.NodeState { return v.m.nodes[id].State }

// Vulnerability returns the base vulnerability of id.
func (v DefenderView) Vulnerability(id int) float64 { return v.m.nodes[id].Vulnerability }

// IsHub reports whether id is a hub.
func (v DefenderView) IsHub(id int) bool { return v.m.graph.IsHub(id) }

// Degree returns the degree of id.
func (v DefenderView) Degree(id int) int { return v.m.graph.Degree(id) }

// Compromised returns the compromised node ids in ascending order.
func (v DefenderView) Compromised() []int {
	var out []int
	for i := range v.m.nodes {
		if v.m.nodes[i].State == models.NodeStateCompromised {
			out = append(out, i)
		}
	}
	return out
}
