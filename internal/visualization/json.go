package visualization

import (
	"github.com/nvandessel/acpsim/internal/environment"
	"github.com/nvandessel/acpsim/internal/models"
)

// GraphNode is one node of the JSON rendering.
type GraphNode struct {
	ID            int     `json:"id"`
	Degree        int     `json:"degree"`
	Hub           bool    `json:"hub"`
	Level         *int    `json:"level,omitempty"`
	Vulnerability float64 `json:"vulnerability"`
}

// GraphEdge is an undirected edge with Source < Target.
type GraphEdge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Graph is the JSON rendering of a topology.
type Graph struct {
	Nodes   []GraphNode            `json:"nodes"`
	Edges   []GraphEdge            `json:"edges"`
	Metrics models.TopologyMetrics `json:"metrics"`
}

// RenderJSON converts the topology into a serialisable node/edge list.
func RenderJSON(t *environment.Topology) Graph {
	g := t.Graph
	out := Graph{
		Nodes:   make([]GraphNode, 0, g.NumNodes()),
		Edges:   make([]GraphEdge, 0, g.NumEdges()),
		Metrics: t.Metrics,
	}
	for id := 0; id < g.NumNodes(); id++ {
		n := GraphNode{
			ID:            id,
			Degree:        g.Degree(id),
			Hub:           g.IsHub(id),
			Vulnerability: vulnerabilityOf(t, id),
		}
		if l := g.Level(id); l >= 0 {
			n.Level = &l
		}
		out.Nodes = append(out.Nodes, n)

		for _, v := range g.Neighbors(id) {
			if id < v {
				out.Edges = append(out.Edges, GraphEdge{Source: id, Target: v})
			}
		}
	}
	return out
}
