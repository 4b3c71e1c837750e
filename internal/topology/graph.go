// Package topology generates simulated network graphs and assigns per-node
// vulnerability.
//
// Graphs are undirected, have no self loops or duplicate edges, and are
// identified by dense integer node ids so that node state can be kept in a
// flat arena elsewhere. All generators take an explicit *rand.Rand; the same
// seed always yields the same graph.
package topology

import (
	"slices"
)

// Type names a generator family.
type Type string

const (
	TypeRandom       Type = "random"
	TypeErdosRenyi   Type = "erdos_renyi" // alias of random
	TypeScaleFree    Type = "scale_free"
	TypeBarabasi     Type = "barabasi_albert" // alias of scale_free
	TypeHubSpoke     Type = "hub_spoke"
	TypeHierarchical Type = "hierarchical"
	TypeAuto         Type = "auto"
)

// Graph is an undirected graph over nodes 0..N-1.
type Graph struct {
	kind      Type
	adj       [][]int
	hub       []bool
	level     []int // -1 when the generator has no notion of levels
	edgeCount int
}

// NewGraph returns an edgeless graph with n nodes.
func NewGraph(n int) *Graph {
	level := make([]int, n)
	for i := range level {
		level[i] = -1
	}
	return &Graph{
		kind:  TypeRandom,
		adj:   make([][]int, n),
		hub:   make([]bool, n),
		level: level,
	}
}

// Type returns the generator family that produced the graph.
func (g *Graph) Type() Type { return g.kind }

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.adj) }

// NumEdges returns the number of undirected edges.
func (g *Graph) NumEdges() int { return g.edgeCount }

// AddEdge inserts the undirected edge (u, v). Self loops and duplicates are
// ignored; the return value reports whether an edge was added.
func (g *Graph) AddEdge(u, v int) bool {
	if u == v || g.HasEdge(u, v) {
		return false
	}
	g.adj[u] = insertSorted(g.adj[u], v)
	g.adj[v] = insertSorted(g.adj[v], u)
	g.edgeCount++
	return true
}

// HasEdge reports whether u and v are adjacent.
func (g *Graph) HasEdge(u, v int) bool {
	_, found := slices.BinarySearch(g.adj[u], v)
	return found
}

// Neighbors returns the sorted neighbours of id. The slice must not be modified.
func (g *Graph) Neighbors(id int) []int { return g.adj[id] }

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id int) int { return len(g.adj[id]) }

// IsHub reports whether id was generated as a hub (hub_spoke) or the root
// level (hierarchical).
func (g *Graph) IsHub(id int) bool { return g.hub[id] }

// Hubs returns the hub node ids in ascending order.
func (g *Graph) Hubs() []int {
	var out []int
	for i, h := range g.hub {
		if h {
			out = append(out, i)
		}
	}
	return out
}

// HasHubs reports whether the generator marked any hubs.
func (g *Graph) HasHubs() bool {
	return slices.Contains(g.hub, true)
}

// Level returns the depth of id in a hierarchical graph, or -1.
func (g *Graph) Level(id int) int { return g.level[id] }

// MaxLevel returns the deepest level, or -1 when the graph has no levels.
func (g *Graph) MaxLevel() int {
	deepest := -1
	for _, l := range g.level {
		deepest = max(deepest, l)
	}
	return deepest
}

// Components returns the connected components, each sorted, ordered by their
// smallest node id.
func (g *Graph) Components() [][]int {
	n := g.NumNodes()
	seen := make([]bool, n)
	var comps [][]int
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		comp := []int{start}
		seen[start] = true
		for i := 0; i < len(comp); i++ {
			for _, nb := range g.adj[comp[i]] {
				if !seen[nb] {
					seen[nb] = true
					comp = append(comp, nb)
				}
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}

// IsConnected reports whether every node is reachable from node 0.
func (g *Graph) IsConnected() bool {
	return len(g.Components()) <= 1
}

func insertSorted(s []int, v int) []int {
	i, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, i, v)
}
