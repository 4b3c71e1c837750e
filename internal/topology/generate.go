package topology

import (
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/models"
)

// Options tunes the family-specific generators.
type Options struct {
	// HubRatio is the fraction of nodes that become hubs in hub_spoke graphs.
	// Default: 0.1.
	HubRatio float64

	// BranchingFactor is the fan-out of hierarchical trees. Default: 3.
	BranchingFactor int

	// AutoThreshold is the largest node count for which auto picks random
	// over scale_free. Default: 100.
	AutoThreshold int
}

// DefaultOptions returns the default generator options.
func DefaultOptions() Options {
	return Options{
		HubRatio:        0.1,
		BranchingFactor: 3,
		AutoThreshold:   100,
	}
}

// ParseType validates a topology type name, resolving aliases.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeRandom, TypeErdosRenyi:
		return TypeRandom, nil
	case TypeScaleFree, TypeBarabasi:
		return TypeScaleFree, nil
	case TypeHubSpoke:
		return TypeHubSpoke, nil
	case TypeHierarchical:
		return TypeHierarchical, nil
	case TypeAuto:
		return TypeAuto, nil
	}
	return "", models.NewConfigurationError("topology_type", "unknown topology type %q", s)
}

// Generate builds a connected graph of numNodes nodes.
//
// connectivity is the edge probability for random graphs, scales the
// attachment count m = max(1, n*c/10) for scale_free graphs and the number of
// extra spoke-to-spoke edges for hub_spoke graphs. Invalid arguments yield a
// *models.ConfigurationError.
func Generate(numNodes int, topologyType string, connectivity float64, opts Options, rng *rand.Rand) (*Graph, error) {
	kind, err := ParseType(topologyType)
	if err != nil {
		return nil, err
	}
	if numNodes < 2 {
		return nil, models.NewConfigurationError("num_nodes", "must be at least 2, got %d", numNodes)
	}
	if connectivity < 0 || connectivity > 1 {
		return nil, models.NewConfigurationError("connectivity", "must be within [0, 1], got %g", connectivity)
	}
	opts = withDefaults(opts)

	if kind == TypeAuto {
		kind = TypeScaleFree
		if numNodes <= opts.AutoThreshold {
			kind = TypeRandom
		}
	}

	var g *Graph
	switch kind {
	case TypeRandom:
		g = erdosRenyi(numNodes, connectivity, rng)
	case TypeScaleFree:
		g = barabasiAlbert(numNodes, connectivity, rng)
	case TypeHubSpoke:
		g = hubSpoke(numNodes, opts.HubRatio, connectivity, rng)
	case TypeHierarchical:
		g = hierarchical(numNodes, opts.BranchingFactor, rng)
	}
	g.kind = kind
	connectComponents(g, rng)
	return g, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.HubRatio <= 0 {
		opts.HubRatio = def.HubRatio
	}
	if opts.BranchingFactor < 2 {
		opts.BranchingFactor = def.BranchingFactor
	}
	if opts.AutoThreshold <= 0 {
		opts.AutoThreshold = def.AutoThreshold
	}
	return opts
}

// erdosRenyi samples G(n, p).
func erdosRenyi(n int, p float64, rng *rand.Rand) *Graph {
	g := NewGraph(n)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if rng.Float64() < p {
				g.AddEdge(u, v)
			}
		}
	}
	return g
}

// barabasiAlbert grows a preferential-attachment graph. Each new node links
// to m distinct existing nodes chosen proportionally to degree.
func barabasiAlbert(n int, connectivity float64, rng *rand.Rand) *Graph {
	m := max(1, int(float64(n)*connectivity/10))
	if m >= n {
		m = n - 1
	}
	g := NewGraph(n)

	// Seed with a star over the first m+1 nodes so every node has degree > 0.
	var repeated []int // each node appears once per incident edge end
	for v := 1; v <= m; v++ {
		g.AddEdge(0, v)
		repeated = append(repeated, 0, v)
	}

	for v := m + 1; v < n; v++ {
		targets := make(map[int]bool, m)
		order := make([]int, 0, m)
		for len(order) < m {
			t := repeated[rng.IntN(len(repeated))]
			if !targets[t] {
				targets[t] = true
				order = append(order, t)
			}
		}
		for _, t := range order {
			g.AddEdge(v, t)
			repeated = append(repeated, v, t)
		}
	}
	return g
}

// hubSpoke builds a fully meshed hub core, wires every spoke to one to
// three hubs and sprinkles extra spoke-to-spoke edges.
func hubSpoke(n int, hubRatio, connectivity float64, rng *rand.Rand) *Graph {
	g := NewGraph(n)
	numHubs := max(1, int(float64(n)*hubRatio))
	if numHubs >= n {
		numHubs = n - 1
	}
	hubs := make([]int, numHubs)
	for i := range hubs {
		hubs[i] = i
		g.hub[i] = true
	}
	for i := 0; i < numHubs; i++ {
		for j := i + 1; j < numHubs; j++ {
			g.AddEdge(i, j)
		}
	}

	for spoke := numHubs; spoke < n; spoke++ {
		k := min(numHubs, 1+rng.IntN(3))
		perm := rng.Perm(numHubs)
		for _, idx := range perm[:k] {
			g.AddEdge(spoke, hubs[idx])
		}
	}

	spokes := n - numHubs
	if spokes >= 2 {
		extra := int(connectivity * float64(spokes) * 2)
		for i := 0; i < extra; i++ {
			a := numHubs + rng.IntN(spokes)
			b := numHubs + rng.IntN(spokes-1)
			if b >= a {
				b++
			}
			g.AddEdge(a, b)
		}
	}
	return g
}

// hierarchical builds a complete b-ary tree with exactly n nodes in
// breadth-first order, then adds cross-level shortcuts. The root is the hub.
func hierarchical(n, b int, rng *rand.Rand) *Graph {
	g := NewGraph(n)
	g.level[0] = 0
	g.hub[0] = true
	for v := 1; v < n; v++ {
		parent := (v - 1) / b
		g.AddEdge(v, parent)
		g.level[v] = g.level[parent] + 1
	}

	cross := max(1, int(float64(n)*0.1))
	for i := 0; i < cross; i++ {
		a := rng.IntN(n)
		c := rng.IntN(n - 1)
		if c >= a {
			c++
		}
		if g.level[a] != g.level[c] {
			g.AddEdge(a, c)
		}
	}
	return g
}

// connectComponents bridges every component to the first one through a
// random member of each.
func connectComponents(g *Graph, rng *rand.Rand) {
	comps := g.Components()
	if len(comps) <= 1 {
		return
	}
	joined := comps[0]
	for _, comp := range comps[1:] {
		u := joined[rng.IntN(len(joined))]
		v := comp[rng.IntN(len(comp))]
		g.AddEdge(u, v)
		joined = append(joined, comp...)
	}
}
