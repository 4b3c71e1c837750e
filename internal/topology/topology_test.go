package topology

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/randutil"
)

func TestGenerate_AllTypesConnected(t *testing.T) {
	types := []string{"random", "erdos_renyi", "scale_free", "barabasi_albert", "hub_spoke", "hierarchical", "auto"}
	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			g, err := Generate(50, typ, 0.3, DefaultOptions(), randutil.New(42))
			require.NoError(t, err)
			assert.Equal(t, 50, g.NumNodes())
			assert.True(t, g.IsConnected(), "graph should be connected")

			for v := 0; v < g.NumNodes(); v++ {
				assert.False(t, g.HasEdge(v, v), "self loop on %d", v)
				for _, nb := range g.Neighbors(v) {
					assert.True(t, g.HasEdge(nb, v), "edge %d-%d not symmetric", v, nb)
				}
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	for _, typ := range []string{"random", "scale_free", "hub_spoke", "hierarchical"} {
		a, err := Generate(40, typ, 0.5, DefaultOptions(), randutil.New(9))
		require.NoError(t, err)
		b, err := Generate(40, typ, 0.5, DefaultOptions(), randutil.New(9))
		require.NoError(t, err)

		require.Equal(t, a.NumEdges(), b.NumEdges(), typ)
		for v := 0; v < a.NumNodes(); v++ {
			assert.Equal(t, a.Neighbors(v), b.Neighbors(v), "%s node %d", typ, v)
		}
	}
}

func TestGenerate_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name         string
		nodes        int
		typ          string
		connectivity float64
		field        string
	}{
		{"unknown type", 20, "ring", 0.5, "topology_type"},
		{"too few nodes", 1, "random", 0.5, "num_nodes"},
		{"negative connectivity", 20, "random", -0.1, "connectivity"},
		{"connectivity above one", 20, "random", 1.5, "connectivity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.nodes, tt.typ, tt.connectivity, DefaultOptions(), randutil.New(1))
			require.Error(t, err)
			var cfgErr *models.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %T", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestGenerate_AutoPicksBySize(t *testing.T) {
	small, err := Generate(50, "auto", 0.2, DefaultOptions(), randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, TypeRandom, small.Type())

	large, err := Generate(150, "auto", 0.2, DefaultOptions(), randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, TypeScaleFree, large.Type())
}

func TestHubSpoke_HubsOutrankPeriphery(t *testing.T) {
	g, err := Generate(50, "hub_spoke", 0.6, Options{HubRatio: 0.1}, randutil.New(42))
	require.NoError(t, err)

	hubs := g.Hubs()
	require.NotEmpty(t, hubs)
	assert.Len(t, hubs, 5)

	var hubDeg, spokeDeg float64
	for v := 0; v < g.NumNodes(); v++ {
		if g.IsHub(v) {
			hubDeg += float64(g.Degree(v))
		} else {
			spokeDeg += float64(g.Degree(v))
		}
	}
	hubMean := hubDeg / float64(len(hubs))
	spokeMean := spokeDeg / float64(g.NumNodes()-len(hubs))
	assert.Greater(t, hubMean, spokeMean)
}

func TestHierarchical_Levels(t *testing.T) {
	g, err := Generate(13, "hierarchical", 0.5, Options{BranchingFactor: 3}, randutil.New(3))
	require.NoError(t, err)

	assert.Equal(t, 0, g.Level(0))
	assert.True(t, g.IsHub(0))
	for v := 1; v <= 3; v++ {
		assert.Equal(t, 1, g.Level(v))
	}
	for v := 4; v < 13; v++ {
		assert.Equal(t, 2, g.Level(v))
	}
	assert.Equal(t, 2, g.MaxLevel())
	assert.GreaterOrEqual(t, g.NumEdges(), 12)
}

func TestScaleFree_AttachmentCount(t *testing.T) {
	// m = max(1, 100*0.3/10) = 3; every grown node gets exactly m edges.
	g, err := Generate(100, "scale_free", 0.3, DefaultOptions(), randutil.New(5))
	require.NoError(t, err)
	assert.Equal(t, 3+3*(100-4), g.NumEdges())
}

func TestAssignVulnerability_Structural(t *testing.T) {
	hs, err := Generate(50, "hub_spoke", 0.3, DefaultOptions(), randutil.New(1))
	require.NoError(t, err)

	grad, err := AssignVulnerability("gradient", hs, randutil.New(1))
	require.NoError(t, err)
	inv, err := AssignVulnerability("inverse", hs, randutil.New(1))
	require.NoError(t, err)
	for v := 0; v < hs.NumNodes(); v++ {
		if hs.IsHub(v) {
			assert.Equal(t, 0.2, grad[v])
			assert.Equal(t, 0.8, inv[v])
		} else {
			assert.Equal(t, 0.7, grad[v])
			assert.Equal(t, 0.3, inv[v])
		}
	}

	tree, err := Generate(13, "hierarchical", 0.3, DefaultOptions(), randutil.New(1))
	require.NoError(t, err)
	treeGrad, err := AssignVulnerability("gradient", tree, randutil.New(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, treeGrad[0], 1e-12)
	assert.InDelta(t, 0.9, treeGrad[12], 1e-12)

	autoV, err := AssignVulnerability("auto", hs, randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, grad, autoV)
}

func TestAssignVulnerability_GradientWithoutStructure(t *testing.T) {
	g, err := Generate(20, "random", 0.3, DefaultOptions(), randutil.New(1))
	require.NoError(t, err)
	v, err := AssignVulnerability("gradient", g, randutil.New(1))
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, 0.5, x)
	}
}

func TestAssignVulnerability_Unknown(t *testing.T) {
	g := NewGraph(3)
	_, err := AssignVulnerability("lognormal", g, randutil.New(1))
	var cfgErr *models.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

// TestVulnerabilityBounds checks every distribution on every generator
// family stays within [0, 1].
func TestVulnerabilityBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	dists := Distributions()
	types := []string{"random", "scale_free", "hub_spoke", "hierarchical"}

	properties.Property("vulnerability within [0,1]", prop.ForAll(
		func(seed int64, nodes int, distIdx, typeIdx int, connectivity float64) bool {
			rng := randutil.New(seed)
			g, err := Generate(nodes, types[typeIdx], connectivity, DefaultOptions(), rng)
			if err != nil {
				return false
			}
			v, err := AssignVulnerability(string(dists[distIdx]), g, rng)
			if err != nil || len(v) != nodes {
				return false
			}
			for _, x := range v {
				if x < 0 || x > 1 {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(2, 80),
		gen.IntRange(0, len(dists)-1),
		gen.IntRange(0, len(types)-1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestMetrics(t *testing.T) {
	// Triangle plus a pendant: 0-1, 1-2, 0-2, 2-3.
	g := NewGraph(4)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(0, 2)
	g.AddEdge(2, 3)
	assert.False(t, g.AddEdge(2, 0), "duplicate edge should be ignored")

	m := g.Metrics()
	assert.Equal(t, 4, m.Edges)
	assert.InDelta(t, 4.0/6.0, m.Density, 1e-12)
	assert.InDelta(t, 2.0, m.MeanDegree, 1e-12)
	assert.InDelta(t, 1.0, m.MaxDegreeCentrality, 1e-12)
	assert.Equal(t, 2, m.Diameter)
	// Pairs: 0-1 1, 0-2 1, 0-3 2, 1-2 1, 1-3 2, 2-3 1 -> 8/6.
	assert.InDelta(t, 8.0/6.0, m.AveragePathLength, 1e-12)
	// Local clustering: 1, 1, 1/3, 0.
	assert.InDelta(t, (1+1+1.0/3.0)/4, m.AverageClustering, 1e-12)
	assert.Less(t, m.Assortativity, 0.0)
}

func TestSummary_SkipsPathStatistics(t *testing.T) {
	g := NewGraph(3)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)

	s := g.Summary()
	assert.Equal(t, 2, s.Edges)
	assert.InDelta(t, 4.0/3.0, s.MeanDegree, 1e-12)
	assert.Zero(t, s.Diameter)
	assert.Equal(t, 2, g.Metrics().Diameter)
}
