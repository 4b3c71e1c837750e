package topology

import (
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/randutil"
)

// Distribution names a vulnerability distribution.
type Distribution string

const (
	DistUniform     Distribution = "uniform"
	DistNormal      Distribution = "normal"
	DistExponential Distribution = "exponential"
	DistBimodal     Distribution = "bimodal"
	DistGradient    Distribution = "gradient" // hubs and core secure, periphery vulnerable
	DistInverse     Distribution = "inverse"  // hubs and core vulnerable (insider threat)
	DistAuto        Distribution = "auto"
)

// Distributions lists every supported distribution.
func Distributions() []Distribution {
	return []Distribution{DistUniform, DistNormal, DistExponential, DistBimodal, DistGradient, DistInverse, DistAuto}
}

// AssignVulnerability returns one vulnerability per node of g, each within
// [0, 1]. Topology-aware distributions read hub membership or levels from g
// and fall back to uniform when g carries neither.
func AssignVulnerability(dist string, g *Graph, rng *rand.Rand) ([]float64, error) {
	d := Distribution(dist)
	if d == DistAuto {
		d = DistUniform
		if g.Type() == TypeHubSpoke || g.Type() == TypeHierarchical {
			d = DistGradient
		}
	}

	n := g.NumNodes()
	out := make([]float64, n)
	switch d {
	case DistUniform:
		for i := range out {
			out[i] = 0.5
		}
	case DistNormal:
		for i := range out {
			out[i] = randutil.Clamp(0.5+0.15*rng.NormFloat64(), 0.1, 0.9)
		}
	case DistExponential:
		for i := range out {
			out[i] = randutil.Clamp(0.3*rng.ExpFloat64(), 0.1, 0.9)
		}
	case DistBimodal:
		for i := range out {
			if rng.Float64() < 0.5 {
				out[i] = randutil.Uniform(rng, 0.1, 0.3)
			} else {
				out[i] = randutil.Uniform(rng, 0.7, 0.9)
			}
		}
	case DistGradient, DistInverse:
		assignStructural(out, g, d == DistInverse)
	default:
		return nil, models.NewConfigurationError("vulnerability_distribution", "unknown distribution %q", dist)
	}

	for i := range out {
		out[i] = randutil.Clamp(out[i], 0, 1)
	}
	return out, nil
}

func assignStructural(out []float64, g *Graph, inverse bool) {
	switch {
	case g.Type() == TypeHierarchical && g.MaxLevel() > 0:
		maxLevel := float64(g.MaxLevel())
		for i := range out {
			depth := float64(g.Level(i)) / maxLevel
			if inverse {
				out[i] = 0.8 - 0.6*depth
			} else {
				out[i] = 0.3 + 0.6*depth
			}
		}
	case g.HasHubs():
		hubV, spokeV := 0.2, 0.7
		if inverse {
			hubV, spokeV = 0.8, 0.3
		}
		for i := range out {
			if g.IsHub(i) {
				out[i] = hubV
			} else {
				out[i] = spokeV
			}
		}
	default:
		for i := range out {
			out[i] = 0.5
		}
	}
}
