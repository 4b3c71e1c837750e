// Package randutil builds the seeded generators threaded through the
// simulation. Nothing in acpsim draws from the global math/rand source.
package randutil

import "math/rand/v2"

// Stream identifies an independent generator derived from one seed.
type Stream uint64

const (
	StreamTopology  Stream = 0x746f706f // "topo"
	StreamAgents    Stream = 0x6167656e // "agen"
	StreamBootstrap Stream = 0x626f6f74 // "boot"
)

// New returns a PCG generator for seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// Derive returns a generator for seed that is independent of New(seed)
// and of every other stream.
func Derive(seed int64, stream Stream) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(stream)*0x9e3779b97f4a7c15+1))
}

// EpisodeSeed is the seed of episode index under base.
func EpisodeSeed(base int64, index int) int64 {
	return base + int64(index)
}

// Uniform draws from U(lo, hi).
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
