// Package attacker implements the instance-based-learning attacker.
//
// The attacker remembers past attack attempts as instances, scores candidate
// targets by a recency/frequency/outcome activation blend, and pauses for a
// cognitive latency (a logical tick countdown) between choosing a target and
// executing against it. It never sees true node state; it only learns from
// outcomes, which the defender may poison with decoys.
package attacker

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/nvandessel/acpsim/internal/network"
	"github.com/nvandessel/acpsim/internal/randutil"
)

const tieEpsilon = 1e-12

// Config configures an attacker.
type Config struct {
	LearningRate float64
	DecayRate    float64
	Noise        float64
	LatencyMin   int
	LatencyMax   int
	Activation   ActivationPolicy
	Learning     LearningPolicy
}

// Instance is one remembered attack attempt.
type Instance struct {
	Target   int     `json:"target"`
	Success  bool    `json:"success"`
	Step     int     `json:"step"`
	Weight   float64 `json:"weight"`
	Poisoned bool    `json:"poisoned"`
}

// State is a snapshot of the attacker for tracing.
type State struct {
	Confidence       float64 `json:"confidence"`
	MemorySize       int     `json:"memory_size"`
	Target           int     `json:"target"`
	LatencyRemaining int     `json:"latency_remaining"`
	Footholds        int     `json:"footholds"`
}

// Attacker is an IBL agent. It is owned by a single episode.
type Attacker struct {
	cfg        Config
	memory     []Instance
	confidence float64
	target     int
	latency    int
	footholds  []bool
	held       int
}

// New creates an attacker for a network of numNodes nodes.
func New(cfg Config, numNodes int) *Attacker {
	return &Attacker{
		cfg:        cfg,
		confidence: randutil.Clamp(cfg.Learning.InitialConfidence, 0, 1),
		target:     -1,
		footholds:  make([]bool, numNodes),
	}
}

// Confidence returns the current confidence in [0, 1].
func (a *Attacker) Confidence() float64 { return a.confidence }

// Target returns the pending target, or -1.
func (a *Attacker) Target() int { return a.target }

// Memory returns a copy of the instance memory in insertion order.
func (a *Attacker) Memory() []Instance { return slices.Clone(a.memory) }

// State returns a snapshot for tracing.
func (a *Attacker) State() State {
	return State{
		Confidence:       a.confidence,
		MemorySize:       len(a.memory),
		Target:           a.target,
		LatencyRemaining: a.latency,
		Footholds:        a.held,
	}
}

// Candidates returns the nodes the attacker would consider: reachable nodes
// it does not believe it holds, limited to the neighbours of its footholds
// when that frontier is non-empty.
func (a *Attacker) Candidates(view network.AttackerView) []int {
	n := view.NumNodes()
	var frontier []int
	if a.held > 0 {
		seen := make([]bool, n)
		for id := 0; id < n; id++ {
			if !a.footholds[id] {
				continue
			}
			for _, nb := range view.Neighbors(id) {
				if !seen[nb] && !a.footholds[nb] && view.Reachable(nb) {
					seen[nb] = true
				}
			}
		}
		for id, ok := range seen {
			if ok {
				frontier = append(frontier, id)
			}
		}
		if len(frontier) > 0 {
			return frontier
		}
	}

	var all []int
	for id := 0; id < n; id++ {
		if !a.footholds[id] && view.Reachable(id) {
			all = append(all, id)
		}
	}
	return all
}

// DecideTarget picks the next target. It returns false when no candidate is
// left. With empty memory, or on an exploratory draw, the pick is uniform;
// otherwise the highest-activation candidate wins and ties are broken with
// rng.
func (a *Attacker) DecideTarget(view network.AttackerView, step int, rng *rand.Rand) (int, bool) {
	cands := a.Candidates(view)
	if len(cands) == 0 {
		a.target = -1
		return -1, false
	}

	explore := (1 - a.confidence) * a.cfg.Activation.ExplorationScale
	if len(a.memory) == 0 || rng.Float64() < explore {
		a.target = cands[rng.IntN(len(cands))]
		return a.target, true
	}

	scores := a.activations(cands, view.NumNodes(), step, rng)
	best := math.Inf(-1)
	for _, s := range scores {
		best = max(best, s)
	}
	var tied []int
	for i, s := range scores {
		if best-s <= tieEpsilon {
			tied = append(tied, cands[i])
		}
	}
	a.target = tied[0]
	if len(tied) > 1 {
		a.target = tied[rng.IntN(len(tied))]
	}
	return a.target, true
}

type aggregate struct {
	decay   float64
	weight  float64
	outcome float64
}

// activations scores each candidate in order. Noise is drawn once per
// candidate so rng consumption depends only on the candidate count.
func (a *Attacker) activations(cands []int, numNodes, step int, rng *rand.Rand) []float64 {
	aggs := make([]aggregate, numNodes)
	d := a.cfg.DecayRate
	for _, inst := range a.memory {
		ag := &aggs[inst.Target]
		age := float64(step - inst.Step + 1)
		if age < 1 {
			age = 1
		}
		ag.decay += inst.Weight * math.Pow(age, -d)
		ag.weight += inst.Weight
		if inst.Success {
			ag.outcome += inst.Weight
		} else {
			ag.outcome -= inst.Weight
		}
	}

	p := a.cfg.Activation
	scores := make([]float64, len(cands))
	for i, id := range cands {
		noise := a.cfg.Noise * rng.NormFloat64()
		ag := aggs[id]
		if ag.weight == 0 {
			scores[i] = p.UnseenActivation + noise
			continue
		}
		scores[i] = p.RecencyWeight*math.Log(max(ag.decay, 1e-10)) +
			p.FrequencyWeight*math.Log1p(ag.weight) +
			p.OutcomeWeight*(ag.outcome/ag.weight) +
			noise
	}
	return scores
}

// BeginLatency draws the cognitive latency for the pending target, uniform
// over [LatencyMin, LatencyMax] ticks, and returns it.
func (a *Attacker) BeginLatency(rng *rand.Rand) int {
	span := a.cfg.LatencyMax - a.cfg.LatencyMin + 1
	a.latency = a.cfg.LatencyMin + rng.IntN(max(span, 1))
	return a.latency
}

// LatencyRemaining returns the ticks left before the attack resolves.
func (a *Attacker) LatencyRemaining() int { return a.latency }

// Tick advances the latency countdown by one and returns the ticks left.
func (a *Attacker) Tick() int {
	if a.latency > 0 {
		a.latency--
	}
	return a.latency
}

// Ready reports whether the pending attack may resolve.
func (a *Attacker) Ready() bool { return a.latency == 0 }

// SeesThrough reports whether the attacker is confident enough to recognise
// a decoy.
func (a *Attacker) SeesThrough() bool {
	return a.confidence > a.cfg.Learning.DeceptionResistance
}

// ObserveOutcome records the result of an attack on nodeID. deceived is set
// whenever a decoy was involved, whether or not the attacker fell for it;
// a deceived success is recorded as a poisoned instance.
func (a *Attacker) ObserveOutcome(nodeID, step int, success, deceived bool, rng *rand.Rand) {
	lp := a.cfg.Learning
	lr := a.cfg.LearningRate
	inst := Instance{Target: nodeID, Success: success, Step: step, Weight: lr}

	switch {
	case deceived:
		if success {
			inst.Poisoned = true
			inst.Weight *= randutil.Uniform(rng, lp.PoisonWeightMin, lp.PoisonWeightMax)
		}
		a.confidence -= lp.DeceptionLoss * a.confidence
	case success:
		a.confidence += lr * lp.SuccessGain * (1 - a.confidence)
	default:
		a.confidence -= lr * lp.FailureLoss * a.confidence
	}
	a.confidence = randutil.Clamp(a.confidence, 0, 1)

	a.memory = append(a.memory, inst)
	if lp.MemoryLimit > 0 && len(a.memory) > lp.MemoryLimit {
		a.prune(step)
	}
	a.target = -1
}

// prune keeps the MemoryKeep instances with the highest decayed weight,
// preserving their original order.
func (a *Attacker) prune(step int) {
	keep := a.cfg.Learning.MemoryKeep
	if keep <= 0 || keep >= len(a.memory) {
		return
	}
	type ranked struct {
		idx       int
		potential float64
	}
	r := make([]ranked, len(a.memory))
	for i, inst := range a.memory {
		age := max(float64(step-inst.Step+1), 1)
		r[i] = ranked{i, inst.Weight * math.Pow(age, -a.cfg.DecayRate)}
	}
	slices.SortStableFunc(r, func(x, y ranked) int {
		switch {
		case x.potential > y.potential:
			return -1
		case x.potential < y.potential:
			return 1
		}
		return 0
	})
	idx := make([]int, keep)
	for i := range idx {
		idx[i] = r[i].idx
	}
	slices.Sort(idx)
	kept := make([]Instance, keep)
	for i, j := range idx {
		kept[i] = a.memory[j]
	}
	a.memory = kept
}

// GainFoothold records that the attacker believes it holds id.
func (a *Attacker) GainFoothold(id int) {
	if !a.footholds[id] {
		a.footholds[id] = true
		a.held++
	}
}

// LoseFoothold records that the attacker's access to id was removed.
func (a *Attacker) LoseFoothold(id int) {
	if a.footholds[id] {
		a.footholds[id] = false
		a.held--
	}
}

// HasFoothold reports whether the attacker believes it holds id.
func (a *Attacker) HasFoothold(id int) bool { return a.footholds[id] }
