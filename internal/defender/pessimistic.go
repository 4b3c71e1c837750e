package defender

import (
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/models"
)

// Pessimistic assumes the worst: any suspicion triggers RESTORE_NODE or
// ISOLATE. It never deceives.
type Pessimistic struct {
	base
	cfg Config
}

// NewPessimistic creates a pessimistic defender.
func NewPessimistic(cfg Config) *Pessimistic {
	return &Pessimistic{base: newBase(), cfg: cfg}
}

// Kind returns KindPessimistic.
func (p *Pessimistic) Kind() Kind { return KindPessimistic }

// ObserveAndAct remediates as soon as there is suspicion.
func (p *Pessimistic) ObserveAndAct(obs Observation, latencyRemaining int, rng *rand.Rand) Decision {
	return p.enter(latencyRemaining, remediate(obs, latencyRemaining, p.cfg.Paranoia, rng))
}

// remediate is the worst-case policy both strategies fall back to.
//
// Suspicion is a detected scan or any compromised node. Without suspicion
// the defender waits while more window ticks remain, then draws a single
// paranoia roll on its last chance of the step. Targets, in order: a
// compromised hub (ISOLATE), the most connected compromised node, the
// detected target if still clean, the most vulnerable clean node.
func remediate(obs Observation, latencyRemaining int, paranoia float64, rng *rand.Rand) Decision {
	view := obs.View
	compromised := view.Compromised()
	suspicious := obs.Detected || len(compromised) > 0
	if !suspicious {
		if latencyRemaining > 1 {
			return NoOp
		}
		if rng.Float64() >= paranoia {
			return NoOp
		}
	}

	if len(compromised) > 0 {
		for _, id := range compromised {
			if view.IsHub(id) {
				return Decision{Action: models.ActionIsolate, Target: id}
			}
		}
		best := compromised[0]
		for _, id := range compromised[1:] {
			if view.Degree(id) > view.Degree(best) {
				best = id
			}
		}
		return Decision{Action: models.ActionRestoreNode, Target: best}
	}

	if obs.Detected && obs.Target >= 0 && view.State(obs.Target) == models.NodeStateClean {
		return Decision{Action: models.ActionRestoreNode, Target: obs.Target}
	}

	weakest := -1
	for id := 0; id < view.NumNodes(); id++ {
		if view.State(id) != models.NodeStateClean {
			continue
		}
		if weakest < 0 || view.Vulnerability(id) > view.Vulnerability(weakest) {
			weakest = id
		}
	}
	if weakest < 0 {
		return NoOp
	}
	return Decision{Action: models.ActionRestoreNode, Target: weakest}
}
