package defender

import (
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/models"
)

// OptimisticACP exploits the attacker's cognitive latency: when it detects a
// scan while the attacker is still deliberating it deploys a decoy on the
// scanned node with probability ACPStrength. Otherwise it remediates exactly
// like Pessimistic.
type OptimisticACP struct {
	base
	cfg Config
}

// NewOptimisticACP creates an ACP defender.
func NewOptimisticACP(cfg Config) *OptimisticACP {
	return &OptimisticACP{base: newBase(), cfg: cfg}
}

// Kind returns KindOptimisticACP.
func (o *OptimisticACP) Kind() Kind { return KindOptimisticACP }

// ObserveAndAct deceives inside the window and remediates otherwise. Outside
// the window (latencyRemaining == 0) no deception roll is drawn, so with a
// zero-width window it behaves exactly like Pessimistic.
func (o *OptimisticACP) ObserveAndAct(obs Observation, latencyRemaining int, rng *rand.Rand) Decision {
	if latencyRemaining > 0 {
		if obs.Detected && obs.Target >= 0 && deceivable(obs.View.State(obs.Target)) {
			if rng.Float64() < o.cfg.ACPStrength {
				return o.enter(latencyRemaining, Decision{Action: models.ActionDeceive, Target: obs.Target})
			}
			return o.enter(latencyRemaining, remediate(obs, latencyRemaining, o.cfg.Paranoia, rng))
		}
		// Hold back while the scan may still be detected.
		if latencyRemaining > 1 {
			return o.enter(latencyRemaining, NoOp)
		}
	}
	return o.enter(latencyRemaining, remediate(obs, latencyRemaining, o.cfg.Paranoia, rng))
}

func deceivable(s models.NodeState) bool {
	switch s {
	case models.NodeStateClean, models.NodeStatePatched, models.NodeStateCompromised:
		return true
	}
	return false
}
