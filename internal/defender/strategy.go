// Package defender implements the defender strategies.
//
// Exactly two strategies exist, Pessimistic and OptimisticACP, enumerated by
// Kind. Both share one remediation policy; OptimisticACP differs only in
// trying a cheap deception while the attacker is still inside its cognitive
// latency window.
package defender

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/network"
)

// Kind enumerates the defender strategies.
type Kind int

const (
	KindPessimistic Kind = iota
	KindOptimisticACP
)

// AllKinds lists every strategy, baseline first.
func AllKinds() []Kind {
	return []Kind{KindPessimistic, KindOptimisticACP}
}

// String returns the configuration name of k.
func (k Kind) String() string {
	switch k {
	case KindPessimistic:
		return "pessimistic"
	case KindOptimisticACP:
		return "optimistic_acp"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, models.NewConfigurationError("defender", "unknown defender strategy %q", s)
}

// Action costs.
const (
	CostRestoreNode = 6.0
	CostIsolate     = 3.0
	CostDeceive     = 1.0
	CostNoOp        = 0.0
)

// Cost returns the fixed cost of action.
func Cost(action models.Action) float64 {
	switch action {
	case models.ActionRestoreNode:
		return CostRestoreNode
	case models.ActionIsolate:
		return CostIsolate
	case models.ActionDeceive:
		return CostDeceive
	}
	return CostNoOp
}

// Phase is the per-step defender state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseObserving Phase = "observing"
	PhaseActing    Phase = "acting"
)

// Observation is what the defender sees on one call.
type Observation struct {
	View network.DefenderView
	Step int

	// Detected is set once the attacker's scan of Target has been noticed
	// during the current step. Target is -1 while undetected.
	Detected bool
	Target   int
}

// Decision is a defender action and the node it applies to.
type Decision struct {
	Action models.Action
	Target int
}

// NoOp is the empty decision.
var NoOp = Decision{Action: models.ActionNoOp, Target: -1}

// State is the accumulated defender bookkeeping for an episode.
type State struct {
	Phase        Phase                 `json:"phase"`
	TotalCost    float64               `json:"total_cost"`
	Deceptions   int                   `json:"deceptions"`
	ActionCounts map[models.Action]int `json:"action_counts"`
}

// Strategy is the contract shared by all defenders.
type Strategy interface {
	Kind() Kind

	// ObserveAndAct is offered once per latency tick with the ticks left
	// (counting the current one) and once more after the attack resolves with
	// latencyRemaining == 0 if the defender has not acted yet this step.
	ObserveAndAct(obs Observation, latencyRemaining int, rng *rand.Rand) Decision

	// Cost returns the cost of action under this strategy's cost model.
	Cost(action models.Action) float64

	// Record books an applied decision.
	Record(d Decision)

	// EndStep returns the strategy to Idle.
	EndStep()

	State() State
}

// Config tunes the strategies.
type Config struct {
	// ACPStrength is the probability of deceiving a detected scan.
	ACPStrength float64

	// Paranoia is the probability that a defender without concrete
	// suspicion remediates anyway at the end of a step. Default: 0.8.
	Paranoia float64
}

// DefaultParanoia is the default pre-emptive remediation probability.
const DefaultParanoia = 0.8

// New returns the strategy for kind.
func New(kind Kind, cfg Config) (Strategy, error) {
	switch kind {
	case KindPessimistic:
		return NewPessimistic(cfg), nil
	case KindOptimisticACP:
		return NewOptimisticACP(cfg), nil
	}
	return nil, models.NewConfigurationError("defender", "unknown defender kind %d", int(kind))
}

// base holds the bookkeeping shared by both strategies.
type base struct {
	state State
}

func newBase() base {
	return base{state: State{Phase: PhaseIdle, ActionCounts: make(map[models.Action]int)}}
}

func (b *base) Cost(action models.Action) float64 { return Cost(action) }

func (b *base) Record(d Decision) {
	if d.Action == models.ActionNoOp {
		return
	}
	b.state.ActionCounts[d.Action]++
	b.state.TotalCost += Cost(d.Action)
	if d.Action == models.ActionDeceive {
		b.state.Deceptions++
	}
}

func (b *base) EndStep() { b.state.Phase = PhaseIdle }

func (b *base) State() State {
	s := b.state
	s.ActionCounts = make(map[models.Action]int, len(b.state.ActionCounts))
	for k, v := range b.state.ActionCounts {
		s.ActionCounts[k] = v
	}
	return s
}

// enter moves the phase machine for a call with latencyRemaining ticks left
// and the decision returned.
func (b *base) enter(latencyRemaining int, d Decision) Decision {
	switch {
	case d.Action != models.ActionNoOp:
		b.state.Phase = PhaseActing
	case latencyRemaining > 0:
		b.state.Phase = PhaseObserving
	default:
		b.state.Phase = PhaseIdle
	}
	return d
}
