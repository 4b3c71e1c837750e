// Package environment runs a single simulated episode.
//
// Each step has three phases: the attacker selects a target and starts its
// cognitive latency countdown, the defender is offered one call per latency
// tick, and then the attack resolves against whatever state the defender
// left behind. The defender gets one more reactive call after resolution if
// it has not acted yet. An Environment is owned by one goroutine.
package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/acpsim/internal/attacker"
	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/defender"
	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/network"
	"github.com/nvandessel/acpsim/internal/randutil"
	"github.com/nvandessel/acpsim/internal/topology"
)

// CompromiseThreshold ends an episode once more than this fraction of nodes
// is compromised.
const CompromiseThreshold = 0.7

// fullMetricsLimit is the largest graph for which per-episode topology
// metrics include path statistics.
const fullMetricsLimit = 500

// Termination reasons.
const (
	TerminationMaxSteps    = "max_steps"
	TerminationCompromised = "compromise_threshold"
	TerminationNoTargets   = "no_candidates"
)

// Outcomes recorded in traces.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeFooled      = "fooled"
	OutcomeSeenThrough = "seen_through"
	OutcomeBlocked     = "blocked"
)

// Topology is a prebuilt graph shared read-only by episodes in
// fixed-topology mode.
type Topology struct {
	Graph         *topology.Graph
	Vulnerability []float64
	Metrics       models.TopologyMetrics
}

// BuildTopology generates the graph and vulnerabilities for seed.
func BuildTopology(cfg config.SimulationConfig, seed int64) (*Topology, error) {
	rng := randutil.Derive(seed, randutil.StreamTopology)
	opts := topology.Options{
		HubRatio:        cfg.HubRatio,
		BranchingFactor: cfg.BranchingFactor,
	}
	g, err := topology.Generate(cfg.NumNodes, cfg.TopologyType, cfg.Connectivity, opts, rng)
	if err != nil {
		return nil, err
	}
	vulns, err := topology.AssignVulnerability(cfg.VulnerabilityDistribution, g, rng)
	if err != nil {
		return nil, err
	}
	t := &Topology{Graph: g, Vulnerability: vulns}
	if g.NumNodes() <= fullMetricsLimit {
		t.Metrics = g.Metrics()
	} else {
		t.Metrics = g.Summary()
	}
	return t, nil
}

// Option configures an Environment.
type Option func(*Environment)

// WithTopology runs the episode on a prebuilt topology instead of
// generating one from the episode seed.
func WithTopology(t *Topology) Option {
	return func(e *Environment) { e.topo = t }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithTraceLogger records every step to a JSONL trace.
func WithTraceLogger(tl *logging.TraceLogger) Option {
	return func(e *Environment) { e.trace = tl }
}

// Environment orchestrates one episode.
type Environment struct {
	cfg     config.SimulationConfig
	kind    defender.Kind
	episode int
	seed    int64

	topo   *Topology
	logger *slog.Logger
	trace  *logging.TraceLogger

	net      *network.Manager
	attacker *attacker.Attacker
	defender defender.Strategy
	rng      *rand.Rand

	step   int
	done   bool
	reason string
	result models.EpisodeResult
}

// New prepares episode episodeIndex of cfg for strategy kind. The episode
// seed is cfg.RandomSeed + episodeIndex. cfg must already be validated;
// generator errors are returned as *models.ConfigurationError.
func New(cfg config.SimulationConfig, kind defender.Kind, episodeIndex int, opts ...Option) (*Environment, error) {
	e := &Environment{
		cfg:     cfg,
		kind:    kind,
		episode: episodeIndex,
		seed:    randutil.EpisodeSeed(cfg.RandomSeed, episodeIndex),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.topo == nil {
		t, err := BuildTopology(cfg, e.seed)
		if err != nil {
			return nil, err
		}
		e.topo = t
	}

	net, err := network.NewManager(e.topo.Graph, e.topo.Vulnerability)
	if err != nil {
		return nil, err
	}
	strategy, err := defender.New(kind, defender.Config{
		ACPStrength: cfg.ACPStrength,
		Paranoia:    cfg.Paranoia,
	})
	if err != nil {
		return nil, err
	}

	e.net = net
	e.defender = strategy
	e.attacker = attacker.New(AttackerConfig(cfg), net.NumNodes())
	e.rng = randutil.Derive(e.seed, randutil.StreamAgents)
	e.result = e.emptyResult()
	return e, nil
}

func (e *Environment) emptyResult() models.EpisodeResult {
	return models.EpisodeResult{
		EpisodeIndex:    e.episode,
		Seed:            e.seed,
		Strategy:        e.kind.String(),
		CostByAction:    make(map[models.Action]float64),
		ActionCounts:    make(map[models.Action]int),
		TopologyMetrics: e.topo.Metrics,
	}
}

// AttackerConfig maps the simulation parameters onto the attacker model.
func AttackerConfig(cfg config.SimulationConfig) attacker.Config {
	return attacker.Config{
		LearningRate: cfg.LearningRate,
		DecayRate:    cfg.DecayRate,
		Noise:        cfg.Noise,
		LatencyMin:   cfg.LatencyWindow.Min,
		LatencyMax:   cfg.LatencyWindow.Max,
		Activation:   attacker.DefaultActivationPolicy(),
		Learning:     attacker.DefaultLearningPolicy(),
	}
}

// Network exposes the node state, read-only by convention, for tests.
func (e *Environment) Network() *network.Manager { return e.net }

// Attacker returns the episode's attacker.
func (e *Environment) Attacker() *attacker.Attacker { return e.attacker }

// Done reports whether the episode has terminated.
func (e *Environment) Done() bool { return e.done }

// Run steps the episode to completion and returns its result. A cancelled
// context stops between steps and returns ctx.Err().
func (e *Environment) Run(ctx context.Context) (models.EpisodeResult, error) {
	for !e.done {
		if err := ctx.Err(); err != nil {
			return models.EpisodeResult{}, err
		}
		if err := e.Step(); err != nil {
			return models.EpisodeResult{}, err
		}
	}
	return e.Result(), nil
}

// Result returns the episode result so far. After termination it is final.
func (e *Environment) Result() models.EpisodeResult {
	r := e.result
	r.Steps = max(e.step-e.cfg.WarmupSteps, 0)
	r.WarmupSteps = min(e.step, e.cfg.WarmupSteps)
	r.TerminationReason = e.reason
	r.FinalCompromisedRatio = e.net.CompromisedRatio()
	r.FinalAttackerConfidence = e.attacker.Confidence()
	r.RestoreNodeCount = r.ActionCounts[models.ActionRestoreNode]
	r.DeceptionsDeployed = r.ActionCounts[models.ActionDeceive]
	r.TimestepRewards = append(make([]float64, 0, len(e.result.TimestepRewards)), e.result.TimestepRewards...)
	r.CostByAction = make(map[models.Action]float64, len(e.result.CostByAction))
	for k, v := range e.result.CostByAction {
		r.CostByAction[k] = v
	}
	r.ActionCounts = make(map[models.Action]int, len(e.result.ActionCounts))
	for k, v := range e.result.ActionCounts {
		r.ActionCounts[k] = v
	}
	return r
}

// stepLedger accumulates one step's reward terms.
type stepLedger struct {
	cost      float64
	bonus     float64
	acted     bool
	decision  defender.Decision
	remaining int
	inWindow  bool
	outcome   string
}

// Step runs one three-phase step. It is a no-op once the episode is done.
// The first WarmupSteps steps are played out but discarded from the result
// and never end the episode early.
func (e *Environment) Step() error {
	if e.done {
		return nil
	}
	if e.step >= e.cfg.WarmupSteps+e.cfg.MaxSteps {
		e.finish(TerminationMaxSteps)
		return nil
	}
	e.step++
	ledger := stepLedger{decision: defender.NoOp}

	// Attack selection.
	target, ok := e.attacker.DecideTarget(e.net.AttackerView(), e.step, e.rng)
	if !ok {
		e.step--
		e.finish(TerminationNoTargets)
		return nil
	}
	latency := e.attacker.BeginLatency(e.rng)

	// Defender window.
	detected := false
	for !e.attacker.Ready() {
		remaining := e.attacker.LatencyRemaining()
		if !detected && e.rng.Float64() < e.cfg.DetectionRate {
			detected = true
		}
		if !ledger.acted {
			if err := e.offer(&ledger, target, detected, remaining); err != nil {
				return err
			}
			if ledger.acted {
				ledger.inWindow = true
			}
		}
		e.attacker.Tick()
	}

	// Attack execution.
	if err := e.execute(&ledger, target); err != nil {
		return err
	}
	if !ledger.acted {
		if err := e.offer(&ledger, target, detected, 0); err != nil {
			return err
		}
	}
	e.defender.EndStep()

	// Decoys never outlive the step that deployed them.
	for _, id := range e.net.Honeypots() {
		if err := e.net.RevertDeception(id); err != nil {
			return e.runtimeError(err)
		}
	}

	compromised := e.net.Count(models.NodeStateCompromised)
	penalty := e.cfg.CompromisePenalty * float64(compromised)
	reward := -penalty - ledger.cost + ledger.bonus
	e.result.CompromiseComponent -= penalty
	e.result.CostComponent -= ledger.cost
	e.result.BonusComponent += ledger.bonus
	e.result.TotalReward += reward
	e.result.TimestepRewards = append(e.result.TimestepRewards, reward)

	e.traceStep(target, latency, detected, ledger, reward)

	if e.step <= e.cfg.WarmupSteps {
		e.result = e.emptyResult()
		return nil
	}
	switch {
	case e.net.CompromisedRatio() > CompromiseThreshold:
		e.finish(TerminationCompromised)
	case e.step >= e.cfg.WarmupSteps+e.cfg.MaxSteps:
		e.finish(TerminationMaxSteps)
	}
	return nil
}

// offer gives the defender one call and applies its decision.
func (e *Environment) offer(l *stepLedger, target int, detected bool, remaining int) error {
	obs := defender.Observation{
		View:     e.net.DefenderView(),
		Step:     e.step,
		Detected: detected,
		Target:   -1,
	}
	if detected {
		obs.Target = target
	}
	d := e.defender.ObserveAndAct(obs, remaining, e.rng)
	if d.Action == models.ActionNoOp {
		return nil
	}

	if _, err := e.net.Apply(d.Action, d.Target); err != nil {
		return e.runtimeError(err)
	}
	if d.Action == models.ActionRestoreNode || d.Action == models.ActionIsolate {
		e.attacker.LoseFoothold(d.Target)
	}
	e.defender.Record(d)

	cost := e.defender.Cost(d.Action)
	l.cost += cost
	l.acted = true
	l.decision = d
	l.remaining = remaining
	e.result.ActionCounts[d.Action]++
	e.result.CostByAction[d.Action] -= cost

	if e.logger.Enabled(context.Background(), logging.LevelTrace) {
		e.logger.Log(context.Background(), logging.LevelTrace, "defender acted",
			"episode", e.episode, "step", e.step, "action", d.Action,
			"target", d.Target, "latency_remaining", remaining)
	}
	return nil
}

// execute resolves the pending attack against target.
func (e *Environment) execute(l *stepLedger, target int) error {
	e.result.AttacksAttempted++
	deceived := false

	if e.net.State(target) == models.NodeStateHoneypot {
		if err := e.net.RevertDeception(target); err != nil {
			return e.runtimeError(err)
		}
		if !e.attacker.SeesThrough() {
			// The decoy absorbs the attack and the attacker believes it won.
			e.result.AttacksDeceived++
			l.bonus += e.cfg.DeceptionBonus
			if l.inWindow {
				e.result.CognitiveLatencyExploitations++
			}
			// The foothold is fake; the real node was never touched.
			e.attacker.GainFoothold(target)
			e.attacker.ObserveOutcome(target, e.step, true, true, e.rng)
			l.outcome = OutcomeFooled
			return nil
		}
		e.result.DeceptionsSeenThrough++
		deceived = true
	}

	success := false
	switch e.net.State(target) {
	case models.NodeStateClean, models.NodeStatePatched:
		patched := e.net.State(target) == models.NodeStatePatched
		if e.rng.Float64() < e.net.EffectiveVulnerability(target) {
			if err := e.net.Compromise(target); err != nil {
				return e.runtimeError(err)
			}
			success = true
		} else if patched {
			l.bonus += e.cfg.AvoidanceBonus
		}
	case models.NodeStateCompromised:
		success = true
	case models.NodeStateIsolated:
		l.outcome = OutcomeBlocked
	default:
		return e.runtimeError(&network.TransitionError{Node: target, From: e.net.State(target), Action: "attack"})
	}

	if success {
		e.result.AttacksSucceeded++
		e.attacker.GainFoothold(target)
	}
	e.attacker.ObserveOutcome(target, e.step, success, deceived, e.rng)

	switch {
	case deceived:
		l.outcome = OutcomeSeenThrough
	case success:
		l.outcome = OutcomeSuccess
	case l.outcome == "":
		l.outcome = OutcomeFailure
	}
	return nil
}

func (e *Environment) finish(reason string) {
	e.done = true
	e.reason = reason
	e.logger.Debug("episode finished",
		"episode", e.episode, "strategy", e.kind.String(), "steps", e.step,
		"reason", reason, "reward", e.result.TotalReward)
}

// runtimeError wraps a rejected transition with step context.
func (e *Environment) runtimeError(err error) error {
	rerr := &models.SimulationRuntimeError{
		Episode:    e.episode,
		Step:       e.step,
		Message:    err.Error(),
		Diagnostic: map[string]any{"step": e.step, "strategy": e.kind.String()},
	}
	var te *network.TransitionError
	if errors.As(err, &te) {
		for k, v := range te.Diagnostic() {
			rerr.Diagnostic[k] = v
		}
	}
	e.done = true
	e.reason = "error"
	return fmt.Errorf("episode %d: %w", e.episode, rerr)
}

func (e *Environment) traceStep(target, latency int, detected bool, l stepLedger, reward float64) {
	if e.trace == nil {
		return
	}
	e.trace.Step(logging.StepEvent{
		Episode:          e.episode,
		Strategy:         e.kind.String(),
		Step:             e.step,
		Warmup:           e.step <= e.cfg.WarmupSteps,
		Target:           target,
		Latency:          latency,
		Detected:         detected,
		Action:           string(l.decision.Action),
		ActionTarget:     l.decision.Target,
		LatencyRemaining: l.remaining,
		Outcome:          l.outcome,
		Reward:           reward,
		Confidence:       e.attacker.Confidence(),
		CompromisedRatio: e.net.CompromisedRatio(),
	})
}
