// Package experiment runs batches of independent episodes and turns their
// results into a statistical report.
//
// Episode i of every strategy uses seed RandomSeed+i, so strategies are
// compared on common random numbers. Workers keep local result buffers that
// are merged and sorted once all of them have finished; per-episode failures
// are recorded and the batch continues.
package experiment

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/defender"
	"github.com/nvandessel/acpsim/internal/environment"
	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/models"
	"github.com/nvandessel/acpsim/internal/randutil"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records episode and run metrics into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = reg }
}

// WithTraceLogger writes per-step traces of every episode.
func WithTraceLogger(tl *logging.TraceLogger) Option {
	return func(r *Runner) { r.trace = tl }
}

// WithVersion stamps reports with build information.
func WithVersion(version, commit string) Option {
	return func(r *Runner) {
		r.version = version
		r.commit = commit
	}
}

// WithProgress is called after every finished episode with the number done
// and the number planned. It is called from worker goroutines.
func WithProgress(fn func(done, planned int)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner executes experiments for one configuration.
type Runner struct {
	cfg      config.SimulationConfig
	logger   *slog.Logger
	metrics  *metrics.Registry
	trace    *logging.TraceLogger
	version  string
	commit   string
	progress func(done, planned int)
	now      func() time.Time

	// beforeEpisode runs inside the episode's recover scope.
	beforeEpisode func(kind defender.Kind, idx int)
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg config.SimulationConfig, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logging.Discard(),
		version: "dev",
		commit:  "none",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type job struct {
	episode int
	kind    defender.Kind
}

// buffer is one worker's private output.
type buffer struct {
	results  []models.EpisodeResult
	failures []models.EpisodeFailure
}

// Run executes NumEpisodes episodes for each strategy and analyses them.
// Configuration errors are returned before any episode starts. If ctx is
// cancelled, Run stops dispatching, waits for running episodes to notice,
// and returns the partial report with Cancelled set and a nil error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	var topo *environment.Topology
	if r.cfg.FixedTopology {
		t, err := environment.BuildTopology(r.cfg, r.cfg.RandomSeed)
		if err != nil {
			return nil, err
		}
		topo = t
	}

	start := r.now()
	kinds := defender.AllKinds()
	planned := r.cfg.NumEpisodes * len(kinds)
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, planned)

	r.logger.Info("experiment started",
		"episodes", r.cfg.NumEpisodes, "strategies", len(kinds), "workers", workers,
		"seed", r.cfg.RandomSeed, "fixed_topology", r.cfg.FixedTopology)
	r.metrics.StartRun(planned)

	jobs := make(chan job)
	var finished atomic.Int64
	buffers := make([]buffer, workers)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < r.cfg.NumEpisodes; i++ {
			for _, kind := range kinds {
				select {
				case jobs <- job{episode: i, kind: kind}:
				case <-ctx.Done():
					return nil
				}
			}
		}
		return nil
	})
	for w := range buffers {
		buf := &buffers[w]
		g.Go(func() error {
			for j := range jobs {
				r.runJob(ctx, j, topo, buf)
				if r.progress != nil {
					r.progress(int(finished.Add(1)), planned)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		ConfigSnapshot:  r.cfg,
		VersionMetadata: NewVersionMetadata(r.version, r.commit, start),
		Cancelled:       ctx.Err() != nil,
		RawResults:      []models.EpisodeResult{},
		Failures:        []models.EpisodeFailure{},
	}
	for _, buf := range buffers {
		report.RawResults = append(report.RawResults, buf.results...)
		report.Failures = append(report.Failures, buf.failures...)
	}
	slices.SortFunc(report.RawResults, func(a, b models.EpisodeResult) int {
		return cmp.Or(cmp.Compare(a.EpisodeIndex, b.EpisodeIndex), cmp.Compare(strategyOrder(a.Strategy), strategyOrder(b.Strategy)))
	})
	slices.SortFunc(report.Failures, func(a, b models.EpisodeFailure) int {
		return cmp.Or(cmp.Compare(a.EpisodeIndex, b.EpisodeIndex), cmp.Compare(strategyOrder(a.Strategy), strategyOrder(b.Strategy)))
	})
	report.Counts = Counts{
		Planned:   planned,
		Succeeded: len(report.RawResults),
		Failed:    len(report.Failures),
		Total:     len(report.RawResults) + len(report.Failures),
	}

	if len(report.RawResults) > 0 {
		analysis, err := Analyze(report.RawResults, r.cfg, randutil.Derive(r.cfg.RandomSeed, randutil.StreamBootstrap))
		if err != nil {
			r.logger.Warn("analysis failed", "error", err)
		} else {
			report.Analysis = analysis
		}
	}

	status := metrics.StatusSuccess
	if report.Cancelled {
		status = metrics.StatusCancelled
	}
	elapsed := r.now().Sub(start)
	r.metrics.RecordRun(status, elapsed)
	r.logger.Info("experiment finished",
		"run_id", report.VersionMetadata.RunID, "succeeded", report.Counts.Succeeded,
		"failed", report.Counts.Failed, "cancelled", report.Cancelled, "elapsed", elapsed)
	return report, nil
}

// runJob runs one episode into buf. Episodes interrupted by cancellation are
// dropped rather than recorded as failures.
func (r *Runner) runJob(ctx context.Context, j job, topo *environment.Topology, buf *buffer) {
	res, err := r.runEpisode(ctx, j.kind, j.episode, topo)
	switch {
	case err == nil:
		buf.results = append(buf.results, res)
		r.metrics.RecordEpisode(res)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return
	default:
		f := models.EpisodeFailure{
			EpisodeIndex: j.episode,
			Seed:         randutil.EpisodeSeed(r.cfg.RandomSeed, j.episode),
			Strategy:     j.kind.String(),
			Error:        err.Error(),
		}
		var rerr *models.SimulationRuntimeError
		if errors.As(err, &rerr) {
			f.Diagnostic = rerr.Diagnostic
		}
		buf.failures = append(buf.failures, f)
		r.metrics.RecordEpisodeFailure(f.Strategy)
		r.logger.Warn("episode failed", "episode", j.episode, "strategy", f.Strategy, "error", err)
	}
}

// runEpisode runs a single episode, converting panics into
// SimulationRuntimeErrors.
func (r *Runner) runEpisode(ctx context.Context, kind defender.Kind, idx int, topo *environment.Topology) (res models.EpisodeResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &models.SimulationRuntimeError{
				Episode:    idx,
				Message:    fmt.Sprintf("panic: %v", p),
				Diagnostic: map[string]any{"strategy": kind.String()},
			}
		}
	}()
	if r.beforeEpisode != nil {
		r.beforeEpisode(kind, idx)
	}

	opts := []environment.Option{
		environment.WithLogger(r.logger),
		environment.WithTraceLogger(r.trace),
	}
	if topo != nil {
		opts = append(opts, environment.WithTopology(topo))
	}
	env, err := environment.New(r.cfg, kind, idx, opts...)
	if err != nil {
		return models.EpisodeResult{}, err
	}
	return env.Run(ctx)
}

// RunSingleConfiguration runs one episode of cfg.Defender with seed
// cfg.RandomSeed. It is the entry point for covering-array rows.
func RunSingleConfiguration(ctx context.Context, cfg config.SimulationConfig, opts ...Option) (models.EpisodeResult, error) {
	if err := cfg.Validate(); err != nil {
		return models.EpisodeResult{}, err
	}
	kind, err := defender.ParseKind(cfg.Defender)
	if err != nil {
		return models.EpisodeResult{}, err
	}
	r := NewRunner(cfg, opts...)
	res, err := r.runEpisode(ctx, kind, 0, nil)
	if err != nil {
		r.metrics.RecordEpisodeFailure(kind.String())
		return models.EpisodeResult{}, err
	}
	r.metrics.RecordEpisode(res)
	return res, nil
}

func strategyOrder(name string) int {
	k, err := defender.ParseKind(name)
	if err != nil {
		return len(defender.AllKinds())
	}
	return int(k)
}
