package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/roach88/pipetest/internal/failure"
	"github.com/roach88/pipetest/internal/options"
	"github.com/roach88/pipetest/internal/pipeline"
	"github.com/roach88/pipetest/internal/store"
)

// localTargets are the targets served in-process.
var localTargets = []string{options.TestTarget, options.LocalTarget, options.CollectionTarget}

// Engine executes pipelines in-process for one bound configuration.
//
// Thread-safety model:
//   - Run(): safe from any goroutine; runs are independent
//   - Options(): safe from any goroutine
//   - Close(): once, after all runs returned
type Engine struct {
	opts        options.Options
	store       *store.Store
	clock       *Clock
	ids         IDGenerator
	logger      *slog.Logger
	parallelism int
	closed      atomic.Bool
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger for run lifecycle messages.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the run ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// FromOptions creates an Engine bound to opts.
//
// The target must be one of the in-process targets; anything else returns
// an *UnsupportedTargetError. The aggregator store is opened at
// opts.MetricsDB and stays open until Close.
func FromOptions(opts options.Options, eopts ...Option) (*Engine, error) {
	if !slices.Contains(localTargets, opts.Target) {
		return nil, &UnsupportedTargetError{Target: opts.Target}
	}

	e := &Engine{
		opts:        opts.Clone(),
		ids:         UUIDv7Generator{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism: opts.Parallelism,
	}
	for _, opt := range eopts {
		opt(e)
	}
	if e.parallelism <= 0 {
		e.parallelism = runtime.GOMAXPROCS(0)
	}

	path := opts.MetricsDB
	if path == "" {
		path = options.DefaultMetricsDB
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics store %q: %w", path, err)
	}
	seq, err := s.LastSeq(context.Background())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open metrics store %q: %w", path, err)
	}
	e.store = s
	e.clock = NewClockAt(seq)

	return e, nil
}

// Options returns a copy of the bound configuration.
func (e *Engine) Options() options.Options {
	return e.opts.Clone()
}

// Run executes p to completion and records the run.
//
// A failure inside the pipeline is returned as a *failure.ExecutionError
// together with a Result in StateFailed, whose aggregators are still
// readable. Errors raised before execution starts (invalid graph, closed
// engine, store failure) are returned with a nil Result.
func (e *Engine) Run(ctx context.Context, p *pipeline.Pipeline) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := pipeline.Validate(p); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	digest, err := pipeline.Digest(p)
	if err != nil {
		return nil, fmt.Errorf("digest pipeline %q: %w", p.Name(), err)
	}

	jobName := e.opts.JobName
	if jobName == "" {
		jobName = p.Name()
	}

	runID := e.ids.Generate()
	err = e.store.CreateRun(ctx, store.Run{
		ID:             runID,
		JobName:        jobName,
		Pipeline:       p.Name(),
		PipelineDigest: digest,
		Streaming:      e.opts.Streaming,
		Labels:         e.opts.Labels,
		StartedSeq:     e.clock.Next(),
	})
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	logger := e.logger.With("run_id", runID, "pipeline", p.Name())
	logger.Debug("run started", "streaming", e.opts.Streaming, "parallelism", e.parallelism)

	x := newExecution(p, e.parallelism, logger)
	var execErr error
	if e.opts.Streaming {
		execErr = x.stream(ctx)
	} else {
		execErr = x.batch(ctx)
	}

	res := &Result{runID: runID, state: StateDone, store: e.store, outputs: x.outputs}
	status, errMsg := store.RunSucceeded, ""
	if execErr != nil {
		execErr = &failure.ExecutionError{RunID: runID, Cause: execErr}
		res.state = StateFailed
		status, errMsg = store.RunFailed, execErr.Error()
	}

	// Bookkeeping runs even when ctx was cancelled mid-run.
	if err := e.record(context.WithoutCancel(ctx), runID, x.aggs.snapshot(), status, errMsg); err != nil {
		if execErr != nil {
			logger.Error("failed to record failed run", "error", err)
			return res, execErr
		}
		return nil, err
	}

	if execErr != nil {
		logger.Debug("run failed", "error", execErr)
		return res, execErr
	}
	logger.Debug("run finished")
	return res, nil
}

func (e *Engine) record(ctx context.Context, runID string, aggs map[string]int64, status store.RunStatus, errMsg string) error {
	if err := e.store.WriteAggregators(ctx, runID, aggs); err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	if err := e.store.FinishRun(ctx, runID, status, errMsg, e.clock.Next()); err != nil {
		return fmt.Errorf("record run %s: %w", runID, err)
	}
	return nil
}

// Close releases the aggregator store. Results obtained earlier can no
// longer read aggregators after Close.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.store.Close()
}
