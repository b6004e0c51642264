package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pipetest/internal/engine"
	"github.com/roach88/pipetest/internal/options"
	"github.com/roach88/pipetest/internal/pipeline"
)

// RunnerName is the runner recorded in configurations built by Create.
const RunnerName = "TestRunner"

// Result is the view of a completed run the harness needs.
type Result interface {
	AggregatorValue(ctx context.Context, name string) (int64, error)
}

// Executor is the execution delegate a TestRunner forwards runs to.
type Executor interface {
	Run(ctx context.Context, p *pipeline.Pipeline) (Result, error)
	Options() options.Options
	Close() error
}

// DelegateFactory builds the execution delegate for a derived test
// configuration.
type DelegateFactory func(opts options.Options) (Executor, error)

// Option configures a TestRunner.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	engineOpts []engine.Option
	factory    DelegateFactory
}

// WithLogger sets the logger used by the runner and the engine.
// Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEngineOptions passes options to the default engine delegate.
// Ignored when WithDelegate is used.
func WithEngineOptions(eopts ...engine.Option) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, eopts...)
	}
}

// WithDelegate replaces the engine delegate.
func WithDelegate(factory DelegateFactory) Option {
	return func(c *config) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// TestRunner runs pipelines on the engine's test environment and turns
// the outcome into a single error a test can assert on.
type TestRunner struct {
	delegate Executor
	logger   *slog.Logger
}

// FromOptions validates opts and builds a runner bound to the test
// configuration derived from them.
//
// Invalid options return an *options.ConfigurationError. The target set on
// opts is discarded; the runner always uses options.TestTarget.
func FromOptions(opts options.Options, hopts ...Option) (*TestRunner, error) {
	cfg := &config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range hopts {
		opt(cfg)
	}
	if cfg.factory == nil {
		cfg.factory = engineDelegate(cfg)
	}

	if err := options.Validate(opts); err != nil {
		return nil, err
	}
	derived := options.DeriveTestOptions(opts)
	if opts.Target != derived.Target {
		cfg.logger.Debug("target replaced by test target", "target", opts.Target, "test_target", derived.Target)
	}

	delegate, err := cfg.factory(derived)
	if err != nil {
		if options.IsConfigurationError(err) {
			return nil, err
		}
		return nil, &options.ConfigurationError{
			Message: fmt.Sprintf("cannot create execution delegate: %v", err),
			Cause:   err,
		}
	}

	return &TestRunner{delegate: delegate, logger: cfg.logger}, nil
}

// Create builds a runner from default options, in streaming or batch mode.
func Create(streaming bool, hopts ...Option) (*TestRunner, error) {
	opts := options.Default()
	opts.Runner = RunnerName
	opts.Streaming = streaming
	return FromOptions(opts, hopts...)
}

// Run executes p and blocks until it completes.
//
// A failed run returns Interpret's error. A completed run returns its
// result, unless Reconcile finds that not every assertion succeeded.
func (r *TestRunner) Run(ctx context.Context, p *pipeline.Pipeline) (Result, error) {
	res, err := r.delegate.Run(ctx, p)
	if err != nil {
		r.logger.Debug("pipeline run failed", "error", err)
		return nil, Interpret(err)
	}
	if err := Reconcile(ctx, p, res); err != nil {
		r.logger.Debug("pipeline assertions not reconciled", "error", err)
		return nil, err
	}
	return res, nil
}

// Options returns the configuration the runner is bound to.
func (r *TestRunner) Options() options.Options {
	return r.delegate.Options()
}

// Close releases the delegate's resources.
func (r *TestRunner) Close() error {
	return r.delegate.Close()
}

// engineDelegate returns the default factory, backed by engine.FromOptions.
func engineDelegate(cfg *config) DelegateFactory {
	return func(opts options.Options) (Executor, error) {
		eopts := append([]engine.Option{engine.WithLogger(cfg.logger)}, cfg.engineOpts...)
		e, err := engine.FromOptions(opts, eopts...)
		if err != nil {
			return nil, err
		}
		return engineExecutor{e}, nil
	}
}

// engineExecutor adapts *engine.Engine to Executor.
type engineExecutor struct {
	*engine.Engine
}

func (x engineExecutor) Run(ctx context.Context, p *pipeline.Pipeline) (Result, error) {
	res, err := x.Engine.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	return res, nil
}
