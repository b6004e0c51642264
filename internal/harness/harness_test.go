package harness

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipetest/internal/engine"
	"github.com/roach88/pipetest/internal/failure"
	"github.com/roach88/pipetest/internal/ir"
	"github.com/roach88/pipetest/internal/options"
	"github.com/roach88/pipetest/internal/pipeline"
	"github.com/roach88/pipetest/internal/testutil"
)

// fakeExecutor returns a canned result or error and records what it was
// built with.
type fakeExecutor struct {
	opts   options.Options
	result Result
	err    error
	runs   int
	closed bool
}

func (x *fakeExecutor) Run(context.Context, *pipeline.Pipeline) (Result, error) {
	x.runs++
	return x.result, x.err
}

func (x *fakeExecutor) Options() options.Options { return x.opts }

func (x *fakeExecutor) Close() error {
	x.closed = true
	return nil
}

// withFake installs x as the delegate, capturing the derived options.
func withFake(x *fakeExecutor) Option {
	return WithDelegate(func(opts options.Options) (Executor, error) {
		x.opts = opts
		return x, nil
	})
}

func newFakeRunner(t *testing.T, x *fakeExecutor) *TestRunner {
	t.Helper()
	r, err := Create(false, withFake(x))
	require.NoError(t, err)
	return r
}

// newEngineRunner builds a runner on the real engine with a private store.
func newEngineRunner(t *testing.T, streaming bool) *TestRunner {
	t.Helper()
	opts := options.Default()
	opts.Runner = RunnerName
	opts.Streaming = streaming
	opts.MetricsDB = filepath.Join(t.TempDir(), "metrics.db")

	r, err := FromOptions(opts, WithEngineOptions(engine.WithIDGenerator(testutil.NewSequentialIDs("run"))))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestFromOptions_ForcesTestTarget(t *testing.T) {
	for _, target := range []string{"localhost:8081", "[local]", "[collection]", "[auto]", ""} {
		t.Run(target, func(t *testing.T) {
			x := &fakeExecutor{}
			opts := options.Default()
			opts.Target = target

			r, err := FromOptions(opts, withFake(x))
			require.NoError(t, err)

			assert.Equal(t, options.TestTarget, x.opts.Target)
			assert.Equal(t, options.TestTarget, r.Options().Target)
		})
	}
}

func TestFromOptions_RemoteTargetRunsOnEngine(t *testing.T) {
	opts := options.Default()
	opts.Target = "cluster.internal:8081"

	r, err := FromOptions(opts)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, options.TestTarget, r.Options().Target)
}

func TestFromOptions_DoesNotMutateCallerOptions(t *testing.T) {
	x := &fakeExecutor{}
	opts := options.Default()
	opts.Target = "localhost:8081"
	opts.Labels = map[string]string{"team": "data"}

	_, err := FromOptions(opts, withFake(x))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8081", opts.Target)
	x.opts.Labels["team"] = "changed"
	assert.Equal(t, "data", opts.Labels["team"])
}

func TestFromOptions_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*options.Options)
	}{
		{"zero parallelism", func(o *options.Options) { o.Parallelism = 0 }},
		{"empty runner", func(o *options.Options) { o.Runner = "" }},
		{"empty metrics db", func(o *options.Options) { o.MetricsDB = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := &fakeExecutor{}
			opts := options.Default()
			tt.mutate(&opts)

			_, err := FromOptions(opts, withFake(x))

			require.Error(t, err)
			assert.True(t, options.IsConfigurationError(err))
			assert.Equal(t, OutcomeConfigurationError, Classify(err))
		})
	}
}

func TestFromOptions_DelegateFailureIsConfigurationError(t *testing.T) {
	cause := errors.New("no such directory")
	_, err := Create(false, WithDelegate(func(options.Options) (Executor, error) {
		return nil, cause
	}))

	require.Error(t, err)
	assert.True(t, options.IsConfigurationError(err))
	assert.ErrorIs(t, err, cause)
}

func TestFromOptions_UnopenableMetricsDB(t *testing.T) {
	opts := options.Default()
	opts.MetricsDB = filepath.Join(t.TempDir(), "missing", "dir", "metrics.db")

	_, err := FromOptions(opts)

	assert.True(t, options.IsConfigurationError(err))
}

func TestCreate(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		x := &fakeExecutor{}
		_, err := Create(streaming, withFake(x))
		require.NoError(t, err)

		assert.Equal(t, RunnerName, x.opts.Runner)
		assert.Equal(t, streaming, x.opts.Streaming)
		assert.Equal(t, options.TestTarget, x.opts.Target)
	}
}

func TestRun_ReturnsDelegateResult(t *testing.T) {
	res := succeeded(1)
	x := &fakeExecutor{result: res}
	r := newFakeRunner(t, x)

	got, err := r.Run(context.Background(), pipelineWithAssertions(1))

	require.NoError(t, err)
	assert.Same(t, res, got)
	assert.Equal(t, 1, x.runs)
}

func TestRun_InterpretsFailure(t *testing.T) {
	ae := failure.Assertionf("check", "x != y")
	x := &fakeExecutor{err: &failure.ExecutionError{RunID: "r", Cause: &failure.UserCodeError{Step: "s", Cause: ae}}}
	r := newFakeRunner(t, x)

	res, err := r.Run(context.Background(), pipelineWithAssertions(1))

	assert.Nil(t, res)
	assert.Same(t, ae, err)
}

func TestRun_FailureSkipsReconcile(t *testing.T) {
	res := &fakeResult{err: errors.New("must not be called")}
	x := &fakeExecutor{result: res, err: errors.New("boom")}
	r := newFakeRunner(t, x)

	_, err := r.Run(context.Background(), pipelineWithAssertions(2))

	assert.True(t, IsPipelineExecutionError(err))
	assert.Zero(t, res.lookups)
}

func TestClose_ClosesDelegate(t *testing.T) {
	x := &fakeExecutor{}
	r := newFakeRunner(t, x)

	require.NoError(t, r.Close())
	assert.True(t, x.closed)
}

// Scenario A: three checkpoints, all reported as succeeded.
func TestScenarioA_AllCheckpointsSucceed(t *testing.T) {
	r := newFakeRunner(t, &fakeExecutor{result: succeeded(3)})

	_, err := r.Run(context.Background(), pipelineWithAssertions(3))

	assert.NoError(t, err)
}

// Scenario B: three checkpoints, two reported as succeeded.
func TestScenarioB_CountMismatch(t *testing.T) {
	r := newFakeRunner(t, &fakeExecutor{result: succeeded(2)})

	_, err := r.Run(context.Background(), pipelineWithAssertions(3))

	var me *AssertionCountMismatch
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 3, me.Expected)
	assert.Equal(t, int64(2), me.Succeeded)
}

// Scenario C: Execution -> user code -> assertion is re-raised verbatim.
func TestScenarioC_AssertionReRaisedVerbatim(t *testing.T) {
	ae := &failure.AssertionError{Message: "x != y"}
	raw := &failure.ExecutionError{RunID: "run-1", Cause: &failure.UserCodeError{Step: "check", Cause: ae}}
	r := newFakeRunner(t, &fakeExecutor{err: raw})

	_, err := r.Run(context.Background(), pipelineWithAssertions(1))

	assert.Same(t, ae, err)
	assert.EqualError(t, err, "x != y")
}

// Scenario D: Execution -> plain failure, no user-code wrapper.
func TestScenarioD_ExecutionFailureWrapsCause(t *testing.T) {
	npe := errors.New("nil pointer dereference")
	raw := &failure.ExecutionError{RunID: "run-1", Cause: npe}
	r := newFakeRunner(t, &fakeExecutor{err: raw})

	_, err := r.Run(context.Background(), pipelineWithAssertions(1))

	var pe *PipelineExecutionError
	require.ErrorAs(t, err, &pe)
	assert.Same(t, npe, pe.Cause)
	assert.EqualError(t, err, "pipeline execution failed: nil pointer dereference")
}

func TestEngine_PassingPipeline(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		r := newEngineRunner(t, streaming)

		p := pipeline.New("lengths")
		words := pipeline.Create(p, "words", ir.Values("a", "bb", "ccc")...)
		lengths := pipeline.Map(p, "lengths", words, func(v ir.Value) (ir.Value, error) {
			return ir.Int(len(v.(ir.String))), nil
		})
		pipeline.AssertThat(p, lengths).ContainsInAnyOrder(ir.Values(3, 1, 2)...)
		pipeline.AssertThat(p, lengths).HasSize(3)
		pipeline.AssertThat(p, pipeline.Count(p, "count", words)).ContainsInAnyOrder(ir.Int(3))

		res, err := r.Run(context.Background(), p)
		require.NoError(t, err, "streaming=%v", streaming)

		n, err := res.AggregatorValue(context.Background(), pipeline.SuccessCounter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	}
}

func TestEngine_FailingAssertionIsReturnedVerbatim(t *testing.T) {
	r := newEngineRunner(t, false)

	p := pipeline.New("empty-check")
	in := pipeline.Create(p, "in", ir.Values("x")...)
	pipeline.AssertThat(p, in).Named("nothing").Empty()

	_, err := r.Run(context.Background(), p)

	var ae *failure.AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Same(t, ae, err)
	assert.Equal(t, "nothing/empty", ae.Checkpoint)
	assert.Equal(t, `nothing/empty: expected "in" to be empty, but was ["x"]`, ae.Message)
}

func TestEngine_UserErrorIsExecutionFailure(t *testing.T) {
	cause := errors.New("lookup failed")
	r := newEngineRunner(t, true)

	p := pipeline.New("lookup")
	in := pipeline.Create(p, "in", ir.Values(1)...)
	pipeline.Map(p, "enrich", in, func(ir.Value) (ir.Value, error) {
		return nil, cause
	})

	_, err := r.Run(context.Background(), p)

	var pe *PipelineExecutionError
	require.ErrorAs(t, err, &pe)
	assert.Same(t, cause, pe.Cause)
}

func TestEngine_CancelledRunIsExecutionFailure(t *testing.T) {
	r := newEngineRunner(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := pipeline.New("cancel")
	in := pipeline.Create(p, "in", ir.Values(1, 2)...)
	pipeline.Filter(p, "stop", in, func(ir.Value) (bool, error) {
		cancel()
		return true, nil
	})

	_, err := r.Run(ctx, p)

	var pe *PipelineExecutionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe.Cause, context.Canceled)
}
