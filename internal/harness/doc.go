// Package harness provides the test runner used to execute pipelines in
// tests: a thin, synchronous adapter around the in-process engine.
//
// The harness adds three guarantees on top of the engine:
//
//   - Every configuration it runs with targets the engine's test
//     environment (options.TestTarget), whatever target the caller set.
//   - A failed run surfaces the failure that matters. If an assertion
//     failed inside user code, the original *failure.AssertionError is
//     returned unchanged. Anything else is returned as a
//     *PipelineExecutionError carrying the root cause.
//   - A run that completes is only a success if every assertion checkpoint
//     in the pipeline reported success. Otherwise an
//     *AssertionCountMismatch is returned.
//
// # Usage
//
//	runner, err := harness.Create(false)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	p := pipeline.New("words")
//	words := pipeline.Create(p, "words", ir.Values("a", "bb")...)
//	pipeline.AssertThat(p, words).HasSize(2)
//
//	if _, err := runner.Run(ctx, p); err != nil {
//	    return err // *failure.AssertionError, *PipelineExecutionError, ...
//	}
//
// # Concurrency
//
// The runner starts no goroutines of its own and holds no mutable state
// after construction. Run blocks until the engine returns; the context is
// handed to the engine as is.
package harness
