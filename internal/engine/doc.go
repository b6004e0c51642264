// Package engine implements the in-process pipeline runner that the test
// harness delegates to.
//
// An Engine is bound to one options.Options value. Each call to Run executes
// a pipeline graph to completion and records the run, with its aggregator
// values, in a SQLite store.
//
// EXECUTION MODES:
//
// Batch:
// Transforms run stage by stage in declaration order. An element-wise stage
// (map, filter, flat_map) splits its input into contiguous bundles that are
// processed concurrently, bounded by Options.Parallelism. Bundle outputs are
// concatenated in bundle order, so stage output order does not depend on
// scheduling. Aggregating stages (count, assert) see their whole input at
// once.
//
// Streaming:
// Elements are pushed one at a time from each root through the fused chain
// of element-wise stages. Aggregating stages buffer their input and fire in
// declaration order once every root is exhausted; their output is pushed
// downstream the same way.
//
// FAILURES:
//
// A user function that returns an error or panics fails the run. The cause
// is wrapped, innermost first, in failure.UserCodeError (the step),
// failure.StageError (the stage) and failure.ExecutionError (the run). In
// batch mode the failure reported is the first one in bundle order, so the
// same pipeline fails the same way on every run.
//
// AGGREGATORS:
//
// Assertion checkpoints increment pipeline.SuccessCounter or
// pipeline.FailureCounter. Both counters are registered at zero when a
// pipeline holds checkpoints. Aggregators are persisted at the end of every
// run, failed runs included.
package engine
