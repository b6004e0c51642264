package harness

import (
	"errors"
	"fmt"
)

// PipelineExecutionError reports a run that failed for a reason other than
// an assertion. Cause is the effective failure, with the engine's execution
// and user-code wrappers removed.
type PipelineExecutionError struct {
	Cause error
}

func (e *PipelineExecutionError) Error() string {
	return fmt.Sprintf("pipeline execution failed: %v", e.Cause)
}

func (e *PipelineExecutionError) Unwrap() error { return e.Cause }

// AssertionCountMismatch reports a run that completed without error but in
// which fewer (or more) assertion checkpoints succeeded than the pipeline
// declares.
type AssertionCountMismatch struct {
	Expected  int
	Succeeded int64
}

func (e *AssertionCountMismatch) Error() string {
	return fmt.Sprintf("Expected %d successful assertions, but found %d.", e.Expected, e.Succeeded)
}

// AggregatorRetrievalError reports that the success counter of a completed
// run could not be read.
type AggregatorRetrievalError struct {
	Name  string
	Cause error
}

func (e *AggregatorRetrievalError) Error() string {
	return fmt.Sprintf("cannot read aggregator %q: %v", e.Name, e.Cause)
}

func (e *AggregatorRetrievalError) Unwrap() error { return e.Cause }

// IsPipelineExecutionError returns true if the error is a pipeline execution error.
// Uses errors.As to handle wrapped errors.
func IsPipelineExecutionError(err error) bool {
	var pe *PipelineExecutionError
	return errors.As(err, &pe)
}

// IsAssertionCountMismatch returns true if the error is an assertion count mismatch.
func IsAssertionCountMismatch(err error) bool {
	var me *AssertionCountMismatch
	return errors.As(err, &me)
}

// IsAggregatorRetrievalError returns true if the error is an aggregator retrieval error.
func IsAggregatorRetrievalError(err error) bool {
	var re *AggregatorRetrievalError
	return errors.As(err, &re)
}
