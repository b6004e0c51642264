package harness

import (
	"context"
	"errors"

	"github.com/roach88/pipetest/internal/pipeline"
)

var errNoResult = errors.New("run produced no result")

// Reconcile checks that every assertion checkpoint declared in p reported
// success in result.
//
// The success counter is only read when p declares at least one checkpoint.
// A failed read returns an *AggregatorRetrievalError; a count that differs
// from the declared number returns an *AssertionCountMismatch.
func Reconcile(ctx context.Context, p *pipeline.Pipeline, result Result) error {
	expected := pipeline.CountAssertions(p)

	var succeeded int64
	if expected > 0 {
		if result == nil {
			return &AggregatorRetrievalError{Name: pipeline.SuccessCounter, Cause: errNoResult}
		}
		v, err := result.AggregatorValue(ctx, pipeline.SuccessCounter)
		if err != nil {
			return &AggregatorRetrievalError{Name: pipeline.SuccessCounter, Cause: err}
		}
		succeeded = v
	}

	if int64(expected) != succeeded {
		return &AssertionCountMismatch{Expected: expected, Succeeded: succeeded}
	}
	return nil
}
