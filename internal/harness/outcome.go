package harness

import (
	"errors"

	"github.com/roach88/pipetest/internal/failure"
	"github.com/roach88/pipetest/internal/options"
)

// Outcome names the class of a run's result.
type Outcome string

const (
	OutcomePass               Outcome = "pass"
	OutcomeAssertionFailure   Outcome = "assertion_failure"
	OutcomeExecutionFailure   Outcome = "execution_failure"
	OutcomeCountMismatch      Outcome = "count_mismatch"
	OutcomeAggregatorError    Outcome = "aggregator_error"
	OutcomeConfigurationError Outcome = "configuration_error"
)

// Outcomes lists every outcome, in the order reports print them.
var Outcomes = []Outcome{
	OutcomePass,
	OutcomeAssertionFailure,
	OutcomeExecutionFailure,
	OutcomeCountMismatch,
	OutcomeAggregatorError,
	OutcomeConfigurationError,
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// Classify returns the outcome of an error returned by FromOptions, Create
// or Run. A nil error is a pass. Errors from outside the harness taxonomy
// classify as execution failures.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomePass
	}
	var (
		ae *failure.AssertionError
		me *AssertionCountMismatch
		re *AggregatorRetrievalError
		ce *options.ConfigurationError
	)
	switch {
	case errors.As(err, &ce):
		return OutcomeConfigurationError
	case errors.As(err, &me):
		return OutcomeCountMismatch
	case errors.As(err, &re):
		return OutcomeAggregatorError
	case IsPipelineExecutionError(err):
		return OutcomeExecutionFailure
	case errors.As(err, &ae):
		return OutcomeAssertionFailure
	default:
		return OutcomeExecutionFailure
	}
}
