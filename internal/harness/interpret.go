package harness

import (
	"errors"

	"github.com/roach88/pipetest/internal/failure"
)

// Interpret maps a raw engine failure to the error a test should see.
//
// The cause chain of raw is walked to its end. The last *failure.UserCodeError
// passed on the way (one that itself has a cause) is peeled by one level,
// and its direct cause becomes the effective failure; without such a
// wrapper the end of the chain is the effective failure. An effective
// *failure.AssertionError is returned as is. Anything else is returned as a
// *PipelineExecutionError.
//
// Interpret(nil) returns nil.
func Interpret(raw error) error {
	if raw == nil {
		return nil
	}

	var wrapper *failure.UserCodeError
	current := raw
	for {
		next := errors.Unwrap(current)
		if next == nil {
			break
		}
		if uc, ok := current.(*failure.UserCodeError); ok {
			wrapper = uc
		}
		current = next
	}
	if wrapper != nil {
		current = wrapper.Cause
	}

	if ae, ok := current.(*failure.AssertionError); ok {
		return ae
	}
	return &PipelineExecutionError{Cause: current}
}
