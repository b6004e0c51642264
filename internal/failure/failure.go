// Package failure defines the closed set of failure kinds that flow out of a
// pipeline run.
//
// The engine builds failure chains from these variants only:
//
//	ExecutionError (run) -> StageError (stage) -> UserCodeError (step) -> cause
//
// where the innermost cause is whatever the pipeline author's function
// returned or panicked with. An assertion checkpoint that does not hold
// returns an *AssertionError as its cause. Each wrapping kind exposes its
// cause through Unwrap, so the standard errors package can walk the chain.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindExecution is the outermost run-level wrapper.
	KindExecution Kind = "EXECUTION"

	// KindStage wraps a failure raised while a stage was executing.
	KindStage Kind = "STAGE"

	// KindUserCode marks "the cause beneath this came from pipeline-author code".
	KindUserCode Kind = "USER_CODE"

	// KindAssertion is an assertion checkpoint that did not hold.
	KindAssertion Kind = "ASSERTION"

	// KindPanic is a recovered panic from user code.
	KindPanic Kind = "PANIC"

	// KindOther is any error outside the variant set.
	KindOther Kind = "OTHER"
)

// ExecutionError is the run-level failure returned by the engine.
type ExecutionError struct {
	RunID string
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("pipeline run %s failed", e.RunID)
	}
	return fmt.Sprintf("pipeline run %s failed: %v", e.RunID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// StageError locates a failure at a stage of the pipeline graph.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("stage %q failed", e.Stage)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// UserCodeError marks its cause as originating in pipeline-author code.
type UserCodeError struct {
	Step  string
	Cause error
}

func (e *UserCodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("user code in %q failed", e.Step)
	}
	return fmt.Sprintf("user code in %q failed: %v", e.Step, e.Cause)
}

func (e *UserCodeError) Unwrap() error { return e.Cause }

// AssertionError is raised by an assertion checkpoint that did not hold.
// Message carries the diagnostic exactly as the checkpoint produced it.
type AssertionError struct {
	Checkpoint string
	Message    string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Assertionf builds an AssertionError for the named checkpoint.
func Assertionf(checkpoint, format string, args ...any) *AssertionError {
	return &AssertionError{
		Checkpoint: checkpoint,
		Message:    fmt.Sprintf(format, args...),
	}
}

// PanicError carries a value recovered from a panic in user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error, so that
// panic(someAssertionError) still classifies as an assertion.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Classify returns the kind of err itself, without looking at its causes.
func Classify(err error) Kind {
	switch err.(type) {
	case *ExecutionError:
		return KindExecution
	case *StageError:
		return KindStage
	case *UserCodeError:
		return KindUserCode
	case *AssertionError:
		return KindAssertion
	case *PanicError:
		return KindPanic
	default:
		return KindOther
	}
}

// IsAssertion reports whether any error in err's chain is an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// IsUserCode reports whether any error in err's chain is a UserCodeError.
func IsUserCode(err error) bool {
	var ue *UserCodeError
	return errors.As(err, &ue)
}

// Chain returns err and each of its causes, outermost first, following the
// single-cause Unwrap relation. Errors that only unwrap to multiple causes
// terminate the chain.
func Chain(err error) []error {
	var chain []error
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		chain = append(chain, cur)
	}
	return chain
}
