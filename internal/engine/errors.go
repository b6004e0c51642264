package engine

import (
	"errors"
	"fmt"
)

// UnsupportedTargetError is returned by FromOptions when the options name a
// target this engine cannot execute on, such as a remote "host:port".
type UnsupportedTargetError struct {
	Target string
}

func (e *UnsupportedTargetError) Error() string {
	return fmt.Sprintf("unsupported target %q: only in-process targets %v are available", e.Target, localTargets)
}

// IsUnsupportedTarget returns true if the error is an unsupported target error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedTarget(err error) bool {
	var ue *UnsupportedTargetError
	return errors.As(err, &ue)
}

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("engine: closed")
