package executor

import (
	"fmt"
	"time"
)

// Kind classifies why an execution did not produce an exit code.
// A nonzero exit is not an error; it is a Result with Success=false.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	SpawnFailed Kind = "spawn failed"
	Timeout     Kind = "timed out"
	Cancelled   Kind = "cancelled"
)

// Error is returned when a process could not be run to completion
type Error struct {
	Kind    Kind
	Command string
	Timeout time.Duration // set for Timeout
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Timeout:
		return fmt.Sprintf("%s %s after %s", e.Command, e.Kind, e.Timeout)
	case SpawnFailed:
		return fmt.Sprintf("%s: %s: %v", e.Command, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Command, e.Kind)
	}
}

// Is reports whether target is this error's Kind
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
