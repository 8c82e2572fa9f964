package orchestrator

import "fmt"

// Kind classifies why an operation could not be run
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	WorkspaceMissing Kind = "workspace missing"
	UnknownOperation Kind = "unknown operation"
	InvalidArguments Kind = "invalid arguments"
	ExecutionFailed  Kind = "execution failed"
)

// Error wraps validation, executor and lookup failures with the operation
// they belong to. errors.Is matches both the Kind and the wrapped cause, so
// callers can test for validator.MissingRequiredArgument or
// executor.Timeout directly.
type Error struct {
	Kind      Kind
	Command   string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	op := e.Command + " " + e.Operation
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", op, e.Kind, e.Err)
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
