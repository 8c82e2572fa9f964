package server

import "fmt"

// Kind classifies server lifecycle failures
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	PortInUse         Kind = "port in use"
	NoAvailablePort   Kind = "no available port"
	ServerStartFailed Kind = "server start failed"
	ServerStopFailed  Kind = "server stop failed"
	ServerNotFound    Kind = "server not found"
)

// Error carries the port and, for PortInUse on a tracked server, its status
type Error struct {
	Kind   Kind
	Port   int
	Status Status
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == PortInUse && e.Status != "":
		return fmt.Sprintf("port %d already in use by another server (%s)", e.Port, e.Status)
	case e.Kind == PortInUse:
		return fmt.Sprintf("port %d is already in use", e.Port)
	case e.Kind == NoAvailablePort:
		return fmt.Sprintf("no available port starting at %d: %v", e.Port, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s on port %d: %v", e.Kind, e.Port, e.Err)
	default:
		return fmt.Sprintf("%s on port %d", e.Kind, e.Port)
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
