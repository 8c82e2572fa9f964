package server

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a tracked server
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// stopped and error are terminal for a record; a new start replaces the record
var stateTransitionMap = map[Status][]Status{
	StatusStarting: {StatusRunning, StatusStopping, StatusError},
	StatusRunning:  {StatusStopping, StatusStopped, StatusError},
	StatusStopping: {StatusStopped, StatusError},
	StatusStopped:  {},
	StatusError:    {},
}

// ValidTransition reports whether a record may move from src to dst
func ValidTransition(src, dst Status) bool {
	for _, s := range stateTransitionMap[src] {
		if s == dst {
			return true
		}
	}
	return false
}

// Active reports whether the status holds the port
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusRunning || s == StatusStopping
}

// Instance is a snapshot of one tracked server
type Instance struct {
	Port             int
	PID              int // 0 until discovered
	Status           Status
	StartTime        time.Time
	WorkingDirectory string
	LastError        string
}

// URL is where the agent listens
func (i Instance) URL() string {
	return fmt.Sprintf("http://localhost:%d", i.Port)
}

// Uptime is the time since start for live servers, zero otherwise
func (i Instance) Uptime() time.Duration {
	if i.Status != StatusRunning || i.StartTime.IsZero() {
		return 0
	}
	return time.Since(i.StartTime)
}
