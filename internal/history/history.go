package history

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSize is the number of entries kept when no size is configured
const DefaultSize = 100

// tailLimit caps the stderr kept per entry
const tailLimit = 2048

// Entry records one finished or cancelled operation
type Entry struct {
	ID        string
	Command   string
	Operation string
	Success   bool
	Cancelled bool
	ExitCode  int
	Error     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	// StderrTail is the end of the captured stderr, for failure reports
	StderrTail string
}

// Status is a one-word outcome
func (e Entry) Status() string {
	switch {
	case e.Success:
		return "success"
	case e.Cancelled:
		return "cancelled"
	case e.Error != "":
		return "error"
	default:
		return "failed"
	}
}

// String renders the entry on one line
func (e Entry) String() string {
	s := fmt.Sprintf("%s %s %s in %s", e.Command, e.Operation, e.Status(), e.Duration.Round(time.Millisecond))
	if !e.Success && !e.Cancelled && e.Error == "" {
		s += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	return s
}

// Ring is a fixed-size, append-only log of entries. Once full, each append
// drops the oldest entry.
type Ring struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// New creates a ring holding at most size entries
func New(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Append stores e, assigning an ID if it has none, and returns the stored copy
func (r *Ring) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Duration == 0 && !e.EndTime.IsZero() {
		e.Duration = e.EndTime.Sub(e.StartTime)
	}
	e.StderrTail = Tail(e.StderrTail, tailLimit)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return e
}

// All returns entries oldest first
func (r *Ring) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastLocked(r.lenLocked())
}

// Last returns up to n of the most recent entries, oldest first
func (r *Ring) Last(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.lenLocked() {
		n = r.lenLocked()
	}
	return r.lastLocked(n)
}

// Latest returns the most recent entry
func (r *Ring) Latest() (Entry, bool) {
	last := r.Last(1)
	if len(last) == 0 {
		return Entry{}, false
	}
	return last[0], true
}

// Len returns the number of stored entries
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

// Cap returns the ring size
func (r *Ring) Cap() int {
	return len(r.entries)
}

// Clear drops every entry
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		r.entries[i] = Entry{}
	}
	r.next = 0
	r.full = false
}

func (r *Ring) lenLocked() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}

func (r *Ring) lastLocked(n int) []Entry {
	out := make([]Entry, n)
	size := len(r.entries)
	start := (r.next - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = r.entries[(start+i)%size]
	}
	return out
}

// Tail returns the last limit bytes of s, starting on a line boundary when
// one is available.
func Tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[len(s)-limit:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
