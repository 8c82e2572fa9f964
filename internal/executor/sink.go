package executor

import (
	"bytes"
	"strings"
	"sync"
)

// Sink receives incremental output of one execution. Calls are serialized;
// implementations do not need their own locking for a single execution.
type Sink interface {
	OnOutput(line string)
	OnError(line string)
	OnProgress(message string)
}

// SinkFuncs adapts plain functions to a Sink. Nil fields are ignored.
type SinkFuncs struct {
	Output   func(line string)
	Error    func(line string)
	Progress func(message string)
}

func (s SinkFuncs) OnOutput(line string) {
	if s.Output != nil {
		s.Output(line)
	}
}

func (s SinkFuncs) OnError(line string) {
	if s.Error != nil {
		s.Error(line)
	}
}

func (s SinkFuncs) OnProgress(message string) {
	if s.Progress != nil {
		s.Progress(message)
	}
}

// Discard is a Sink that drops everything
var Discard Sink = SinkFuncs{}

// gate serializes sink callbacks and suppresses them once closed. After close
// returns, no callback is running and none will run again.
type gate struct {
	mu     sync.Mutex
	closed bool
}

func (g *gate) emit(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		fn()
	}
}

func (g *gate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// maxLineLength bounds a line that never sees a newline; longer runs are
// forwarded in pieces.
const maxLineLength = 64 * 1024

// lineWriter captures a stream and forwards complete lines through the gate.
// With a capture limit only the tail of the stream is retained. os/exec
// drives it from a single copying goroutine.
type lineWriter struct {
	gate       *gate
	onLine     func(string)
	maxCapture int
	captured   []byte
	pending    []byte
}

func newLineWriter(g *gate, onLine func(string), maxCapture int) *lineWriter {
	return &lineWriter{gate: g, onLine: onLine, maxCapture: maxCapture}
}

// Write implements io.Writer
func (w *lineWriter) Write(p []byte) (int, error) {
	w.capture(p)
	w.pending = append(w.pending, p...)

	off := 0
	for {
		idx := bytes.IndexByte(w.pending[off:], '\n')
		if idx < 0 {
			break
		}
		w.emit(w.pending[off : off+idx])
		off += idx + 1
	}
	for len(w.pending)-off >= maxLineLength {
		w.emit(w.pending[off : off+maxLineLength])
		off += maxLineLength
	}
	n := copy(w.pending, w.pending[off:])
	w.pending = w.pending[:n]
	return len(p), nil
}

func (w *lineWriter) capture(p []byte) {
	w.captured = append(w.captured, p...)
	if w.maxCapture > 0 && len(w.captured) > w.maxCapture {
		n := copy(w.captured, w.captured[len(w.captured)-w.maxCapture:])
		w.captured = w.captured[:n]
	}
}

func (w *lineWriter) emit(b []byte) {
	line := strings.TrimRight(string(b), "\r")
	w.gate.emit(func() { w.onLine(line) })
}

// flush forwards a trailing line that had no newline
func (w *lineWriter) flush() {
	if len(w.pending) == 0 {
		return
	}
	w.emit(w.pending)
	w.pending = nil
}

// String returns the captured output, or its tail when capture is limited
func (w *lineWriter) String() string {
	return string(w.captured)
}
