package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ConsoleSink streams process output to the terminal. Each line gets a
// timestamp and an optional prefix such as the server port.
type ConsoleSink struct {
	mu         *sync.Mutex // shared with sinks derived by WithPrefix
	out        io.Writer
	errOut     io.Writer
	prefix     string
	timeFormat string
	quiet      bool
	now        func() time.Time
}

// NewConsoleSink writes stdout lines to out and stderr lines to errOut.
// A quiet sink drops progress messages.
func NewConsoleSink(out, errOut io.Writer, prefix string, quiet bool) *ConsoleSink {
	return &ConsoleSink{
		mu:         &sync.Mutex{},
		out:        out,
		errOut:     errOut,
		prefix:     prefix,
		timeFormat: "15:04:05",
		quiet:      quiet,
		now:        time.Now,
	}
}

// WithPrefix returns a sink on the same writers with another prefix. Lines
// from all derived sinks are written one at a time.
func (s *ConsoleSink) WithPrefix(prefix string) *ConsoleSink {
	return &ConsoleSink{
		mu:         s.mu,
		out:        s.out,
		errOut:     s.errOut,
		prefix:     prefix,
		timeFormat: s.timeFormat,
		quiet:      s.quiet,
		now:        s.now,
	}
}

func (s *ConsoleSink) write(w io.Writer, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(w, "%s %s%s\n", dimStyle.Render("["+s.now().Format(s.timeFormat)+"]"), s.prefix, line)
}

func (s *ConsoleSink) OnOutput(line string) {
	s.write(s.out, line)
}

func (s *ConsoleSink) OnError(line string) {
	s.write(s.errOut, badStyle.Render(line))
}

func (s *ConsoleSink) OnProgress(message string) {
	if s.quiet {
		return
	}
	s.write(s.out, infoStyle.Render("» "+message))
}

// ChannelSink forwards lines to a channel without blocking; lines are
// dropped when the reader falls behind.
type ChannelSink struct {
	Prefix string
	C      chan<- string
}

func (s ChannelSink) send(line string) {
	select {
	case s.C <- s.Prefix + line:
	default:
	}
}

func (s ChannelSink) OnOutput(line string)      { s.send(line) }
func (s ChannelSink) OnError(line string)       { s.send(line) }
func (s ChannelSink) OnProgress(message string) { s.send("» " + message) }
