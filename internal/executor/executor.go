package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/harshul/bbdev-cli/internal/environ"
	"github.com/harshul/bbdev-cli/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout applies when Options.Timeout is zero
	DefaultTimeout = 300 * time.Second
	// NoTimeout disables the timer, for long-running processes
	NoTimeout time.Duration = -1
	// DefaultKillGrace is how long a terminated process gets before SIGKILL
	DefaultKillGrace = 2 * time.Second
)

// Options controls a single execution
type Options struct {
	Dir     string
	Env     map[string]string // overlay on top of the current environment
	Timeout time.Duration
	Sink    Sink

	// MaxCapture keeps only the last N bytes of each stream in the Result.
	// Zero keeps everything.
	MaxCapture int
}

// Result describes a process that ran to exit (or was stopped)
type Result struct {
	Success   bool
	ExitCode  int // -1 when the process never started or was terminated
	Stdout    string
	Stderr    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// DurationMs returns the run time in milliseconds
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Executor spawns external processes. It keeps no state between calls and
// is safe for concurrent use.
type Executor struct {
	logger    *zap.Logger
	killGrace time.Duration
	terminate func(*os.Process) error
	forceKill func(*os.Process) error
}

// Option configures an Executor
type Option func(*Executor)

// WithKillGrace sets how long a terminated process gets before it is killed.
// Non-positive values keep DefaultKillGrace.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.killGrace = d
		}
	}
}

// New creates an executor
func New(logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:    logging.OrNop(logger),
		killGrace: DefaultKillGrace,
		terminate: terminateProcess,
		forceKill: forceKillProcess,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KillGrace reports the wait between terminate and force-kill
func (e *Executor) KillGrace() time.Duration {
	return e.killGrace
}

// Execute runs command with args and waits for it to finish, the timeout to
// fire, or ctx to be cancelled, whichever happens first. The returned Result
// is never nil; on error it holds whatever output was captured.
func (e *Executor) Execute(ctx context.Context, command string, args []string, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	sink := opts.Sink
	if sink == nil {
		sink = Discard
	}

	start := time.Now()
	res := &Result{ExitCode: -1, StartTime: start}
	finish := func() {
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(start)
	}

	if err := ctx.Err(); err != nil {
		finish()
		return res, &Error{Kind: Cancelled, Command: command, Err: err}
	}

	g := &gate{}
	stdout := newLineWriter(g, sink.OnOutput, opts.MaxCapture)
	stderr := newLineWriter(g, sink.OnError, opts.MaxCapture)

	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = environ.Merge(os.Environ(), opts.Env)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.killGrace
	configureProcessGroup(cmd)

	log := e.logger.With(zap.String("command", command), zap.Strings("args", args))

	if err := cmd.Start(); err != nil {
		finish()
		log.Debug("spawn failed", zap.Error(err))
		return res, &Error{Kind: SpawnFailed, Command: command, Err: err}
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	pid := cmd.Process.Pid
	log.Debug("process started", zap.Int("pid", pid))
	g.emit(func() { sink.OnProgress(fmt.Sprintf("started %s (pid %d)", command, pid)) })

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	// first of exit, timeout or cancellation owns the resolution
	var (
		kind    Kind
		waitErr error
	)
	select {
	case waitErr = <-waitCh:
	case <-timer:
		kind = Timeout
	case <-ctx.Done():
		kind = Cancelled
	}

	if kind != "" {
		// an exit that is already reaped wins over a late timeout or cancel
		select {
		case waitErr = <-waitCh:
			kind = ""
		default:
		}
	}

	if kind != "" {
		g.close()
		if err := e.terminate(cmd.Process); err != nil {
			log.Debug("terminate failed", zap.Error(err))
		}
		select {
		case waitErr = <-waitCh:
		case <-time.After(e.killGrace):
			log.Debug("process ignored termination, killing", zap.Int("pid", pid))
			_ = e.forceKill(cmd.Process)
			waitErr = <-waitCh
		}
	}

	stdout.flush()
	stderr.flush()
	finish()
	res.Stdout = strings.TrimSpace(stdout.String())
	res.Stderr = strings.TrimSpace(stderr.String())

	switch kind {
	case Timeout:
		log.Debug("process timed out", zap.Duration("timeout", timeout))
		return res, &Error{Kind: Timeout, Command: command, Timeout: timeout}
	case Cancelled:
		log.Debug("process cancelled")
		return res, &Error{Kind: Cancelled, Command: command, Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// e.g. exec.ErrWaitDelay when a grandchild kept the pipes open
		log.Warn("wait returned an error", zap.Error(waitErr))
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.Success = res.ExitCode == 0

	log.Debug("process exited", zap.Int("exitCode", res.ExitCode), zap.Duration("duration", res.Duration))
	code := res.ExitCode
	g.emit(func() { sink.OnProgress(fmt.Sprintf("%s exited with code %d", command, code)) })
	return res, nil
}
