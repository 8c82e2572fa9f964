package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/harshul/bbdev-cli/internal/executor"
	"github.com/harshul/bbdev-cli/internal/logging"
	"github.com/harshul/bbdev-cli/internal/ports"
	"go.uber.org/zap"
)

// Runner executes external commands; *executor.Executor satisfies it
type Runner interface {
	Execute(ctx context.Context, command string, args []string, opts executor.Options) (*executor.Result, error)
}

// PortProber answers port occupancy questions
type PortProber interface {
	InUse(port int) bool
	PIDOnPort(ctx context.Context, port int) (int, error)
}

// ProcessKiller signals processes by pid
type ProcessKiller interface {
	Terminate(ctx context.Context, pid int) error
	Kill(ctx context.Context, pid int) error
	IsAlive(ctx context.Context, pid int) bool
}

// Config tunes the manager. Zero fields take the defaults below.
type Config struct {
	BinaryPath   string
	DefaultPort  int
	PortAttempts int
	StartTimeout time.Duration
	StopTimeout  time.Duration
	KillGrace    time.Duration
	PollInterval time.Duration
	Env          map[string]string
}

const (
	DefaultPort         = 8080
	DefaultStartTimeout = 30 * time.Second
	DefaultStopTimeout  = 10 * time.Second
	DefaultKillGrace    = 2 * time.Second
	defaultPollInterval = 100 * time.Millisecond

	// agent output is streamed to the sink; the result only feeds error tails
	agentCaptureLimit = 4096
)

func (c Config) withDefaults() Config {
	if c.BinaryPath == "" {
		c.BinaryPath = "bbdev"
	}
	if c.DefaultPort <= 0 {
		c.DefaultPort = DefaultPort
	}
	if c.PortAttempts <= 0 {
		c.PortAttempts = ports.DefaultAttempts
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.KillGrace <= 0 {
		c.KillGrace = DefaultKillGrace
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

type record struct {
	inst   Instance
	runCtx context.Context
	cancel context.CancelFunc // stops the agent process we spawned
	done   chan struct{}      // closed once that process has returned

	// set before done is closed
	result *executor.Result
	runErr error
}

// Manager owns the registry of agent servers, keyed by port
type Manager struct {
	cfg    Config
	runner Runner
	prober PortProber
	killer ProcessKiller
	logger *zap.Logger

	mu      sync.Mutex
	servers map[int]*record
}

// NewManager creates a manager with an empty registry
func NewManager(cfg Config, runner Runner, prober PortProber, killer ProcessKiller, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		runner:  runner,
		prober:  prober,
		killer:  killer,
		logger:  logging.OrNop(logger).Named("server"),
		servers: make(map[int]*record),
	}
}

type startOptions struct {
	sink    executor.Sink
	sinkFor func(port int) executor.Sink
}

// StartOption customizes Start
type StartOption func(*startOptions)

// WithSink streams the agent's output to sink
func WithSink(sink executor.Sink) StartOption {
	return func(o *startOptions) { o.sink = sink }
}

// WithSinkFunc builds the output sink once the port is known, which for an
// automatic port is only after registration.
func WithSinkFunc(fn func(port int) executor.Sink) StartOption {
	return func(o *startOptions) { o.sinkFor = fn }
}

// Start launches `agent start --port N` and waits until the port is bound.
// Port 0 picks the first free port from the configured default. The agent
// outlives ctx; ctx only bounds the wait for readiness.
func (m *Manager) Start(ctx context.Context, port int, workDir string, opts ...StartOption) (Instance, error) {
	o := startOptions{sink: executor.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	rec, err := m.register(port, workDir)
	if err != nil {
		return Instance{}, err
	}
	port = rec.inst.Port
	log := m.logger.With(zap.Int("port", port))
	log.Info("starting server", zap.String("dir", workDir))

	sink := o.sink
	if o.sinkFor != nil {
		if s := o.sinkFor(port); s != nil {
			sink = s
		}
	}

	go func() {
		res, err := m.runner.Execute(rec.runCtx, m.cfg.BinaryPath,
			[]string{"agent", "start", "--port", strconv.Itoa(port)},
			executor.Options{
				Dir:        workDir,
				Env:        m.cfg.Env,
				Timeout:    executor.NoTimeout,
				Sink:       sink,
				MaxCapture: agentCaptureLimit,
			})
		m.mu.Lock()
		rec.result, rec.runErr = res, err
		m.mu.Unlock()
		close(rec.done)
	}()

	if err := m.awaitReady(ctx, rec); err != nil {
		rec.cancel()
		<-rec.done
		m.mu.Lock()
		if rec.inst.Status == StatusStarting {
			m.transitionLocked(rec, StatusError)
			rec.inst.LastError = err.Error()
		}
		inst := rec.inst
		m.mu.Unlock()
		log.Warn("server failed to start", zap.Error(err))
		return inst, &Error{Kind: ServerStartFailed, Port: port, Err: err}
	}

	pid, err := m.prober.PIDOnPort(ctx, port)
	if err != nil || pid == 0 {
		log.Debug("could not discover server pid", zap.Error(err))
	}

	m.mu.Lock()
	if rec.inst.Status != StatusStarting {
		// stopped while we were waiting
		inst := rec.inst
		m.mu.Unlock()
		return inst, &Error{Kind: ServerStartFailed, Port: port, Err: fmt.Errorf("server became %s during start", inst.Status)}
	}
	m.transitionLocked(rec, StatusRunning)
	rec.inst.PID = pid
	inst := rec.inst
	m.mu.Unlock()

	go m.watch(rec)
	log.Info("server running", zap.Int("pid", pid), zap.String("url", inst.URL()))
	return inst, nil
}

// register claims port for a new record. Probing happens outside the lock;
// the registry check and the insert happen under it.
func (m *Manager) register(port int, workDir string) (*record, error) {
	if port < 0 || port > 65535 {
		return nil, &Error{Kind: ServerStartFailed, Port: port, Err: fmt.Errorf("invalid port")}
	}
	if port == 0 {
		return m.registerAuto(workDir)
	}

	if status, ok := m.activeStatus(port); ok {
		return nil, &Error{Kind: PortInUse, Port: port, Status: status}
	}
	if m.prober.InUse(port) {
		return nil, &Error{Kind: PortInUse, Port: port}
	}
	rec, status := m.insert(port, workDir)
	if rec == nil {
		return nil, &Error{Kind: PortInUse, Port: port, Status: status}
	}
	return rec, nil
}

// registerAuto scans from the default port. A port claimed by a concurrent
// start between the scan and the insert resumes the scan after it.
func (m *Manager) registerAuto(workDir string) (*record, error) {
	taken := func(p int) bool {
		if _, ok := m.activeStatus(p); ok {
			return true
		}
		return m.prober.InUse(p)
	}

	start, attempts := m.cfg.DefaultPort, m.cfg.PortAttempts
	for attempts > 0 {
		port := ports.FindAvailablePort(start, attempts, taken)
		if port == 0 {
			break
		}
		if rec, _ := m.insert(port, workDir); rec != nil {
			return rec, nil
		}
		attempts -= port - start + 1
		start = port + 1
	}
	return nil, &Error{Kind: NoAvailablePort, Port: m.cfg.DefaultPort,
		Err: fmt.Errorf("%d ports tried", m.cfg.PortAttempts)}
}

func (m *Manager) activeStatus(port int) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.servers[port]; ok && rec.inst.Status.Active() {
		return rec.inst.Status, true
	}
	return "", false
}

// insert adds a starting record unless port is already active, in which case
// it returns nil and the current status.
func (m *Manager) insert(port int, workDir string) (*record, Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.servers[port]; ok && rec.inst.Status.Active() {
		return nil, rec.inst.Status
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rec := &record{
		inst: Instance{
			Port:             port,
			Status:           StatusStarting,
			StartTime:        time.Now(),
			WorkingDirectory: workDir,
		},
		runCtx: runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.servers[port] = rec
	return rec, ""
}

func (m *Manager) awaitReady(ctx context.Context, rec *record) error {
	port := rec.inst.Port
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(m.cfg.StartTimeout)
	defer deadline.Stop()

	for {
		if m.prober.InUse(port) {
			return nil
		}
		select {
		case <-rec.done:
			m.mu.Lock()
			res, runErr := rec.result, rec.runErr
			m.mu.Unlock()
			if runErr != nil {
				return fmt.Errorf("agent did not start: %w", runErr)
			}
			return fmt.Errorf("agent exited with code %d before binding the port%s", res.ExitCode, stderrTail(res))
		case <-deadline.C:
			return fmt.Errorf("port not bound within %s", m.cfg.StartTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func stderrTail(res *executor.Result) string {
	if res == nil || res.Stderr == "" {
		return ""
	}
	s := res.Stderr
	if len(s) > 200 {
		s = "..." + s[len(s)-200:]
	}
	return ": " + s
}

// watch reconciles a running record when its agent process exits on its own
func (m *Manager) watch(rec *record) {
	<-rec.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.servers[rec.inst.Port] != rec || rec.inst.Status != StatusRunning {
		return
	}
	if rec.runErr == nil && rec.result != nil && rec.result.ExitCode == 0 {
		m.transitionLocked(rec, StatusStopped)
	} else {
		m.transitionLocked(rec, StatusError)
		if rec.runErr != nil {
			rec.inst.LastError = rec.runErr.Error()
		} else if rec.result != nil {
			rec.inst.LastError = fmt.Sprintf("agent exited with code %d", rec.result.ExitCode)
		}
	}
	rec.inst.PID = 0
}

// Stop shuts down the server on port. Stopping a stopped, stopping or failed
// server is a no-op. The record always ends up stopped; ServerStopFailed is
// returned only when neither the graceful nor the forced path succeeded.
func (m *Manager) Stop(ctx context.Context, port int) error {
	m.mu.Lock()
	rec, ok := m.servers[port]
	if !ok {
		m.mu.Unlock()
		return &Error{Kind: ServerNotFound, Port: port}
	}
	switch rec.inst.Status {
	case StatusStopped, StatusStopping, StatusError:
		m.mu.Unlock()
		return nil
	}
	m.transitionLocked(rec, StatusStopping)
	pid := rec.inst.PID
	workDir := rec.inst.WorkingDirectory
	m.mu.Unlock()

	log := m.logger.With(zap.Int("port", port), zap.Int("pid", pid))
	log.Info("stopping server")

	stopped, stopErr := m.gracefulStop(ctx, port, workDir)
	if !stopped {
		log.Warn("graceful stop failed", zap.Error(stopErr))
		if pid > 0 {
			if err := m.forceStop(ctx, pid); err != nil {
				stopErr = errors.Join(stopErr, err)
			} else {
				stopped = true
			}
		}
	}

	// cleanup of the process we spawned; not counted as a stop path
	rec.cancel()
	select {
	case <-rec.done:
	case <-time.After(m.cfg.KillGrace + time.Second):
		log.Warn("agent process still running after stop")
	}

	m.mu.Lock()
	m.transitionLocked(rec, StatusStopped)
	rec.inst.PID = 0
	if !stopped {
		rec.inst.LastError = stopErr.Error()
	}
	m.mu.Unlock()

	if !stopped {
		return &Error{Kind: ServerStopFailed, Port: port, Err: stopErr}
	}
	log.Info("server stopped")
	return nil
}

func (m *Manager) gracefulStop(ctx context.Context, port int, workDir string) (bool, error) {
	res, err := m.runner.Execute(ctx, m.cfg.BinaryPath,
		[]string{"agent", "stop", "--port", strconv.Itoa(port)},
		executor.Options{Dir: workDir, Env: m.cfg.Env, Timeout: m.cfg.StopTimeout})
	if err != nil {
		return false, err
	}
	if !res.Success {
		return false, fmt.Errorf("agent stop exited with code %d%s", res.ExitCode, stderrTail(res))
	}
	return true, nil
}

// forceStop terminates pid, waits out the grace period and kills it if needed
func (m *Manager) forceStop(ctx context.Context, pid int) error {
	log := m.logger.With(zap.Int("pid", pid))
	log.Info("terminating server process")
	if err := m.killer.Terminate(ctx, pid); err != nil {
		log.Debug("terminate failed", zap.Error(err))
	}

	deadline := time.Now().Add(m.cfg.KillGrace)
	for time.Now().Before(deadline) {
		if !m.killer.IsAlive(ctx, pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
	if !m.killer.IsAlive(ctx, pid) {
		return nil
	}

	log.Warn("server ignored termination, killing")
	if err := m.killer.Kill(ctx, pid); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// StopAll stops every starting or running server concurrently. Individual
// failures are logged and joined; they never abort the batch.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	var targets []int
	for port, rec := range m.servers {
		if rec.inst.Status == StatusRunning || rec.inst.Status == StatusStarting {
			targets = append(targets, port)
		}
	}
	m.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, port := range targets {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if err := m.Stop(ctx, port); err != nil {
				m.logger.Warn("stop failed", zap.Int("port", port), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RefreshStatus marks running servers whose port is no longer bound as
// stopped and returns the reconciled instances.
func (m *Manager) RefreshStatus() []Instance {
	m.mu.Lock()
	var running []*record
	for _, rec := range m.servers {
		if rec.inst.Status == StatusRunning {
			running = append(running, rec)
		}
	}
	m.mu.Unlock()

	var gone []*record
	for _, rec := range running {
		if !m.prober.InUse(rec.inst.Port) {
			gone = append(gone, rec)
		}
	}

	var changed []Instance
	m.mu.Lock()
	for _, rec := range gone {
		if m.servers[rec.inst.Port] != rec || rec.inst.Status != StatusRunning {
			continue
		}
		m.transitionLocked(rec, StatusStopped)
		rec.inst.PID = 0
		rec.cancel()
		changed = append(changed, rec.inst)
	}
	m.mu.Unlock()

	for _, inst := range changed {
		m.logger.Info("server port released externally", zap.Int("port", inst.Port))
	}
	sortByPort(changed)
	return changed
}

// GetRunningServers returns running servers ordered by port
func (m *Manager) GetRunningServers() []Instance {
	return m.snapshot(func(s Status) bool { return s == StatusRunning })
}

// GetAllServers returns every tracked server ordered by port
func (m *Manager) GetAllServers() []Instance {
	return m.snapshot(func(Status) bool { return true })
}

// GetServer returns the server tracked on port
func (m *Manager) GetServer(port int) (Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.servers[port]
	if !ok {
		return Instance{}, false
	}
	return rec.inst, true
}

func (m *Manager) snapshot(keep func(Status) bool) []Instance {
	m.mu.Lock()
	out := make([]Instance, 0, len(m.servers))
	for _, rec := range m.servers {
		if keep(rec.inst.Status) {
			out = append(out, rec.inst)
		}
	}
	m.mu.Unlock()
	sortByPort(out)
	return out
}

func sortByPort(list []Instance) {
	sort.Slice(list, func(i, j int) bool { return list[i].Port < list[j].Port })
}

// transitionLocked moves rec to dst if the state machine allows it. m.mu must be held.
func (m *Manager) transitionLocked(rec *record, dst Status) bool {
	src := rec.inst.Status
	if !ValidTransition(src, dst) {
		m.logger.Warn("invalid state transition",
			zap.Int("port", rec.inst.Port), zap.String("from", string(src)), zap.String("to", string(dst)))
		return false
	}
	rec.inst.Status = dst
	m.logger.Debug("state transition",
		zap.Int("port", rec.inst.Port), zap.String("from", string(src)), zap.String("to", string(dst)))
	return true
}
