//go:build unix

package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	stdout   []string
	stderr   []string
	progress []string
}

func (r *recorder) OnOutput(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stdout = append(r.stdout, line)
}

func (r *recorder) OnError(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stderr = append(r.stderr, line)
}

func (r *recorder) OnProgress(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, msg)
}

func sh(script string) []string { return []string{"-c", script} }

func TestExecuteSuccess(t *testing.T) {
	rec := &recorder{}
	res, err := New(nil).Execute(context.Background(), "/bin/sh", sh("echo one; echo two; echo oops >&2"), Options{Sink: rec})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "one\ntwo", res.Stdout)
	assert.Equal(t, "oops", res.Stderr)
	assert.Equal(t, []string{"one", "two"}, rec.stdout)
	assert.Equal(t, []string{"oops"}, rec.stderr)
	assert.False(t, res.EndTime.Before(res.StartTime))
	assert.GreaterOrEqual(t, res.DurationMs(), int64(0))

	require.Len(t, rec.progress, 2)
	assert.True(t, strings.HasPrefix(rec.progress[0], "started /bin/sh (pid "))
	assert.Equal(t, "/bin/sh exited with code 0", rec.progress[1])
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	res, err := New(nil).Execute(context.Background(), "/bin/sh", sh("echo failing >&2; exit 7"), Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "failing", res.Stderr)
}

func TestExecuteTrailingPartialLine(t *testing.T) {
	rec := &recorder{}
	_, err := New(nil).Execute(context.Background(), "/bin/sh", sh(`printf 'a\r\nb'`), Options{Sink: rec})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.stdout)
}

func TestExecuteEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	res, err := New(nil).Execute(context.Background(), "/bin/sh", sh(`echo "$BBX_TEST_VAR"; pwd`), Options{
		Dir: dir,
		Env: map[string]string{"BBX_TEST_VAR": "hello"},
	})
	require.NoError(t, err)

	lines := strings.Split(res.Stdout, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hello", lines[0])

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[1])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecuteSpawnFailure(t *testing.T) {
	res, err := New(nil).Execute(context.Background(), "/nonexistent/bbx-missing-binary", nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, SpawnFailed))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecuteTimeoutTerminatesOnce(t *testing.T) {
	var terminations atomic.Int32
	e := New(nil)
	e.terminate = func(p *os.Process) error {
		terminations.Add(1)
		return terminateProcess(p)
	}

	start := time.Now()
	res, err := e.Execute(context.Background(), "/bin/sh", sh("echo before; sleep 10"), Options{Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, Timeout))
	assert.Less(t, time.Since(start), 5*time.Second)

	var execErr *Error
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 200*time.Millisecond, execErr.Timeout)
	assert.Contains(t, err.Error(), "timed out")

	assert.Equal(t, int32(1), terminations.Load())
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "before", res.Stdout)
}

func TestExecuteEscalatesToKill(t *testing.T) {
	var kills atomic.Int32
	e := New(nil, WithKillGrace(100*time.Millisecond))
	e.terminate = func(*os.Process) error { return nil } // ignored by the child
	e.forceKill = func(p *os.Process) error {
		kills.Add(1)
		return forceKillProcess(p)
	}

	_, err := e.Execute(context.Background(), "/bin/sh", sh("sleep 10"), Options{Timeout: 100 * time.Millisecond})
	assert.True(t, errors.Is(err, Timeout))
	assert.Equal(t, int32(1), kills.Load())
}

func TestExecuteCancelSuppressesCallbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	sink := SinkFuncs{
		Output: func(line string) {
			rec.OnOutput(line)
			cancel()
		},
		Progress: rec.OnProgress,
	}

	res, err := New(nil).Execute(ctx, "/bin/sh", sh("echo first; sleep 10; echo never"), Options{Sink: sink})
	require.Error(t, err)
	assert.True(t, errors.Is(err, Cancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, -1, res.ExitCode)

	assert.Equal(t, []string{"first"}, rec.stdout)
	require.Len(t, rec.progress, 1, "no exit notification after cancel")
}

func TestExecuteAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	res, err := New(nil).Execute(ctx, "/bin/sh", sh("echo hi"), Options{Sink: rec})
	assert.True(t, errors.Is(err, Cancelled))
	assert.Equal(t, -1, res.ExitCode)
	assert.Empty(t, rec.progress)
}

func TestExecuteCancelAfterExitIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res, err := New(nil).Execute(ctx, "/bin/sh", sh("exit 0"), Options{})
	cancel()
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExecuteExitedProcessWinsOverLateCancel(t *testing.T) {
	var terminations atomic.Int32
	e := New(nil)
	e.terminate = func(p *os.Process) error {
		terminations.Add(1)
		return terminateProcess(p)
	}

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		sink := SinkFuncs{Progress: func(msg string) {
			if strings.HasPrefix(msg, "started") {
				// the child exits while we are still in the callback
				time.Sleep(150 * time.Millisecond)
				cancel()
			}
		}}

		res, err := e.Execute(ctx, "/bin/sh", sh("exit 0"), Options{Sink: sink})
		cancel()
		require.NoError(t, err, "run %d", i)
		assert.True(t, res.Success)
		assert.Equal(t, 0, res.ExitCode)
	}
	assert.Zero(t, terminations.Load())
}

func TestExecuteCaptureLimitKeepsTail(t *testing.T) {
	rec := &recorder{}
	script := `i=0; while [ $i -lt 2000 ]; do echo "line $i"; i=$((i+1)); done`
	res, err := New(nil).Execute(context.Background(), "/bin/sh", sh(script), Options{Sink: rec, MaxCapture: 256})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Stdout), 256)
	assert.True(t, strings.HasSuffix(res.Stdout, "line 1999"))
	assert.Len(t, rec.stdout, 2000, "the sink still sees every line")
}

func TestWithKillGrace(t *testing.T) {
	assert.Equal(t, DefaultKillGrace, New(nil).KillGrace())
	assert.Equal(t, 300*time.Millisecond, New(nil, WithKillGrace(300*time.Millisecond)).KillGrace())
	assert.Equal(t, DefaultKillGrace, New(nil, WithKillGrace(0)).KillGrace())
}

func TestExecuteNoTimeout(t *testing.T) {
	res, err := New(nil).Execute(context.Background(), "/bin/sh", sh("sleep 0.1; echo done"), Options{Timeout: NoTimeout})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Stdout)
}
