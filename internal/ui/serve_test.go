package ui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harshul/bbdev-cli/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu      sync.Mutex
	servers []server.Instance
	changed []server.Instance
	stopped []int
	stopAll int
	stopErr error
}

func (c *fakeController) GetAllServers() []server.Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]server.Instance(nil), c.servers...)
}

func (c *fakeController) RefreshStatus() []server.Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *fakeController) Stop(_ context.Context, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = append(c.stopped, port)
	for i := range c.servers {
		if c.servers[i].Port == port {
			c.servers[i].Status = server.StatusStopped
		}
	}
	return c.stopErr
}

func (c *fakeController) StopAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAll++
	return c.stopErr
}

func twoServers() *fakeController {
	return &fakeController{servers: []server.Instance{
		{Port: 8080, Status: server.StatusRunning},
		{Port: 8081, Status: server.StatusRunning},
	}}
}

// press feeds msg to m and runs the returned command once, feeding its
// message back in.
func press(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(msg)
	if cmd != nil {
		if next := cmd(); next != nil {
			m, _ = m.Update(next)
		}
	}
	return m
}

func TestServeModelStopSelected(t *testing.T) {
	ctrl := twoServers()
	var m tea.Model = NewServeModel(context.Background(), ctrl, nil)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, keyRunes("s"))

	assert.Equal(t, []int{8081}, ctrl.stopped)
	sm := m.(ServeModel)
	assert.Equal(t, "server on port 8081 stopped", sm.message)
	assert.Equal(t, server.StatusStopped, sm.servers[1].Status)
}

func TestServeModelStopAll(t *testing.T) {
	ctrl := twoServers()
	ctrl.stopErr = errors.New("port 8080: stop failed")
	var m tea.Model = NewServeModel(context.Background(), ctrl, nil)

	m = press(t, m, keyRunes("a"))

	assert.Equal(t, 1, ctrl.stopAll)
	assert.Contains(t, m.(ServeModel).message, "stop failed")
}

func TestServeModelRefreshLogsReconciled(t *testing.T) {
	ctrl := twoServers()
	var m tea.Model = NewServeModel(context.Background(), ctrl, nil)

	ctrl.changed = []server.Instance{{Port: 8081, Status: server.StatusStopped}}
	ctrl.servers = ctrl.servers[:1]
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, keyRunes("r"))

	sm := m.(ServeModel)
	require.Len(t, sm.servers, 1)
	assert.Equal(t, 0, sm.cursor)
	assert.Contains(t, sm.lines, "server on port 8081 is no longer listening")
}

func TestServeModelLogs(t *testing.T) {
	logs := make(chan string, 1)
	var m tea.Model = NewServeModel(context.Background(), twoServers(), logs)

	logs <- "[8080] agent ready"
	next := m.(ServeModel).waitForLog()()
	m, cmd := m.Update(next)

	assert.NotNil(t, cmd, "keeps listening")
	assert.Equal(t, []string{"[8080] agent ready"}, m.(ServeModel).lines)
	assert.Contains(t, m.View(), "agent ready")
}

func TestServeModelLogBufferBounded(t *testing.T) {
	m := NewServeModel(context.Background(), twoServers(), nil)
	for i := 0; i < maxLogLines+10; i++ {
		m.appendLog("x")
	}
	assert.Len(t, m.lines, maxLogLines)
}

func TestServeModelQuit(t *testing.T) {
	var m tea.Model = NewServeModel(context.Background(), twoServers(), nil)
	m, cmd := m.Update(keyRunes("q"))

	require.NotNil(t, cmd)
	assert.True(t, m.(ServeModel).quitting)
	assert.Empty(t, m.View())
}
