package ui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harshul/bbdev-cli/internal/server"
)

const (
	maxLogLines     = 500
	refreshInterval = time.Second
)

// ServerController is the part of the server manager the serve view drives
type ServerController interface {
	GetAllServers() []server.Instance
	RefreshStatus() []server.Instance
	Stop(ctx context.Context, port int) error
	StopAll(ctx context.Context) error
}

type serveKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Stop    key.Binding
	StopAll key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func defaultServeKeyMap() serveKeyMap {
	return serveKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		StopAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "stop all"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type (
	tickMsg    time.Time
	logMsg     string
	refreshMsg struct {
		changed []server.Instance
		servers []server.Instance
	}
	stopDoneMsg struct {
		port int // 0 for stop all
		err  error
	}
)

// ServeModel is the live view over running agent servers
type ServeModel struct {
	ctx     context.Context
	ctrl    ServerController
	logs    <-chan string
	keys    serveKeyMap
	spinner spinner.Model

	servers  []server.Instance
	cursor   int
	lines    []string
	message  string
	height   int
	quitting bool
}

// NewServeModel builds the view. logs may be nil.
func NewServeModel(ctx context.Context, ctrl ServerController, logs <-chan string) ServeModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cursorStyle

	return ServeModel{
		ctx:     ctx,
		ctrl:    ctrl,
		logs:    logs,
		keys:    defaultServeKeyMap(),
		spinner: sp,
		servers: ctrl.GetAllServers(),
		height:  24,
	}
}

func (m ServeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), m.waitForLog())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m ServeModel) waitForLog() tea.Cmd {
	if m.logs == nil {
		return nil
	}
	ch := m.logs
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m ServeModel) refresh() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		changed := ctrl.RefreshStatus()
		return refreshMsg{changed: changed, servers: ctrl.GetAllServers()}
	}
}

func (m ServeModel) stop(port int) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		if port == 0 {
			return stopDoneMsg{err: ctrl.StopAll(ctx)}
		}
		return stopDoneMsg{port: port, err: ctrl.Stop(ctx, port)}
	}
}

func (m ServeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.servers)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Stop):
			if m.cursor < len(m.servers) {
				port := m.servers[m.cursor].Port
				m.message = fmt.Sprintf("stopping server on port %d", port)
				return m, m.stop(port)
			}
		case key.Matches(msg, m.keys.StopAll):
			m.message = "stopping all servers"
			return m, m.stop(0)
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.refresh(), tickCmd())

	case refreshMsg:
		for _, inst := range msg.changed {
			m.appendLog(fmt.Sprintf("server on port %d is no longer listening", inst.Port))
		}
		m.servers = msg.servers
		if m.cursor >= len(m.servers) {
			m.cursor = max(len(m.servers)-1, 0)
		}

	case stopDoneMsg:
		switch {
		case msg.err != nil:
			m.message = "stop failed: " + msg.err.Error()
		case msg.port == 0:
			m.message = "all servers stopped"
		default:
			m.message = fmt.Sprintf("server on port %d stopped", msg.port)
		}
		m.servers = m.ctrl.GetAllServers()

	case logMsg:
		m.appendLog(string(msg))
		return m, m.waitForLog()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ServeModel) appendLog(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m ServeModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	header := titleStyle.Render("bbx serve")
	for _, inst := range m.servers {
		if inst.Status == server.StatusStarting || inst.Status == server.StatusStopping {
			header += " " + m.spinner.View()
			break
		}
	}
	b.WriteString(header + "\n\n")
	b.WriteString(RenderServers(m.servers, m.cursor))

	if m.message != "" {
		b.WriteString("\n" + infoStyle.Render("  "+m.message) + "\n")
	}

	// Whatever room is left goes to the log tail
	room := m.height - len(m.servers) - 9
	if room > 0 && len(m.lines) > 0 {
		b.WriteString("\n")
		start := max(len(m.lines)-room, 0)
		for _, line := range m.lines[start:] {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n" + m.helpView())
	return b.String()
}

func (m ServeModel) helpView() string {
	bindings := []key.Binding{m.keys.Up, m.keys.Down, m.keys.Stop, m.keys.StopAll, m.keys.Refresh, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, cursorStyle.Render(h.Key)+" "+dimStyle.Render(h.Desc))
	}
	return "  " + strings.Join(parts, dimStyle.Render(" • "))
}

// RunServe shows the serve view until the user quits, ctx ends, or the
// process is interrupted. Every server is stopped before it returns.
func RunServe(ctx context.Context, ctrl ServerController, logs <-chan string, stopTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewServeModel(ctx, ctrl, logs), tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			program.Quit()
		case <-ctx.Done():
			program.Quit()
		}
	}()

	_, runErr := program.Run()

	// ctx may already be cancelled; shutdown gets its own deadline
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	stopErr := ctrl.StopAll(stopCtx)

	if runErr != nil {
		return runErr
	}
	return stopErr
}
