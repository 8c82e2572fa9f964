package ports

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultAttempts bounds FindAvailablePort
const DefaultAttempts = 100

// IsPortAvailable checks if a port is available for binding
func IsPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailablePort returns the first port in [startPort, startPort+attempts)
// that taken reports free, or 0. A nil taken falls back to a bind probe.
func FindAvailablePort(startPort, attempts int, taken func(port int) bool) int {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if taken == nil {
		taken = func(port int) bool { return !IsPortAvailable(port) }
	}
	for i := 0; i < attempts; i++ {
		port := startPort + i
		if port > 65535 {
			break
		}
		if !taken(port) {
			return port
		}
	}
	return 0
}

// GetPortStatus returns a human-readable status of a port
func GetPortStatus(port int) string {
	if IsPortAvailable(port) {
		return fmt.Sprintf("Port %d is available", port)
	}
	return fmt.Sprintf("Port %d is in use", port)
}

// GetProcessOnPort returns the PID of a process listening on the given port.
// Returns 0 if no process is found or if the lookup fails.
func GetProcessOnPort(ctx context.Context, port int) int {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err == nil {
		for _, c := range conns {
			if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) && c.Pid > 0 {
				return int(c.Pid)
			}
		}
	}
	// connection tables can hide other users' sockets; lsof sometimes sees more
	return lsofProcessOnPort(ctx, port)
}

func lsofProcessOnPort(ctx context.Context, port int) int {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin", "linux":
		cmd = exec.CommandContext(ctx, "lsof", "-i", fmt.Sprintf(":%d", port), "-t", "-sTCP:LISTEN")
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/C", fmt.Sprintf("netstat -ano | findstr :%d | findstr LISTENING", port))
	default:
		return 0
	}

	output, err := cmd.Output()
	if err != nil {
		return 0
	}

	pidStr := strings.TrimSpace(string(output))
	if pidStr == "" {
		return 0
	}

	// netstat puts the PID in the last column; lsof -t prints one PID per line
	if runtime.GOOS == "windows" {
		fields := strings.Fields(pidStr)
		if len(fields) > 0 {
			pidStr = fields[len(fields)-1]
		}
	} else {
		pidStr = strings.TrimSpace(strings.Split(pidStr, "\n")[0])
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0
	}
	return pid
}

// Host answers port and process questions about the local machine
type Host struct{}

// NewHost returns a Host
func NewHost() *Host { return &Host{} }

// InUse reports whether something is bound to port
func (h *Host) InUse(port int) bool {
	return !IsPortAvailable(port)
}

// PIDOnPort returns the PID listening on port, or 0 when none is visible
func (h *Host) PIDOnPort(ctx context.Context, port int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return GetProcessOnPort(ctx, port), nil
}

// Terminate asks pid to exit (SIGTERM on unix)
func (h *Host) Terminate(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.TerminateWithContext(ctx)
}

// Kill forcibly stops pid
func (h *Host) Kill(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.KillWithContext(ctx)
}

// IsAlive reports whether pid exists and is not a zombie
func (h *Host) IsAlive(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return false
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
