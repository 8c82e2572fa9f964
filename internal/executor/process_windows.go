//go:build windows

package executor

import (
	"os"
	"os/exec"
	"syscall"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// Windows has no SIGTERM; termination is a kill.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}

func forceKillProcess(p *os.Process) error {
	return p.Kill()
}
