//go:build unix

package executor

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcessGroup runs the child in its own process group so that
// termination reaches anything the external CLI spawns (make, verilator, ...).
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends SIGTERM to the child's process group
func terminateProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGTERM); err != nil {
		return p.Signal(syscall.SIGTERM)
	}
	return nil
}

// forceKillProcess sends SIGKILL to the child's process group
func forceKillProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
