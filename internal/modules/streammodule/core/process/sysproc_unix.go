//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the encoder in its own process group
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// forceKill sends SIGKILL to the encoder's process group, falling back to
// the process itself
func forceKill(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
