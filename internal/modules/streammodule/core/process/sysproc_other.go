//go:build !unix

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func forceKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
