//go:build !windows && !linux

package bridge

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr creates a new process group for group signaling.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
