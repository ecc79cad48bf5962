//go:build linux

package bridge

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the target in its own process group so it can be
// killed together with its children, and asks the kernel to kill it if this
// process dies first.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
