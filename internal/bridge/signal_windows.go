//go:build windows

package bridge

import (
	"errors"
	"os"
	"syscall"
)

// killProcessGroup terminates the target. Windows has no process-group
// signals, so only the target itself is killed.
func killProcessGroup(pid int, _ syscall.Signal) error {
	if pid <= 0 {
		return errors.New("invalid pid")
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

