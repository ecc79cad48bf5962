//go:build !windows

package bridge

import "syscall"

// killProcessGroup signals the target and everything it started; targets run
// in their own process group.
func killProcessGroup(pid int, signal syscall.Signal) error {
	return syscall.Kill(-pid, signal)
}

