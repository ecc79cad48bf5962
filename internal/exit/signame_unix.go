//go:build !windows

package exit

import (
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalName returns the conventional name of sig, e.g. "SIGSEGV".
func SignalName(sig syscall.Signal) string {
	if n := unix.SignalName(sig); n != "" {
		return n
	}
	return "SIG" + strconv.Itoa(int(sig))
}
