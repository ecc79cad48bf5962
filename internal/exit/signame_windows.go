//go:build windows

package exit

import (
	"strconv"
	"syscall"
)

// SignalName returns "SIG<n>"; windows has no signal name table.
func SignalName(sig syscall.Signal) string {
	return "SIG" + strconv.Itoa(int(sig))
}
