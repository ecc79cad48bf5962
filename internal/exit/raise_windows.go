//go:build windows

package exit

import (
	"errors"
	"syscall"
)

var errNoSignals = errors.New("signal delivery is not supported on windows")

func raise(syscall.Signal) error { return errNoSignals }
