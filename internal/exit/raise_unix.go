//go:build !linux && !windows

package exit

import (
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
)

// raise sends sig to this process. The Go runtime keeps its own handlers for
// the synchronous fault signals and there is no portable way to reset them
// here, so those are raised as SIGABRT with crash tracebacks enabled; the
// runtime then dies by SIGABRT. Every other signal takes its default action.
func raise(sig syscall.Signal) error {
	if s := deliverable(sig); s != sig {
		slog.Warn("Raising substitute signal; the fuzzer sees a crash but not the original signal",
			"signal", SignalName(sig), "raised", SignalName(s))
		debug.SetTraceback("crash")
		sig = s
	}
	signal.Reset(sig)
	return syscall.Kill(os.Getpid(), sig)
}

// deliverable maps runtime-owned fault signals to SIGABRT.
func deliverable(sig syscall.Signal) syscall.Signal {
	switch sig {
	case syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGILL:
		return syscall.SIGABRT
	}
	return sig
}
