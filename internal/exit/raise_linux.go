//go:build linux

package exit

import (
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// raise delivers sig to the calling thread with its default action.
//
// The Go runtime keeps its own SIGSEGV/SIGBUS/SIGFPE handlers and turns a
// user-sent fault signal into "exit status 2", which a fuzzer does not read
// as a crash. The handler is replaced with SIG_DFL through rt_sigaction first.
func raise(sig syscall.Signal) error {
	runtime.LockOSThread()
	if sig != unix.SIGKILL && sig != unix.SIGSTOP {
		if err := setDefaultAction(sig); err != nil {
			return err
		}
		var set unix.Sigset_t
		sigaddset(&set, sig)
		if err := unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil); err != nil {
			return err
		}
	}
	return unix.Tgkill(unix.Getpid(), unix.Gettid(), sig)
}

// setDefaultAction installs SIG_DFL for sig. A zeroed kernel sigaction is
// SIG_DFL with no flags and an empty mask; the buffer is larger than the
// kernel struct on every architecture.
func setDefaultAction(sig syscall.Signal) error {
	var act [8]uint64
	const sigsetSize = 8
	_, _, errno := unix.RawSyscall6(
		unix.SYS_RT_SIGACTION,
		uintptr(sig),
		uintptr(unsafe.Pointer(&act)),
		0,
		sigsetSize,
		0,
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func sigaddset(set *unix.Sigset_t, sig syscall.Signal) {
	bits := uint(unsafe.Sizeof(set.Val[0])) * 8
	i := uint(sig - 1)
	set.Val[i/bits] |= 1 << (i % bits)
}
