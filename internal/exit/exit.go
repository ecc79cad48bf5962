// Package exit turns a classified target outcome into this process's own
// termination, the only signal a supervising fuzzer can observe.
package exit

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/loykin/fuzzbridge/internal/bridge"
)

// Kind is the shape of a ProcessExit.
type Kind int

const (
	KindClean           Kind = iota + 1 // exit with Code, nothing found
	KindFaultSignal                     // die by Signal, a crash for the fuzzer
	KindOrdinaryFailure                 // exit with Code, tooling failure
)

// Cause records why a ProcessExit was chosen. It feeds diagnostics, history
// and metrics; it does not change how the exit is realized.
type Cause string

const (
	CauseNone          Cause = "clean"
	CauseVulnerability Cause = "vulnerability"
	CauseSignal        Cause = "signal"
	CauseAbnormal      Cause = "abnormal"
	CauseTooling       Cause = "tooling"
)

// ProcessExit is how this process ends.
type ProcessExit struct {
	Kind   Kind
	Code   int
	Signal syscall.Signal
	Cause  Cause
}

func Clean(code int) ProcessExit {
	return ProcessExit{Kind: KindClean, Code: code, Cause: CauseNone}
}

func FaultSignal(sig syscall.Signal, cause Cause) ProcessExit {
	return ProcessExit{Kind: KindFaultSignal, Signal: sig, Cause: cause}
}

func OrdinaryFailure(code int, cause Cause) ProcessExit {
	return ProcessExit{Kind: KindOrdinaryFailure, Code: code, Cause: cause}
}

// Translate applies the crash propagation policy:
//
//	exited 0        -> clean exit 0
//	exited n != 0   -> SIGSEGV to self
//	signaled s      -> s to self
//	anything else   -> exit 1
func Translate(o bridge.Outcome) ProcessExit {
	switch o.Kind {
	case bridge.KindExited:
		if o.Code == 0 {
			return Clean(0)
		}
		return FaultSignal(syscall.SIGSEGV, CauseVulnerability)
	case bridge.KindSignaled:
		return FaultSignal(o.Signal, CauseSignal)
	default:
		return OrdinaryFailure(1, CauseAbnormal)
	}
}

// Failure is the exit for any tooling error: bad arguments, I/O, spawn,
// transfer or wait failures. It is never reported as a crash.
func Failure(error) ProcessExit { return OrdinaryFailure(1, CauseTooling) }

// Message is the one-line diagnostic for e.
func (e ProcessExit) Message() string {
	switch e.Cause {
	case CauseNone:
		return "Target finished cleanly"
	case CauseVulnerability:
		return "Target detected vulnerability, propagating crash"
	case CauseSignal:
		return fmt.Sprintf("Target terminated by signal: %d, propagating crash", int(e.Signal))
	case CauseAbnormal:
		return "Target terminated abnormally"
	default:
		return "Harness failure"
	}
}

func (e ProcessExit) String() string {
	switch e.Kind {
	case KindClean:
		return fmt.Sprintf("clean(%d)", e.Code)
	case KindFaultSignal:
		return fmt.Sprintf("fault_signal(%s)", e.Signal)
	case KindOrdinaryFailure:
		return fmt.Sprintf("failure(%d)", e.Code)
	default:
		return "unknown"
	}
}

// signalGrace bounds how long Realize waits for a self-delivered signal
// before falling back to an exit code.
const signalGrace = 2 * time.Second

var osExit = os.Exit

// Realize ends the process as e describes. It does not return.
// A fault signal that cannot kill the process (ignored or stop-type, or no
// signal support on the platform) degrades to exit status 128+signal.
func Realize(e ProcessExit) {
	if e.Kind == KindFaultSignal {
		if err := raise(e.Signal); err != nil {
			slog.Error("Failed to deliver signal to self", "signal", int(e.Signal), "error", err)
		} else {
			time.Sleep(signalGrace)
		}
		osExit(128 + int(e.Signal))
		return
	}
	osExit(e.Code)
}
