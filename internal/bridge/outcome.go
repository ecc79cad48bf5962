package bridge

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Kind tags how the child process ended.
type Kind int

const (
	KindExited   Kind = iota + 1 // normal program completion with an exit code
	KindSignaled                 // terminated by a signal
	KindAbnormal                 // neither exited nor signaled
)

func (k Kind) String() string {
	switch k {
	case KindExited:
		return "exited"
	case KindSignaled:
		return "signaled"
	case KindAbnormal:
		return "abnormal"
	default:
		return "unknown"
	}
}

// Outcome is the classified termination of one child process.
// Code is meaningful for KindExited, Signal for KindSignaled.
type Outcome struct {
	Kind     Kind           `json:"kind"`
	Code     int            `json:"code"`
	Signal   syscall.Signal `json:"signal"`
	PID      int            `json:"pid"`
	Duration time.Duration  `json:"duration"`
}

func Exited(code int) Outcome             { return Outcome{Kind: KindExited, Code: code} }
func Signaled(sig syscall.Signal) Outcome { return Outcome{Kind: KindSignaled, Signal: sig} }
func Abnormal() Outcome                   { return Outcome{Kind: KindAbnormal} }

// Clean reports a zero exit code.
func (o Outcome) Clean() bool { return o.Kind == KindExited && o.Code == 0 }

func (o Outcome) String() string {
	switch o.Kind {
	case KindExited:
		return fmt.Sprintf("exited with code %d", o.Code)
	case KindSignaled:
		return fmt.Sprintf("terminated by signal %d (%s)", int(o.Signal), o.Signal)
	default:
		return o.Kind.String()
	}
}

// ClassifyStatus maps a finished process state onto an Outcome.
// Precedence: exited, then signaled, else abnormal.
func ClassifyStatus(state *os.ProcessState) Outcome {
	if state == nil {
		return Abnormal()
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		if state.Exited() {
			return Exited(state.ExitCode())
		}
		return Abnormal()
	}
	return classifyWaitStatus(ws)
}

func classifyWaitStatus(ws syscall.WaitStatus) Outcome {
	switch {
	case ws.Exited():
		return Exited(ws.ExitStatus())
	case ws.Signaled():
		return Signaled(ws.Signal())
	default:
		return Abnormal()
	}
}
