// Package history keeps an audit trail of harness runs. Each run produces
// exactly one Event, sent before the harness realizes its exit status.
package history

import (
	"context"
	"time"
)

// EventType defines how a run ended.
type EventType string

const (
	// EventFinished means the target ran and terminated.
	EventFinished EventType = "finished"
	// EventFailed means the harness failed before the target terminated.
	EventFailed EventType = "failed"
)

// Record describes one harness run.
type Record struct {
	RunID      string    `json:"run_id"`
	InputPath  string    `json:"input_path"`
	InputSize  int       `json:"input_size"`
	Truncated  bool      `json:"truncated"`
	Digest     string    `json:"digest,omitempty"`
	Target     string    `json:"target"`
	PID        int       `json:"pid"`
	Outcome    string    `json:"outcome,omitempty"` // exited, signaled, abnormal
	ExitCode   int       `json:"exit_code"`
	Signal     int       `json:"signal"`
	Verdict    string    `json:"verdict"`
	Error      string    `json:"error,omitempty"`
	PeakRSS    uint64    `json:"peak_rss"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Crashed reports whether the run was propagated to the fuzzer as a crash.
func (r Record) Crashed() bool {
	return r.Verdict == "vulnerability" || r.Verdict == "signal"
}

// Event represents a run to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Reader is implemented by sinks that can list what they stored.
type Reader interface {
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
}
