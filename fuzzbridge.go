// Package fuzzbridge connects a coverage-guided fuzzer to a target it cannot
// drive directly. A run loads one input file, hands it to the target process
// on stdin and as an argument, waits, and reports the target's fate as this
// process's own: a clean exit stays clean, a detection or a fatal signal
// becomes a crash.
package fuzzbridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/fuzzbridge/internal/bridge"
	cfg "github.com/loykin/fuzzbridge/internal/config"
	"github.com/loykin/fuzzbridge/internal/exit"
	"github.com/loykin/fuzzbridge/internal/history"
	"github.com/loykin/fuzzbridge/internal/input"
	"github.com/loykin/fuzzbridge/internal/metrics"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Payload = input.Payload

type Target = bridge.Target

type Outcome = bridge.Outcome

type ProcessExit = exit.ProcessExit

type HistorySink = history.Sink

type Config = cfg.Config

// historyTimeout bounds how long a run may spend recording itself.
const historyTimeout = 5 * time.Second

// Harness runs one input at a time against Target.
type Harness struct {
	// MaxInput caps the payload size; <= 0 selects input.DefaultMaxCapacity.
	MaxInput int
	Target   Target

	// Sink receives one event per run when set.
	Sink HistorySink

	// SampleInterval enables resource sampling of the target when > 0.
	SampleInterval time.Duration
}

// Result is everything known about one run.
type Result struct {
	RunID      string
	InputPath  string
	Target     string
	Payload    Payload
	Spawned    bool
	Outcome    Outcome
	Usage      metrics.Usage
	Exit       ProcessExit
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// New returns a harness for the default python companion target.
func New() *Harness {
	return &Harness{Target: bridge.DefaultTarget()}
}

// NewFromConfig builds a harness from c. Target output is inherited and no
// Sink is set; callers attach writers and history as needed.
func NewFromConfig(c *Config) (*Harness, error) {
	t, err := c.BridgeTarget()
	if err != nil {
		return nil, err
	}
	return &Harness{MaxInput: c.Input.MaxBytes, Target: t, SampleInterval: c.Metrics.SampleInterval}, nil
}

// Run loads path, runs the target and decides the exit. The run is logged,
// counted in metrics and sent to Sink before Run returns; the caller then
// realizes Result.Exit. Run never terminates the process itself.
func (h *Harness) Run(ctx context.Context, path string) Result {
	res := Result{RunID: uuid.NewString(), InputPath: path, Target: h.Target.Name(), StartedAt: time.Now()}
	log := slog.With("run", res.RunID)

	res.Err = h.execute(ctx, path, &res)
	if res.Err != nil {
		res.Exit = exit.Failure(res.Err)
		log.Error("Harness failure", "input", path, "error", res.Err)
	} else {
		res.Exit = exit.Translate(res.Outcome)
		attrs := []any{"input", path, "bytes", res.Payload.Len(), "pid", res.Outcome.PID, "duration", res.Outcome.Duration}
		switch res.Exit.Kind {
		case exit.KindClean:
			log.Info(res.Exit.Message(), attrs...)
		case exit.KindFaultSignal:
			log.Warn(res.Exit.Message(), append(attrs, "outcome", res.Outcome.String())...)
		default:
			log.Error(res.Exit.Message(), attrs...)
		}
	}
	res.FinishedAt = time.Now()

	metrics.ObserveRun(res.MetricsRun())
	if h.Sink != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		if err := h.Sink.Send(hctx, res.Event()); err != nil {
			log.Warn("Failed to record run history", "error", err)
		}
		cancel()
	}
	return res
}

func (h *Harness) execute(ctx context.Context, path string, res *Result) error {
	payload, err := input.Load(path, h.MaxInput)
	if err != nil {
		return err
	}
	res.Payload = payload

	child, err := bridge.New(h.Target).Spawn(ctx, payload)
	if err != nil {
		return err
	}
	res.Spawned = true
	defer func() {
		if cerr := child.Close(); cerr != nil {
			slog.Warn("Failed to release target process", "pid", child.PID(), "error", cerr)
		}
	}()
	res.Outcome.PID = child.PID()

	sampler := metrics.StartSampler(ctx, child.PID(), h.SampleInterval)
	defer func() { res.Usage = sampler.Stop() }()

	if err := child.Transfer(payload); err != nil {
		return err
	}
	out, err := child.Wait()
	if err != nil {
		return err
	}
	res.Outcome = out
	return nil
}

// Crashed reports whether the run will be seen by the fuzzer as a crash.
func (r Result) Crashed() bool { return r.Exit.Kind == exit.KindFaultSignal }

// Record flattens the result for history sinks.
func (r Result) Record() history.Record {
	rec := history.Record{
		RunID:      r.RunID,
		InputPath:  r.InputPath,
		InputSize:  r.Payload.Len(),
		Truncated:  r.Payload.Truncated(),
		Target:     r.Target,
		PID:        r.Outcome.PID,
		Verdict:    string(r.Exit.Cause),
		PeakRSS:    r.Usage.PeakRSS,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Payload.Len() > 0 {
		rec.Digest = r.Payload.Digest()
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if r.Spawned && r.Outcome.Kind != 0 {
		rec.Outcome = r.Outcome.Kind.String()
		rec.ExitCode = r.Outcome.Code
		rec.Signal = int(r.Outcome.Signal)
	}
	return rec
}

// Event wraps Record for Sink.Send.
func (r Result) Event() history.Event {
	typ := history.EventFinished
	if r.Err != nil {
		typ = history.EventFailed
	}
	return history.Event{Type: typ, OccurredAt: r.FinishedAt, Record: r.Record()}
}

// MetricsRun summarises the result for metrics.ObserveRun.
func (r Result) MetricsRun() metrics.Run {
	m := metrics.Run{
		Verdict:     string(r.Exit.Cause),
		PayloadSize: r.Payload.Len(),
		Truncated:   r.Payload.Truncated(),
		Spawned:     r.Spawned && r.Outcome.Kind != 0,
		Duration:    r.Outcome.Duration,
		Usage:       r.Usage,
	}
	if r.Outcome.Kind == bridge.KindSignaled {
		m.Signal = exit.SignalName(r.Outcome.Signal)
	}
	return m
}

// Realize ends this process as e describes. It does not return.
func Realize(e ProcessExit) { exit.Realize(e) }

// IsInputError reports whether err came from loading the input file.
func IsInputError(err error) bool {
	return errors.Is(err, input.ErrEmptyInput) || errors.Is(err, input.ErrUnreadable)
}

// LoadConfig reads a TOML configuration file with FUZZBRIDGE_ overrides.
func LoadConfig(path string) (*Config, error) {
	return cfg.LoadFile(path)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
