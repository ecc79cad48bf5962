package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/loykin/fuzzbridge/internal/input"
)

var (
	ErrSpawn    = errors.New("spawn failure")
	ErrTransfer = errors.New("transfer failure")
	ErrWait     = errors.New("wait failure")
)

// Bridge hands payloads to a target process and classifies how it ended.
type Bridge struct {
	target Target
}

func New(t Target) *Bridge { return &Bridge{target: t} }

// Target returns the configured target.
func (b *Bridge) Target() Target { return b.target }

// Run spawns the target, writes the payload to its stdin, and waits for it.
// The child is always reaped: on any error path it is killed before Run returns.
func (b *Bridge) Run(ctx context.Context, payload input.Payload) (Outcome, error) {
	child, err := b.Spawn(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if cerr := child.Close(); cerr != nil {
			slog.Warn("Failed to release target process", "pid", child.PID(), "error", cerr)
		}
	}()
	if err := child.Transfer(payload); err != nil {
		return Outcome{}, err
	}
	return child.Wait()
}

// Spawn creates the stdin pipe and starts the target. The child's stdin is the
// pipe's read end; the write end stays with this process only.
func (b *Bridge) Spawn(ctx context.Context, payload input.Payload) (*Child, error) {
	cancel := context.CancelFunc(func() {})
	if b.target.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.target.Timeout)
	}
	r, w, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create pipe: %w", ErrSpawn, err)
	}
	cmd := b.target.BuildCommand(ctx, payload)
	cmd.Stdin = r
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		cancel()
		if errors.Is(err, syscall.E2BIG) {
			slog.Error("Target command line exceeds the system argument limit",
				"target", b.target.Name(), "arg_bytes", len(cmd.Args[len(cmd.Args)-1]), "env_entries", len(cmd.Env))
		}
		return nil, fmt.Errorf("%w: start %s: %w", ErrSpawn, b.target.Command, err)
	}
	slog.Debug("Target started", "pid", cmd.Process.Pid, "target", b.target.Name())
	return &Child{
		cmd:     cmd,
		stdinR:  r,
		stdinW:  w,
		cancel:  cancel,
		started: time.Now(),
	}, nil
}

// Child owns a started target process and its end of the stdin pipe.
// Close must be called on every path; it kills and reaps a child that was
// never waited for.
type Child struct {
	cmd     *exec.Cmd
	stdinR  *os.File
	stdinW  *os.File
	cancel  context.CancelFunc
	started time.Time

	mu     sync.Mutex
	waited bool
}

func (c *Child) PID() int { return c.cmd.Process.Pid }

// Transfer writes the whole payload in one call and closes the write end,
// which signals end of input to the child.
func (c *Child) Transfer(payload input.Payload) error {
	_ = c.stdinR.Close()
	n, err := payload.WriteTo(c.stdinW)
	cerr := c.stdinW.Close()
	if err != nil {
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrTransfer, n, payload.Len(), err)
	}
	if int(n) < payload.Len() {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrTransfer, n, payload.Len())
	}
	if cerr != nil {
		return fmt.Errorf("%w: close pipe: %w", ErrTransfer, cerr)
	}
	return nil
}

// Wait blocks until the child terminates and classifies its status.
func (c *Child) Wait() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waited {
		return Outcome{}, fmt.Errorf("%w: target %d already waited", ErrWait, c.PID())
	}
	err := c.cmd.Wait()
	c.waited = true
	c.cancel()
	state := c.cmd.ProcessState
	if state == nil {
		return Outcome{}, fmt.Errorf("%w: pid %d: %w", ErrWait, c.PID(), err)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// the process ended; the error came from output copying or the context
		slog.Debug("Target wait reported error", "pid", c.PID(), "error", err)
	}
	out := ClassifyStatus(state)
	out.PID = c.PID()
	out.Duration = time.Since(c.started)
	return out, nil
}

// Close releases the pipe and, if the child was not waited for, kills its
// process group and reaps it.
func (c *Child) Close() error {
	_ = c.stdinR.Close()
	_ = c.stdinW.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waited {
		return nil
	}
	pid := c.PID()
	if err := killProcessGroup(pid, syscall.SIGKILL); err != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	c.waited = true
	c.cancel()
	slog.Warn("Target killed before completion", "pid", pid)
	return nil
}
