package bridge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/loykin/fuzzbridge/internal/input"
)

// Default companion command used when no target is configured.
const (
	DefaultCommand = "python3"
	DefaultScript  = "./targeted_webview_harness.py"
)

// MaxArgLen caps the payload argument in bytes. Linux rejects any single
// argv string of 128 KiB or more, terminator included, with E2BIG.
const MaxArgLen = 128<<10 - 1

// Target describes the analysis process that receives each payload.
type Target struct {
	Command string        `json:"command"`  // executable, resolved through PATH
	Args    []string      `json:"args"`     // fixed arguments placed before the payload argument
	Dir     string        `json:"work_dir"` // optional working dir; inherited when empty
	Env     []string      `json:"env"`      // full environment; inherited when nil
	Timeout time.Duration `json:"timeout"`  // 0 waits forever
	Stdout  io.Writer     `json:"-"`        // defaults to this process's stdout
	Stderr  io.Writer     `json:"-"`        // defaults to this process's stderr
}

// DefaultTarget returns the python companion script target.
func DefaultTarget() Target {
	return Target{Command: DefaultCommand, Args: []string{DefaultScript}}
}

// Name is a short label for logs and metrics.
func (t Target) Name() string {
	parts := append([]string{t.Command}, t.Args...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// BuildCommand constructs the child command for payload. The payload text is
// appended as the last argument, cut at MaxArgLen bytes; stdin is wired
// separately by Spawn and always carries the whole payload.
func (t Target) BuildCommand(ctx context.Context, payload input.Payload) *exec.Cmd {
	args := make([]string, 0, len(t.Args)+1)
	args = append(args, t.Args...)
	args = append(args, ArgText(payload))
	// ok: the target command comes from operator configuration
	// #nosec G204
	cmd := exec.CommandContext(ctx, t.Command, args...)
	if t.Dir != "" {
		cmd.Dir = t.Dir
	}
	if t.Env != nil {
		cmd.Env = t.Env
	}
	cmd.Stdout = t.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = t.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	configureSysProcAttr(cmd)
	// on timeout take the whole process group, not just the direct child
	cmd.Cancel = func() error {
		if err := killProcessGroup(cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	return cmd
}

// ArgText is the payload argument: the text before the first NUL, at most
// MaxArgLen bytes.
func ArgText(payload input.Payload) string {
	text := payload.Text()
	if len(text) > MaxArgLen {
		slog.Debug("Payload argument shortened", "bytes", len(text), "limit", MaxArgLen)
		text = text[:MaxArgLen]
	}
	return text
}
