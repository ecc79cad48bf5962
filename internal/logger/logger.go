package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// FileConfig describes rotated log files.
// Path receives this process's own diagnostics (in addition to stderr).
// Target output goes to StdoutPath/StderrPath, or Dir/<name>.stdout.log and
// Dir/<name>.stderr.log when only Dir is set.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	Dir        string `mapstructure:"dir"`
	StdoutPath string `mapstructure:"stdout"`
	StderrPath string `mapstructure:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Config is the diagnostic logging configuration.
type Config struct {
	Level  string     `mapstructure:"level"`  // debug, info, warn, error
	Format string     `mapstructure:"format"` // text or json
	Color  string     `mapstructure:"color"`  // auto, always, never
	File   FileConfig `mapstructure:"file"`
}

func (c FileConfig) rotated(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// TargetWriters returns rotated writers for the target's stdout and stderr.
// Either is nil when no destination is configured for it; callers then let
// the target inherit this process's stream.
func (c Config) TargetWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := c.File.StdoutPath
	stderr := c.File.StderrPath
	if c.File.Dir != "" {
		if err := os.MkdirAll(c.File.Dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create target log dir: %w", err)
		}
		if stdout == "" {
			stdout = filepath.Join(c.File.Dir, fmt.Sprintf("%s.stdout.log", name))
		}
		if stderr == "" {
			stderr = filepath.Join(c.File.Dir, fmt.Sprintf("%s.stderr.log", name))
		}
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = c.File.rotated(stdout)
	}
	if stderr != "" {
		errW = c.File.rotated(stderr)
	}
	return outW, errW, nil
}

// ParseLevel maps a level name onto slog; unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is a configured slog.Logger plus the files it owns.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// New builds a logger writing to console and, when File.Path is set, to a
// rotated file. File output is never coloured.
func New(c Config, console io.Writer) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	l := &Logger{}

	handlers := []slog.Handler{consoleHandler(c, console, opts)}
	if c.File.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.File.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f := c.File.rotated(c.File.Path)
		l.closers = append(l.closers, f)
		if strings.EqualFold(c.Format, "json") {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(f, opts))
		}
	}
	if len(handlers) == 1 {
		l.Logger = slog.New(handlers[0])
	} else {
		l.Logger = slog.New(fanout(handlers))
	}
	return l, nil
}

func consoleHandler(c Config, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(c.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	if useColor(c.Color, w) {
		return NewColorTextHandler(w, opts, true)
	}
	return slog.NewTextHandler(w, opts)
}

func useColor(mode string, w io.Writer) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Close flushes and closes file outputs.
func (l *Logger) Close() error {
	var errs []error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
