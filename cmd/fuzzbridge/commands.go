package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/fuzzbridge"
	"github.com/loykin/fuzzbridge/internal/config"
	"github.com/loykin/fuzzbridge/internal/history/factory"
	"github.com/loykin/fuzzbridge/internal/logger"
	"github.com/loykin/fuzzbridge/internal/metrics"
)

// pushTimeout bounds the Pushgateway round trip after a run.
const pushTimeout = 5 * time.Second

// errUsage is returned when the input file argument is missing or repeated.
var errUsage = errors.New("expected exactly one input file")

// app carries the streams and the exit hook shared by all commands. Tests
// swap realize for a recorder so the test binary survives a crash verdict.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	realize func(fuzzbridge.ProcessExit)
}

func newApp(stdout, stderr io.Writer, realize func(fuzzbridge.ProcessExit)) *app {
	return &app{stdout: stdout, stderr: stderr, realize: realize}
}

// buildRoot creates the root command and its subcommands
func buildRoot(a *app) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	historyFlags := &HistoryFlags{}

	root := createRootCommand(a, globalFlags, runFlags)
	root.AddCommand(
		createHistoryCommand(a, globalFlags, historyFlags),
		createVersionCommand(a),
	)
	return root
}

// createRootCommand creates the harness command: one input file per run
func createRootCommand(a *app, global *GlobalFlags, flags *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "fuzzbridge [flags] <input_file>",
		Short: "Bridge fuzzer inputs to an out-of-process analysis target",
		Long: `fuzzbridge reads one fuzzer-generated input file, hands it to the target
process on stdin and as its last argument, and ends the same way the target
did. A detection (non-zero exit) or a fatal signal in the target makes
fuzzbridge die by a signal so the fuzzer records a crash.

Examples:
  fuzzbridge /out/queue/id:000042
  fuzzbridge --target-cmd=./analyzer --timeout=5s ./case.html
  fuzzbridge --config=fuzzbridge.toml -- -input-starting-with-dash
  fuzzbridge history --limit=5`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_, _ = fmt.Fprint(a.stderr, cmd.UsageString())
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, global.ConfigPath, args[0])
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&global.ConfigPath, "config", "", "path to TOML config file (or FUZZBRIDGE_CONFIG)")

	root.Flags().IntVar(&flags.MaxInput, "max-input", 0, "payload capacity in bytes (default 1048575)")
	root.Flags().StringVar(&flags.TargetCmd, "target-cmd", "", "target executable (default python3)")
	root.Flags().StringArrayVar(&flags.TargetArgs, "target-arg", nil, "fixed target argument, repeatable (default ./targeted_webview_harness.py)")
	root.Flags().DurationVar(&flags.Timeout, "timeout", 0, "kill the target after this long (0 waits forever)")
	root.Flags().StringVar(&flags.LogLevel, "log-level", "", "debug, info, warn or error")
	root.Flags().StringVar(&flags.LogFormat, "log-format", "", "text or json")
	root.Flags().StringVar(&flags.HistoryDSN, "history-dsn", "", "record each run to this store (sqlite, postgres, clickhouse, opensearch)")
	root.Flags().StringVar(&flags.MetricsFile, "metrics-textfile", "", "write run metrics to this node_exporter textfile")
	root.Flags().StringVar(&flags.MetricsPushURL, "metrics-push-url", "", "push run metrics to this Pushgateway")
	return root
}

// createVersionCommand prints the build version
func createVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fuzzbridge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "fuzzbridge %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig resolves configuration with flag > env > file > default
// precedence. Flags the command does not define are skipped.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG")
	}
	v := config.NewViper()
	for name, key := range runFlagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return config.Load(v, path)
}

// run executes one harness run and ends the process with its verdict.
// Everything that must outlive the run is flushed before realize.
func (a *app) run(cmd *cobra.Command, configPath, inputPath string) error {
	c, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(c.Logger(), a.stderr)
	if err != nil {
		return err
	}
	prev := slog.Default()
	slog.SetDefault(log.Logger)

	var closers []io.Closer
	res, err := a.runHarness(cmd.Context(), c, inputPath, &closers)
	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i].Close(); cerr != nil {
			slog.Warn("Close failed", "error", cerr)
		}
	}
	if err != nil {
		slog.Error("Harness setup failed", "error", err)
	}
	_ = log.Close()
	slog.SetDefault(prev)
	if err != nil {
		return err
	}

	a.realize(res.Exit)
	return nil
}

func (a *app) runHarness(ctx context.Context, c *config.Config, inputPath string, closers *[]io.Closer) (fuzzbridge.Result, error) {
	h, err := fuzzbridge.NewFromConfig(c)
	if err != nil {
		return fuzzbridge.Result{}, err
	}
	h.Target.Stdout, h.Target.Stderr = a.stdout, a.stderr
	outW, errW, err := c.Logger().TargetWriters(filepath.Base(h.Target.Command))
	if err != nil {
		return fuzzbridge.Result{}, err
	}
	if outW != nil {
		h.Target.Stdout = outW
		*closers = append(*closers, outW)
	}
	if errW != nil {
		h.Target.Stderr = errW
		*closers = append(*closers, errW)
	}

	if dsn := c.HistoryDSN(); dsn != "" {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			// a missing audit trail must not change what the fuzzer sees
			slog.Warn("Run history disabled", "error", err)
		} else {
			h.Sink = sink
			*closers = append(*closers, sink)
		}
	}

	var reg *prometheus.Registry
	if c.Metrics.Textfile != "" || c.Metrics.PushURL != "" {
		reg = prometheus.NewRegistry()
		if err := fuzzbridge.RegisterMetrics(reg); err != nil {
			return fuzzbridge.Result{}, fmt.Errorf("register metrics: %w", err)
		}
	}

	res := h.Run(ctx, inputPath)

	if reg != nil {
		exportMetrics(ctx, c.Metrics, reg)
	}
	return res, nil
}

func exportMetrics(ctx context.Context, mc config.MetricsConfig, g prometheus.Gatherer) {
	if mc.Textfile != "" {
		if err := metrics.WriteTextfile(mc.Textfile, g); err != nil {
			slog.Warn("Metrics textfile not written", "error", err)
		}
	}
	if mc.PushURL != "" {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := metrics.Push(pctx, mc.PushURL, mc.Job, g); err != nil {
			slog.Warn("Metrics push failed", "error", err)
		}
	}
}
