package main

import (
	"encoding/json"
	"fmt"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/fuzzbridge/internal/config"
	"github.com/loykin/fuzzbridge/internal/exit"
	"github.com/loykin/fuzzbridge/internal/history"
	"github.com/loykin/fuzzbridge/internal/history/factory"
)

// createHistoryCommand lists recorded runs
func createHistoryCommand(a *app, global *GlobalFlags, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent harness runs",
		Long: `List runs recorded in the history store, newest first.

The store is --dsn, else history.dsn from the config, else the local
SQLite default.

Examples:
  fuzzbridge history
  fuzzbridge history --dsn=postgres://fuzz@db/fuzz --limit=50 --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd, global.ConfigPath, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "history store DSN")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print runs as JSON")
	return cmd
}

func (a *app) history(cmd *cobra.Command, configPath string, f HistoryFlags) error {
	dsn := f.DSN
	if dsn == "" {
		c, err := loadConfig(cmd, configPath)
		if err != nil {
			return err
		}
		dsn = c.HistoryDSN()
	}
	if dsn == "" {
		dsn = config.DefaultHistoryDSN
	}
	if f.Limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", f.Limit)
	}

	sink, err := factory.NewSinkFromDSN(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()
	r, ok := sink.(history.Reader)
	if !ok {
		return fmt.Errorf("history store %T cannot list runs", sink)
	}

	events, err := r.Recent(cmd.Context(), f.Limit)
	if err != nil {
		return err
	}

	if f.JSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if events == nil {
			events = []history.Event{}
		}
		return enc.Encode(events)
	}
	return printEvents(a, events)
}

func printEvents(a *app, events []history.Event) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tFINISHED\tVERDICT\tOUTCOME\tCODE\tSIGNAL\tBYTES\tDURATION\tINPUT")
	for _, e := range events {
		rec := e.Record
		outcome := rec.Outcome
		if outcome == "" {
			outcome = "-"
		}
		sig := "-"
		if rec.Signal > 0 {
			sig = exit.SignalName(syscall.Signal(rec.Signal))
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			shortID(rec.RunID),
			rec.FinishedAt.Local().Format(time.DateTime),
			rec.Verdict,
			outcome,
			rec.ExitCode,
			sig,
			rec.InputSize,
			rec.Duration().Round(time.Millisecond),
			rec.InputPath,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
