package history

import (
	"fmt"
	"strings"
	"time"
)

// Table is the relational table written by the SQL sinks.
const Table = "run_history"

// Columns is the column order shared by the SQL sinks.
var Columns = []string{
	"run_id", "event", "occurred_at", "input_path", "input_size", "truncated",
	"digest", "target", "pid", "outcome", "exit_code", "signal", "verdict",
	"error", "peak_rss", "started_at", "finished_at",
}

// Values returns e flattened in Columns order.
func (e Event) Values() []any {
	r := e.Record
	return []any{
		r.RunID, string(e.Type), e.OccurredAt.UTC(), r.InputPath, int64(r.InputSize), r.Truncated,
		r.Digest, r.Target, int64(r.PID), r.Outcome, int64(r.ExitCode), int64(r.Signal), r.Verdict,
		r.Error, int64(r.PeakRSS), r.StartedAt.UTC(), r.FinishedAt.UTC(),
	}
}

// InsertSQL builds an INSERT for table; ph renders the i-th (1-based)
// placeholder in the driver's dialect.
func InsertSQL(table string, ph func(i int) string) string {
	marks := make([]string, len(Columns))
	for i := range Columns {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", table, strings.Join(Columns, ", "), strings.Join(marks, ", "))
}

// SelectRecentSQL selects Columns newest first with a limit placeholder.
func SelectRecentSQL(table, limitPH string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY occurred_at DESC LIMIT %s", strings.Join(Columns, ", "), table, limitPH)
}

// ScanEvent reads one row selected with Columns.
func ScanEvent(scan func(dest ...any) error) (Event, error) {
	var (
		e                           Event
		typ                         string
		size, pid, code, sig, rss   int64
		occurred, started, finished time.Time
	)
	r := &e.Record
	if err := scan(&r.RunID, &typ, &occurred, &r.InputPath, &size, &r.Truncated,
		&r.Digest, &r.Target, &pid, &r.Outcome, &code, &sig, &r.Verdict,
		&r.Error, &rss, &started, &finished); err != nil {
		return Event{}, err
	}
	e.Type = EventType(typ)
	e.OccurredAt = occurred.UTC()
	r.InputSize = int(size)
	r.PID = int(pid)
	r.ExitCode = int(code)
	r.Signal = int(sig)
	r.PeakRSS = uint64(rss)
	r.StartedAt = started.UTC()
	r.FinishedAt = finished.UTC()
	return e, nil
}
