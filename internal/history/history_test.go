package history

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleEvent() Event {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Event{
		Type:       EventFinished,
		OccurredAt: start.Add(2 * time.Second),
		Record: Record{
			RunID:      "3f1c",
			InputPath:  "/corpus/id:000001",
			InputSize:  17,
			Digest:     "abc",
			Target:     "python3",
			PID:        4242,
			Outcome:    "exited",
			ExitCode:   1,
			Verdict:    "vulnerability",
			PeakRSS:    1 << 20,
			StartedAt:  start,
			FinishedAt: start.Add(1500 * time.Millisecond),
		},
	}
}

func TestRecordDurationAndCrashed(t *testing.T) {
	r := sampleEvent().Record
	if r.Duration() != 1500*time.Millisecond {
		t.Fatalf("duration = %s", r.Duration())
	}
	if !r.Crashed() {
		t.Fatalf("vulnerability verdict is a crash")
	}
	r.Verdict = "abnormal"
	if r.Crashed() {
		t.Fatalf("abnormal is not a crash")
	}
	r.FinishedAt = r.StartedAt.Add(-time.Second)
	if r.Duration() != 0 {
		t.Fatalf("negative duration should clamp to 0")
	}
}

func TestInsertSQL(t *testing.T) {
	q := InsertSQL("t", func(int) string { return "$" })
	if !strings.HasPrefix(q, "INSERT INTO t(run_id, event, occurred_at") {
		t.Fatalf("unexpected insert: %s", q)
	}
	if got := strings.Count(q, "$"); got != len(Columns) {
		t.Fatalf("placeholders = %d, columns = %d", got, len(Columns))
	}
	if n := len(sampleEvent().Values()); n != len(Columns) {
		t.Fatalf("values = %d, columns = %d", n, len(Columns))
	}
}

func TestScanEventRoundTrip(t *testing.T) {
	e := sampleEvent()
	vals := e.Values()
	got, err := ScanEvent(func(dest ...any) error {
		if len(dest) != len(vals) {
			return errors.New("arity mismatch")
		}
		for i, d := range dest {
			switch p := d.(type) {
			case *string:
				*p = vals[i].(string)
			case *int64:
				*p = vals[i].(int64)
			case *bool:
				*p = vals[i].(bool)
			case *time.Time:
				*p = vals[i].(time.Time)
			default:
				return errors.New("unexpected dest type")
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, e)
	}
}

func TestSelectRecentSQL(t *testing.T) {
	q := SelectRecentSQL(Table, "?")
	if !strings.HasSuffix(q, "FROM run_history ORDER BY occurred_at DESC LIMIT ?") {
		t.Fatalf("unexpected select: %s", q)
	}
}
