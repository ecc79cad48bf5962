package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/fuzzbridge/internal/history"
)

// Sink writes history events to SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite history schema: %w", err)
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + history.Table + `(
			run_id TEXT NOT NULL,
			event TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			input_path TEXT NOT NULL,
			input_size INTEGER NOT NULL,
			truncated BOOLEAN NOT NULL,
			digest TEXT NOT NULL,
			target TEXT NOT NULL,
			pid INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			signal INTEGER NOT NULL,
			verdict TEXT NOT NULL,
			error TEXT NOT NULL,
			peak_rss INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_history_occurred ON ` + history.Table + `(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_history_digest ON ` + history.Table + `(digest);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	q := history.InsertSQL(history.Table, func(int) string { return "?" })
	if _, err := s.db.ExecContext(ctx, q, e.Values()...); err != nil {
		return fmt.Errorf("sqlite history insert: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]history.Event, error) {
	rows, err := s.db.QueryContext(ctx, history.SelectRecentSQL(history.Table, "?"), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []history.Event
	for rows.Next() {
		e, err := history.ScanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
