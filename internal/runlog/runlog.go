// Package runlog records collector runs in a small SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Trigger values.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// Run is one collector run. FinishedAt is zero while the run is in progress.
type Run struct {
	ID          string    `json:"id"`
	Trigger     string    `json:"trigger"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	Sources     int       `json:"sources"`
	Pages       int       `json:"pages"`
	FailedPages int       `json:"failed_pages"`
	Items       int       `json:"items"`
	Reels       int       `json:"reels"`
	Error       string    `json:"error,omitempty"`
}

// Finished reports whether the run has completed.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// OK reports whether the run completed without error.
func (r Run) OK() bool { return r.Finished() && r.Error == "" }

// Duration is the wall time of a finished run (0 while running).
func (r Run) Duration() time.Duration {
	if !r.Finished() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

const schema = `
CREATE TABLE IF NOT EXISTS collector_runs (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL DEFAULT 0,
	sources      INTEGER NOT NULL DEFAULT 0,
	pages        INTEGER NOT NULL DEFAULT 0,
	failed_pages INTEGER NOT NULL DEFAULT 0,
	items        INTEGER NOT NULL DEFAULT 0,
	reels        INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS collector_runs_started ON collector_runs(started_at);
`

// Log is a run ledger. Safe for concurrent use.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted for tests.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("runlog: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	// One connection: keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: schema: %w", err)
	}
	return &Log{db: db, now: time.Now}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Start inserts an in-progress run.
func (l *Log) Start(ctx context.Context, trigger string) (Run, error) {
	r := Run{ID: uuid.NewString(), Trigger: trigger, StartedAt: l.now().UTC()}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO collector_runs (id, triggered_by, started_at) VALUES (?, ?, ?)`,
		r.ID, r.Trigger, r.StartedAt.UnixMilli())
	if err != nil {
		return Run{}, fmt.Errorf("runlog: start: %w", err)
	}
	return r, nil
}

// Finish stamps FinishedAt and stores the counters of r.
func (l *Log) Finish(ctx context.Context, r Run) (Run, error) {
	r.FinishedAt = l.now().UTC()
	res, err := l.db.ExecContext(ctx,
		`UPDATE collector_runs SET finished_at = ?, sources = ?, pages = ?, failed_pages = ?, items = ?, reels = ?, error = ? WHERE id = ?`,
		r.FinishedAt.UnixMilli(), r.Sources, r.Pages, r.FailedPages, r.Items, r.Reels, r.Error, r.ID)
	if err != nil {
		return r, fmt.Errorf("runlog: finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r, fmt.Errorf("runlog: finish: unknown run %s", r.ID)
	}
	return r, nil
}

// Last returns the most recently started run, or nil when none exist.
func (l *Log) Last(ctx context.Context) (*Run, error) {
	runs, err := l.Recent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// LastSuccess returns the most recent run that finished without error, or nil.
func (l *Log) LastSuccess(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+` WHERE finished_at > 0 AND error = '' ORDER BY started_at DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: last success: %w", err)
	}
	return &r, nil
}

// Recent returns up to n runs, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("runlog: recent: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const selectRuns = `SELECT id, triggered_by, started_at, finished_at, sources, pages, failed_pages, items, reels, error FROM collector_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, finished int64
	if err := s.Scan(&r.ID, &r.Trigger, &started, &finished, &r.Sources, &r.Pages, &r.FailedPages, &r.Items, &r.Reels, &r.Error); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished).UTC()
	}
	return r, nil
}
