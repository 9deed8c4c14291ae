// Package ledger keeps a local history of ingestion runs in SQLite, so an
// operator can see where a failed run stopped and which generation it left
// behind.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// DefaultListLimit caps List when limit is not positive.
const DefaultListLimit = 20

// Run is one ledger row.
type Run struct {
	ID             string    `json:"id"`
	Index          string    `json:"index"`
	Alias          string    `json:"alias"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"` // zero while the run is in progress
	Files          int       `json:"files"`
	Records        int       `json:"records"`
	Failed         int       `json:"failed"`
	BindingsBefore []string  `json:"bindings_before"`
	BindingsAfter  []string  `json:"bindings_after"`
	Error          string    `json:"error,omitempty"`
}

// Finished reports whether the run reached a terminal state.
func (r *Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Ledger is the run history store.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead, "failed to create ledger directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeFileRead, "failed to open run ledger", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, docerrors.New(docerrors.ErrCodeFileRead, "failed to initialise run ledger", err)
	}
	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		index_name TEXT NOT NULL DEFAULT '',
		alias TEXT NOT NULL,
		state TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		files INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		bindings_before TEXT NOT NULL DEFAULT '',
		bindings_after TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// Begin inserts a new run in state and returns it.
func (l *Ledger) Begin(ctx context.Context, alias, state string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Alias:     alias,
		State:     state,
		StartedAt: time.Now(),
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, alias, state, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Alias, run.State, run.StartedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Save writes every field of run.
func (l *Ledger) Save(ctx context.Context, run *Run) error {
	var finished int64
	if run.Finished() {
		finished = run.FinishedAt.UnixMilli()
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET
			index_name = ?, state = ?, finished_at = ?,
			files = ?, records = ?, failed = ?,
			bindings_before = ?, bindings_after = ?, error = ?
		WHERE id = ?
	`, run.Index, run.State, finished,
		run.Files, run.Records, run.Failed,
		strings.Join(run.BindingsBefore, ","), strings.Join(run.BindingsAfter, ","), run.Error,
		run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run: no run with id %s", run.ID)
	}
	return nil
}

// Get returns one run.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, docerrors.ValidationError(fmt.Sprintf("no run with id %s", id), nil)
	}
	return run, err
}

// List returns up to limit runs, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := l.db.QueryContext(ctx, selectRuns+" ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

const selectRuns = `
	SELECT id, index_name, alias, state, started_at, finished_at,
		files, records, failed, bindings_before, bindings_after, error
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var started, ended int64
	var before, after string
	err := s.Scan(&run.ID, &run.Index, &run.Alias, &run.State, &started, &ended,
		&run.Files, &run.Records, &run.Failed, &before, &after, &run.Error)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	if ended > 0 {
		run.FinishedAt = time.UnixMilli(ended)
	}
	run.BindingsBefore = splitList(before)
	run.BindingsAfter = splitList(after)
	return &run, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
