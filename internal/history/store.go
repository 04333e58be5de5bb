// Package history records generate runs and their executions in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/smokegen/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Execution is one recorded test case, executed or skipped.
type Execution struct {
	ID         int64
	RunID      string
	Utility    string
	Option     models.OptionDefinition
	Command    string
	Output     string
	ExitStatus int
	Signaled   bool
	TimedOut   bool
	Skipped    bool
	Reason     string // Why the case was skipped
	Duration   time.Duration
	RecordedAt time.Time
}

// Run is the aggregate row of one generate invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // Zero while the run is in progress or was aborted
	Utilities  int
	Cases      int
	Skipped    int
	TimedOut   int
	Duration   time.Duration
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Store manages the SQLite run history database
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Open opens (creating if needed) the history database at dbPath and applies
// the schema. MemoryPath gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == MemoryPath {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, now: time.Now}, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun inserts a new run and returns its generated ID.
func (s *Store) BeginRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordExecution records an executed test case under runID.
func (s *Store) RecordExecution(ctx context.Context, runID string, tc models.TestCase) error {
	r := tc.Result
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions
		(run_id, utility, option_kind, option_value, keyword, command, output, exit_status, signaled, timed_out, skipped, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		runID, tc.Utility, string(tc.Option.Kind), tc.Option.Value, tc.Option.Keyword,
		r.Command, r.Output, r.ExitStatus, r.Signaled, r.TimedOut,
		r.Duration.Milliseconds(), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecordSkip records a case dropped under the skip policy.
func (s *Store) RecordSkip(ctx context.Context, runID string, sc models.SkippedCase) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions
		(run_id, utility, option_kind, option_value, keyword, command, skipped, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		runID, sc.Utility, string(sc.Option.Kind), sc.Option.Value, sc.Option.Keyword,
		sc.Command, sc.Reason, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert skipped execution: %w", err)
	}
	return nil
}

// FinishRun stores the summary totals of runID and marks it finished.
func (s *Store) FinishRun(ctx context.Context, runID string, summary models.RunSummary) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs
		SET finished_at = ?, utilities = ?, cases = ?, skipped = ?, timed_out = ?, duration_ms = ?
		WHERE id = ?`,
		s.now().UnixMilli(), len(summary.Utilities), summary.TotalCases(), summary.TotalSkipped(),
		summary.TimedOutCases(), summary.Duration.Milliseconds(), runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const executionColumns = `id, run_id, utility, option_kind, option_value, keyword, command, output,
	exit_status, signaled, timed_out, skipped, reason, duration_ms, recorded_at`

// RecentExecutions returns up to limit executions, most recent first.
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// Executions returns every execution of runID in recording order.
func (s *Store) Executions(ctx context.Context, runID string) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

func scanExecutions(rows *sql.Rows) ([]Execution, error) {
	var executions []Execution
	for rows.Next() {
		var (
			e                Execution
			kind             string
			output, reason   sql.NullString
			exitStatus       sql.NullInt64
			durationMs, atMs int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Utility, &kind, &e.Option.Value, &e.Option.Keyword,
			&e.Command, &output, &exitStatus, &e.Signaled, &e.TimedOut, &e.Skipped, &reason,
			&durationMs, &atMs); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		e.Option.Kind = models.OptionKind(kind)
		e.Output = output.String
		e.Reason = reason.String
		e.ExitStatus = int(exitStatus.Int64)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.RecordedAt = time.UnixMilli(atMs)
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return executions, nil
}

// Runs returns up to limit runs, most recently started first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, utilities, cases, skipped, timed_out, duration_ms
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedMs  int64
			finishedMs sql.NullInt64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &startedMs, &finishedMs, &r.Utilities, &r.Cases, &r.Skipped,
			&r.TimedOut, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		if finishedMs.Valid {
			r.FinishedAt = time.UnixMilli(finishedMs.Int64)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
