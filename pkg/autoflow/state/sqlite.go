package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeLayout keeps trailing zeros so stored timestamps sort
// lexicographically in ORDER BY clauses.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists run history to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteStore creates a SQLite run store. The path should be a file
// path (e.g. "./autoflow.db") or ":memory:" for testing. Call
// Initialize before use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Initialize implements Store. It creates tables and indexes.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			trigger_context TEXT,
			output TEXT,
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS step_runs (
			id TEXT PRIMARY KEY,
			workflow_run_id TEXT NOT NULL,
			step_name TEXT NOT NULL,
			status TEXT NOT NULL,
			output TEXT,
			started_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_created
			ON workflow_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_step_runs_run_id
			ON step_runs(workflow_run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// CreateWorkflowRun implements Store.
func (s *SQLiteStore) CreateWorkflowRun(ctx context.Context, run *WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	trigCtx, err := marshalMap(run.TriggerContext)
	if err != nil {
		return fmt.Errorf("serialize trigger context: %w", err)
	}
	output, err := marshalMap(run.Output)
	if err != nil {
		return fmt.Errorf("serialize output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs
		(id, workflow_id, status, trigger_context, output, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.WorkflowID, string(run.Status), trigCtx, output,
		formatTime(run.StartedAt), formatTime(run.CompletedAt),
		run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create workflow run: %w", err)
	}
	return nil
}

// UpdateRunStatus implements Store.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status Status, output map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM workflow_runs WHERE id = ?`, runID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return fmt.Errorf("load run status: %w", err)
	}
	if !Status(current).CanTransition(status) {
		return fmt.Errorf("run %q: %s -> %s: %w", runID, current, status, ErrInvalidTransition)
	}

	return s.applyTransition(ctx, "workflow_runs", runID, status, output)
}

// GetWorkflowRun implements Store.
func (s *SQLiteStore) GetWorkflowRun(ctx context.Context, runID string) (*WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, status, trigger_context, output, started_at, completed_at, created_at
		FROM workflow_runs WHERE id = ?
	`, runID)

	run, err := scanWorkflowRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow run: %w", err)
	}
	return run, nil
}

// CreateStepRun implements Store.
func (s *SQLiteStore) CreateStepRun(ctx context.Context, step *StepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	output, err := marshalMap(step.Output)
	if err != nil {
		return fmt.Errorf("serialize output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO step_runs
		(id, workflow_run_id, step_name, status, output, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, step.ID, step.WorkflowRunID, step.StepName, string(step.Status), output,
		formatTime(step.StartedAt), formatTime(step.CompletedAt),
		step.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create step run: %w", err)
	}
	return nil
}

// UpdateStepStatus implements Store.
func (s *SQLiteStore) UpdateStepStatus(ctx context.Context, stepID string, status Status, output map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM step_runs WHERE id = ?`, stepID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if err != nil {
		return fmt.Errorf("load step status: %w", err)
	}
	if !Status(current).CanTransition(status) {
		return fmt.Errorf("step %q: %s -> %s: %w", stepID, current, status, ErrInvalidTransition)
	}

	return s.applyTransition(ctx, "step_runs", stepID, status, output)
}

// GetStepRuns implements Store.
func (s *SQLiteStore) GetStepRuns(ctx context.Context, runID string) ([]*StepRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_run_id, step_name, status, output, started_at, completed_at, created_at
		FROM step_runs
		WHERE workflow_run_id = ?
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list step runs: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		var step StepRun
		var status, created string
		var output, started, completed sql.NullString
		if err := rows.Scan(&step.ID, &step.WorkflowRunID, &step.StepName, &status,
			&output, &started, &completed, &created); err != nil {
			return nil, fmt.Errorf("scan step run: %w", err)
		}
		step.Status = Status(status)
		step.Output = unmarshalMap(output)
		step.StartedAt = parseTime(started)
		step.CompletedAt = parseTime(completed)
		step.CreatedAt, _ = time.Parse(timeLayout, created)
		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step runs: %w", err)
	}
	return steps, nil
}

// RecentExecutions implements Store.
func (s *SQLiteStore) RecentExecutions(ctx context.Context, limit int) ([]*WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, status, trigger_context, output, started_at, completed_at, created_at
		FROM workflow_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []*WorkflowRun
	for rows.Next() {
		run, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow runs: %w", err)
	}
	return runs, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// applyTransition writes the status, output, and implied timestamps.
// The caller holds the mutex and has validated the transition.
func (s *SQLiteStore) applyTransition(ctx context.Context, table, id string, status Status, output map[string]any) error {
	startedAt, completedAt := transitionTimes(status, time.Now().UTC())

	query := `UPDATE ` + table + ` SET status = ?`
	args := []any{string(status)}

	if output != nil {
		encoded, err := marshalMap(output)
		if err != nil {
			return fmt.Errorf("serialize output: %w", err)
		}
		query += `, output = ?`
		args = append(args, encoded)
	}
	if startedAt != nil {
		query += `, started_at = ?`
		args = append(args, formatTime(startedAt))
	}
	if completedAt != nil {
		query += `, completed_at = ?`
		args = append(args, formatTime(completedAt))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflowRun(row rowScanner) (*WorkflowRun, error) {
	var run WorkflowRun
	var status, created string
	var trigCtx, output, started, completed sql.NullString
	if err := row.Scan(&run.ID, &run.WorkflowID, &status, &trigCtx, &output,
		&started, &completed, &created); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.TriggerContext = unmarshalMap(trigCtx)
	run.Output = unmarshalMap(output)
	run.StartedAt = parseTime(started)
	run.CompletedAt = parseTime(completed)
	run.CreatedAt, _ = time.Parse(timeLayout, created)
	return &run, nil
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMap(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
