// Package state persists workflow run history.
//
// A WorkflowRun is created when a workflow begins executing and a
// StepRun is created as execution reaches each task. Both move through
// a monotonic status lifecycle and become immutable historical records
// once terminal. Stores only ever append records and update the status
// of records owned by a single in-flight run; they are safe for
// concurrent use.
package state

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a workflow run or step run.
type Status string

// Run statuses. Transitions are monotonic: PENDING -> RUNNING ->
// {COMPLETED | FAILED}; CANCELLED is reachable from PENDING or RUNNING
// only. Terminal statuses never change.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a transition from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	}
	return false
}

// WorkflowRun is one execution instance of a workflow.
type WorkflowRun struct {
	ID             string
	WorkflowID     string
	Status         Status
	TriggerContext map[string]any
	Output         map[string]any
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// StepRun is one execution instance of a single task within a run.
type StepRun struct {
	ID            string
	WorkflowRunID string
	StepName      string
	Status        Status
	Output        map[string]any
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// Store persists run history. Implementations must be safe for
// concurrent use and must enforce the status transition rules.
type Store interface {
	// Initialize prepares the backing storage (creates tables, etc).
	Initialize(ctx context.Context) error

	// CreateWorkflowRun persists a new run record.
	CreateWorkflowRun(ctx context.Context, run *WorkflowRun) error

	// UpdateRunStatus transitions a run, replacing its output when
	// output is non-nil. Returns ErrInvalidTransition for illegal
	// transitions and ErrRunNotFound for unknown IDs.
	UpdateRunStatus(ctx context.Context, runID string, status Status, output map[string]any) error

	// GetWorkflowRun returns a run by ID, or ErrRunNotFound.
	GetWorkflowRun(ctx context.Context, runID string) (*WorkflowRun, error)

	// CreateStepRun persists a new step record.
	CreateStepRun(ctx context.Context, step *StepRun) error

	// UpdateStepStatus transitions a step, mirroring UpdateRunStatus.
	UpdateStepStatus(ctx context.Context, stepID string, status Status, output map[string]any) error

	// GetStepRuns returns a run's steps in creation order.
	GetStepRuns(ctx context.Context, runID string) ([]*StepRun, error)

	// RecentExecutions returns the most recent runs, newest first.
	RecentExecutions(ctx context.Context, limit int) ([]*WorkflowRun, error)

	// Close releases backing resources.
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrRunNotFound indicates an unknown workflow run ID.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrStepNotFound indicates an unknown step run ID.
	ErrStepNotFound = errors.New("step run not found")

	// ErrInvalidTransition indicates an illegal status transition,
	// including any update to a terminal record.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("state store closed")
)

// transitionTimes returns the timestamp updates implied by entering a
// status: RUNNING stamps StartedAt, terminal statuses stamp CompletedAt.
func transitionTimes(status Status, now time.Time) (startedAt, completedAt *time.Time) {
	if status == StatusRunning {
		return &now, nil
	}
	if status.Terminal() {
		return nil, &now
	}
	return nil, nil
}
