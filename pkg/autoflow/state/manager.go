package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Manager is the state access layer handed to the engines. It owns ID
// generation and record construction on top of a pluggable Store.
//
// A Manager is an explicit, injected dependency with a process-scoped
// lifetime bracketed by Initialize and Close; run history is never held
// in package-level state.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger. Default: no logging.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize prepares the backing store.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.store.Initialize(ctx)
}

// Close releases the backing store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// CreateRun persists a new PENDING workflow run and returns it.
func (m *Manager) CreateRun(ctx context.Context, workflowID string, trigCtx map[string]any) (*WorkflowRun, error) {
	run := &WorkflowRun{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		Status:         StatusPending,
		TriggerContext: trigCtx,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.store.CreateWorkflowRun(ctx, run); err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Debug("workflow run created",
			slog.String("run_id", run.ID),
			slog.String("workflow_id", workflowID),
		)
	}
	return run, nil
}

// TransitionRun moves a run to a new status, replacing its output when
// output is non-nil.
func (m *Manager) TransitionRun(ctx context.Context, runID string, status Status, output map[string]any) error {
	return m.store.UpdateRunStatus(ctx, runID, status, output)
}

// CreateStep persists a new PENDING step run for a workflow run.
func (m *Manager) CreateStep(ctx context.Context, runID, stepName string) (*StepRun, error) {
	step := &StepRun{
		ID:            uuid.New().String(),
		WorkflowRunID: runID,
		StepName:      stepName,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.CreateStepRun(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// TransitionStep moves a step to a new status.
func (m *Manager) TransitionStep(ctx context.Context, stepID string, status Status, output map[string]any) error {
	return m.store.UpdateStepStatus(ctx, stepID, status, output)
}

// GetRun returns a workflow run by ID.
func (m *Manager) GetRun(ctx context.Context, runID string) (*WorkflowRun, error) {
	return m.store.GetWorkflowRun(ctx, runID)
}

// StepRuns returns a run's steps in creation order.
func (m *Manager) StepRuns(ctx context.Context, runID string) ([]*StepRun, error) {
	return m.store.GetStepRuns(ctx, runID)
}

// RecentExecutions returns the most recent workflow runs, newest first.
func (m *Manager) RecentExecutions(ctx context.Context, limit int) ([]*WorkflowRun, error) {
	return m.store.RecentExecutions(ctx, limit)
}
