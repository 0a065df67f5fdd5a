package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory run store for tests and development.
// Data is lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*WorkflowRun
	runOrder  []string
	steps     map[string]*StepRun
	stepOrder map[string][]string // runID -> step IDs in creation order
	closed    bool
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*WorkflowRun),
		steps:     make(map[string]*StepRun),
		stepOrder: make(map[string][]string),
	}
}

// Initialize implements Store.
func (m *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

// CreateWorkflowRun implements Store.
func (m *MemoryStore) CreateWorkflowRun(ctx context.Context, run *WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	stored := *run
	m.runs[run.ID] = &stored
	m.runOrder = append(m.runOrder, run.ID)
	return nil
}

// UpdateRunStatus implements Store.
func (m *MemoryStore) UpdateRunStatus(ctx context.Context, runID string, status Status, output map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	if !run.Status.CanTransition(status) {
		return fmt.Errorf("run %q: %s -> %s: %w", runID, run.Status, status, ErrInvalidTransition)
	}

	run.Status = status
	if output != nil {
		run.Output = output
	}
	startedAt, completedAt := transitionTimes(status, time.Now().UTC())
	if startedAt != nil {
		run.StartedAt = startedAt
	}
	if completedAt != nil {
		run.CompletedAt = completedAt
	}
	return nil
}

// GetWorkflowRun implements Store.
func (m *MemoryStore) GetWorkflowRun(ctx context.Context, runID string) (*WorkflowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	copied := *run
	return &copied, nil
}

// CreateStepRun implements Store.
func (m *MemoryStore) CreateStepRun(ctx context.Context, step *StepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	stored := *step
	m.steps[step.ID] = &stored
	m.stepOrder[step.WorkflowRunID] = append(m.stepOrder[step.WorkflowRunID], step.ID)
	return nil
}

// UpdateStepStatus implements Store.
func (m *MemoryStore) UpdateStepStatus(ctx context.Context, stepID string, status Status, output map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	step, ok := m.steps[stepID]
	if !ok {
		return fmt.Errorf("step %q: %w", stepID, ErrStepNotFound)
	}
	if !step.Status.CanTransition(status) {
		return fmt.Errorf("step %q: %s -> %s: %w", stepID, step.Status, status, ErrInvalidTransition)
	}

	step.Status = status
	if output != nil {
		step.Output = output
	}
	startedAt, completedAt := transitionTimes(status, time.Now().UTC())
	if startedAt != nil {
		step.StartedAt = startedAt
	}
	if completedAt != nil {
		step.CompletedAt = completedAt
	}
	return nil
}

// GetStepRuns implements Store.
func (m *MemoryStore) GetStepRuns(ctx context.Context, runID string) ([]*StepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := m.stepOrder[runID]
	steps := make([]*StepRun, 0, len(ids))
	for _, id := range ids {
		copied := *m.steps[id]
		steps = append(steps, &copied)
	}
	return steps, nil
}

// RecentExecutions implements Store.
func (m *MemoryStore) RecentExecutions(ctx context.Context, limit int) ([]*WorkflowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	runs := make([]*WorkflowRun, 0, len(m.runOrder))
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		copied := *m.runs[m.runOrder[i]]
		runs = append(runs, &copied)
	}
	return runs, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
