package state_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/autoflow/pkg/autoflow/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds each Store implementation so the contract
// suite runs against both.
func storeFactories(t *testing.T) map[string]func(t *testing.T) state.Store {
	return map[string]func(t *testing.T) state.Store{
		"memory": func(t *testing.T) state.Store {
			return state.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) state.Store {
			store, err := state.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			return store
		},
	}
}

func TestStoreRunLifecycle(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			mgr := state.NewManager(store)

			run, err := mgr.CreateRun(ctx, "deploy", map[string]any{"source": "test"})
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, state.StatusPending, run.Status)

			require.NoError(t, mgr.TransitionRun(ctx, run.ID, state.StatusRunning, nil))

			got, err := mgr.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, state.StatusRunning, got.Status)
			assert.NotNil(t, got.StartedAt)
			assert.Nil(t, got.CompletedAt)
			assert.Equal(t, "test", got.TriggerContext["source"])

			require.NoError(t, mgr.TransitionRun(ctx, run.ID, state.StatusCompleted, nil))

			got, err = mgr.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, state.StatusCompleted, got.Status)
			assert.NotNil(t, got.CompletedAt)
		})
	}
}

func TestStoreInvalidTransitions(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			mgr := state.NewManager(store)
			run, err := mgr.CreateRun(ctx, "wf", nil)
			require.NoError(t, err)

			// PENDING cannot jump straight to COMPLETED.
			err = mgr.TransitionRun(ctx, run.ID, state.StatusCompleted, nil)
			assert.ErrorIs(t, err, state.ErrInvalidTransition)

			require.NoError(t, mgr.TransitionRun(ctx, run.ID, state.StatusRunning, nil))
			require.NoError(t, mgr.TransitionRun(ctx, run.ID, state.StatusFailed, nil))

			// Terminal records are immutable.
			err = mgr.TransitionRun(ctx, run.ID, state.StatusRunning, nil)
			assert.ErrorIs(t, err, state.ErrInvalidTransition)
			err = mgr.TransitionRun(ctx, run.ID, state.StatusCancelled, nil)
			assert.ErrorIs(t, err, state.ErrInvalidTransition)
		})
	}
}

func TestStoreStepRuns(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			mgr := state.NewManager(store)
			run, err := mgr.CreateRun(ctx, "wf", nil)
			require.NoError(t, err)

			first, err := mgr.CreateStep(ctx, run.ID, "fetch")
			require.NoError(t, err)
			second, err := mgr.CreateStep(ctx, run.ID, "store")
			require.NoError(t, err)

			require.NoError(t, mgr.TransitionStep(ctx, first.ID, state.StatusRunning, nil))
			require.NoError(t, mgr.TransitionStep(ctx, first.ID, state.StatusCompleted,
				map[string]any{"result": "ok"}))
			require.NoError(t, mgr.TransitionStep(ctx, second.ID, state.StatusRunning, nil))
			require.NoError(t, mgr.TransitionStep(ctx, second.ID, state.StatusFailed,
				map[string]any{"error": "boom"}))

			steps, err := mgr.StepRuns(ctx, run.ID)
			require.NoError(t, err)
			require.Len(t, steps, 2)
			assert.Equal(t, "fetch", steps[0].StepName)
			assert.Equal(t, state.StatusCompleted, steps[0].Status)
			assert.Equal(t, "ok", steps[0].Output["result"])
			assert.Equal(t, "store", steps[1].StepName)
			assert.Equal(t, state.StatusFailed, steps[1].Status)
			assert.Equal(t, "boom", steps[1].Output["error"])
		})
	}
}

func TestStoreRecentExecutions(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			mgr := state.NewManager(store)
			for i := 0; i < 5; i++ {
				_, err := mgr.CreateRun(ctx, fmt.Sprintf("wf-%d", i), nil)
				require.NoError(t, err)
			}

			runs, err := mgr.RecentExecutions(ctx, 3)
			require.NoError(t, err)
			require.Len(t, runs, 3)
			// Newest first.
			assert.Equal(t, "wf-4", runs[0].WorkflowID)
			assert.Equal(t, "wf-3", runs[1].WorkflowID)
			assert.Equal(t, "wf-2", runs[2].WorkflowID)
		})
	}
}

func TestStoreUnknownIDs(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()
			require.NoError(t, store.Initialize(ctx))

			_, err := store.GetWorkflowRun(ctx, "missing")
			assert.ErrorIs(t, err, state.ErrRunNotFound)

			err = store.UpdateRunStatus(ctx, "missing", state.StatusRunning, nil)
			assert.ErrorIs(t, err, state.ErrRunNotFound)

			err = store.UpdateStepStatus(ctx, "missing", state.StatusRunning, nil)
			assert.ErrorIs(t, err, state.ErrStepNotFound)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			require.NoError(t, store.Initialize(ctx))
			require.NoError(t, store.Close())
			require.NoError(t, store.Close()) // idempotent

			err := store.CreateWorkflowRun(ctx, &state.WorkflowRun{ID: "x"})
			assert.ErrorIs(t, err, state.ErrStoreClosed)
			_, err = store.RecentExecutions(ctx, 10)
			assert.ErrorIs(t, err, state.ErrStoreClosed)
		})
	}
}

func TestSQLiteStorePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store1, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Initialize(ctx))

	mgr := state.NewManager(store1)
	run, err := mgr.CreateRun(ctx, "persistent", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	// Reopen the database.
	store2, err := state.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()
	require.NoError(t, store2.Initialize(ctx))

	got, err := store2.GetWorkflowRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "persistent", got.WorkflowID)
	assert.Equal(t, state.StatusPending, got.Status)
	assert.Equal(t, "v", got.TriggerContext["k"])
}
