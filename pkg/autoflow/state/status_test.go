package state_test

import (
	"testing"

	"github.com/randalmurphal/autoflow/pkg/autoflow/state"
	"github.com/stretchr/testify/assert"
)

// TestStatusTransitions verifies the monotonic status lifecycle.
func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from state.Status
		to   state.Status
		ok   bool
	}{
		{state.StatusPending, state.StatusRunning, true},
		{state.StatusPending, state.StatusCancelled, true},
		{state.StatusPending, state.StatusCompleted, false},
		{state.StatusPending, state.StatusFailed, false},
		{state.StatusRunning, state.StatusCompleted, true},
		{state.StatusRunning, state.StatusFailed, true},
		{state.StatusRunning, state.StatusCancelled, true},
		{state.StatusRunning, state.StatusPending, false},
		{state.StatusCompleted, state.StatusRunning, false},
		{state.StatusCompleted, state.StatusFailed, false},
		{state.StatusFailed, state.StatusRunning, false},
		{state.StatusCancelled, state.StatusRunning, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, state.StatusPending.Terminal())
	assert.False(t, state.StatusRunning.Terminal())
	assert.True(t, state.StatusCompleted.Terminal())
	assert.True(t, state.StatusFailed.Terminal())
	assert.True(t, state.StatusCancelled.Terminal())
}
