package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowStatus(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())

	assert.True(t, StatusReady.CanExecute())
	assert.True(t, StatusPaused.CanExecute())
	assert.False(t, StatusRunning.CanExecute())
	assert.False(t, StatusInitialized.CanExecute())
}

func TestStepStatus_CanTransition(t *testing.T) {
	assert.True(t, StepPending.CanTransition(StepRunning))
	assert.True(t, StepRunning.CanTransition(StepCompleted))
	assert.True(t, StepRunning.CanTransition(StepFailed))
	assert.False(t, StepPending.CanTransition(StepCompleted))
	assert.False(t, StepCompleted.CanTransition(StepRunning))
	assert.False(t, StepFailed.CanTransition(StepPending))
}

func TestStep_ContinueOnError(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
		want bool
	}{
		{"missing", nil, false},
		{"bool true", map[string]any{KeyContinueOnError: true}, true},
		{"bool false", map[string]any{KeyContinueOnError: false}, false},
		{"string yes", map[string]any{KeyContinueOnError: " Yes "}, true},
		{"string no", map[string]any{KeyContinueOnError: "no"}, false},
		{"number", map[string]any{KeyContinueOnError: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Step{Config: tt.cfg}
			assert.Equal(t, tt.want, s.ContinueOnError())
		})
	}
}

func TestWorkflow_CloneIsolation(t *testing.T) {
	wf := NewWorkflow("wf", "agent", "sess", "demo", map[string]any{"seed": 1}, time.Now())
	wf.Steps = append(wf.Steps, Step{Name: "a", Status: StepPending, Config: map[string]any{"k": "v"}})

	clone := wf.Clone()
	clone.Context["seed"] = 2
	clone.Steps[0].Status = StepCompleted
	clone.Steps[0].Config["k"] = "changed"

	assert.Equal(t, 1, wf.Context["seed"])
	assert.Equal(t, StepPending, wf.Steps[0].Status)
	assert.Equal(t, "v", wf.Steps[0].Config["k"])
}

func TestWorkflow_ProgressAndSnapshot(t *testing.T) {
	wf := NewWorkflow("wf", "agent", "sess", "demo", nil, time.Now())
	assert.Equal(t, 0.0, wf.Progress())

	wf.Steps = []Step{
		{Name: "a", Action: "x", Status: StepCompleted, Result: 1},
		{Name: "b", Action: "y", Status: StepFailed, Error: "boom"},
		{Name: "c", Action: "z", Status: StepPending},
		{Name: "d", Action: "z", Status: StepPending},
	}
	wf.CurrentStep = 1

	assert.Equal(t, 0.25, wf.Progress())
	assert.Equal(t, 2, wf.StepsExecuted())

	snap := wf.Snapshot()
	assert.Equal(t, "wf", snap.WorkflowID)
	assert.Equal(t, 4, snap.TotalSteps)
	assert.Equal(t, 1, snap.CurrentStep)
	assert.Equal(t, "boom", snap.Steps[1].Error)
	assert.Equal(t, 1, snap.Steps[0].Result)
}

func TestMemory_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	assert.False(t, (&Memory{}).Expired(now))
	assert.True(t, (&Memory{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&Memory{ExpiresAt: &now}).Expired(now))
	assert.False(t, (&Memory{ExpiresAt: &future}).Expired(now))
}
