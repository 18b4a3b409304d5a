package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventWorkflowStatus EventType = "workflow_status"
	EventStepStart      EventType = "step_start"
	EventStepFinish     EventType = "step_finish"
	EventDecision       EventType = "decision"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	AgentID    string    `json:"agent_id"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// WorkflowEvent represents a workflow status transition.
type WorkflowEvent struct {
	EventBase
	From WorkflowStatus `json:"from"`
	To   WorkflowStatus `json:"to"`
}

// StepEvent represents the start or end of a step.
type StepEvent struct {
	EventBase
	StepName string        `json:"step_name"`
	Action   string        `json:"action"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// DecisionEvent represents a rule evaluation outcome.
type DecisionEvent struct {
	EventBase
	Decision   string  `json:"decision"`
	Matched    int     `json:"matched"`
	Confidence float64 `json:"confidence"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnWorkflowStatus func(context.Context, *WorkflowEvent)
	OnStepStart      func(context.Context, *StepEvent)
	OnStepFinish     func(context.Context, *StepEvent)
	OnDecision       func(context.Context, *DecisionEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnWorkflowStatus: chain(h.OnWorkflowStatus, other.OnWorkflowStatus),
		OnStepStart:      chain(h.OnStepStart, other.OnStepStart),
		OnStepFinish:     chain(h.OnStepFinish, other.OnStepFinish),
		OnDecision:       chain(h.OnDecision, other.OnDecision),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e T) {
		a(ctx, e)
		b(ctx, e)
	}
}
