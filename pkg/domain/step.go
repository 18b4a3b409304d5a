package domain

import (
	"strings"
	"time"
)

// StepStatus is the lifecycle position of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// KeyContinueOnError is the step config flag that keeps the loop going after a failure.
const KeyContinueOnError = "continueOnError"

// CanTransition reports whether moving from s to next respects
// pending -> running -> {completed, failed}.
func (s StepStatus) CanTransition(next StepStatus) bool {
	switch s {
	case StepPending:
		return next == StepRunning
	case StepRunning:
		return next == StepCompleted || next == StepFailed
	default:
		return false
	}
}

// StepDefinition is the caller-supplied description of a step.
type StepDefinition struct {
	Name   string         `json:"name" yaml:"name" mapstructure:"name"`
	Action string         `json:"action" yaml:"action" mapstructure:"action"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// Step is one unit of work inside a workflow.
type Step struct {
	ID     string         `json:"id"`
	Order  int            `json:"order"`
	Name   string         `json:"name"`
	Action string         `json:"action"`
	Config map[string]any `json:"config,omitempty"`

	Status StepStatus `json:"status"`
	Result any        `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ContinueOnError reads the continueOnError flag from the step config.
// Accepts a bool or the strings "true"/"yes"/"1".
func (s *Step) ContinueOnError() bool {
	v, ok := s.Config[KeyContinueOnError]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		clean := strings.ToLower(strings.TrimSpace(b))
		return clean == "true" || clean == "yes" || clean == "1"
	default:
		return false
	}
}
