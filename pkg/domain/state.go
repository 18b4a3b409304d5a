package domain

import "time"

// WorkflowStatus is the lifecycle position of a workflow.
type WorkflowStatus string

const (
	StatusInitialized WorkflowStatus = "initialized" // Created, no steps yet
	StatusReady       WorkflowStatus = "ready"       // Steps defined, never executed
	StatusRunning     WorkflowStatus = "running"     // Execution loop active
	StatusPaused      WorkflowStatus = "paused"      // Halted at a step boundary
	StatusCompleted   WorkflowStatus = "completed"   // Sink: all steps done
	StatusFailed      WorkflowStatus = "failed"      // Sink: aborted by a step failure
	StatusCancelled   WorkflowStatus = "cancelled"   // Sink: removed by the caller
)

// IsTerminal reports whether no further step execution is permitted.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanExecute reports whether the execution loop may (re)start from this status.
func (s WorkflowStatus) CanExecute() bool {
	return s == StatusReady || s == StatusPaused
}

// WorkflowConfig carries optional creation parameters.
type WorkflowConfig struct {
	// InitialContext seeds the workflow context before the first step runs.
	InitialContext map[string]any `json:"initialContext,omitempty" yaml:"initialContext,omitempty" mapstructure:"initialContext"`

	// SessionID overrides the generated session id.
	SessionID string `json:"sessionId,omitempty" yaml:"sessionId,omitempty" mapstructure:"sessionId"`

	// Metadata is stored with the session and never read by the engine.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" mapstructure:"metadata"`
}

// Workflow represents the mutable record of one multi-step agent task.
// It is owned by the engine; callers only ever see clones.
type Workflow struct {
	ID        string         `json:"workflow_id"`
	AgentID   string         `json:"agent_id"`
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Status    WorkflowStatus `json:"status"`

	Steps       []Step `json:"steps"`
	CurrentStep int    `json:"current_step"`

	// Context accumulates step results keyed by step name.
	Context map[string]any `json:"context"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the terminal failure message, if any.
	Error string `json:"error,omitempty"`

	// ExecutionID references the execution record of the latest run.
	ExecutionID string `json:"execution_id,omitempty"`
}

// NewWorkflow creates a clean workflow in the initialized status.
func NewWorkflow(id, agentID, sessionID, workflowType string, initial map[string]any, now time.Time) *Workflow {
	ctx := make(map[string]any, len(initial))
	for k, v := range initial {
		ctx[k] = v
	}
	return &Workflow{
		ID:        id,
		AgentID:   agentID,
		SessionID: sessionID,
		Type:      workflowType,
		Status:    StatusInitialized,
		Steps:     []Step{},
		Context:   ctx,
		CreatedAt: now,
	}
}

// TotalSteps returns the number of defined steps.
func (w *Workflow) TotalSteps() int {
	return len(w.Steps)
}

// Progress returns the completed fraction in [0, 1].
func (w *Workflow) Progress() float64 {
	if len(w.Steps) == 0 {
		return 0
	}
	return float64(w.CurrentStep) / float64(len(w.Steps))
}

// StepsExecuted counts steps that have left the pending status.
func (w *Workflow) StepsExecuted() int {
	n := 0
	for _, s := range w.Steps {
		if s.Status != StepPending {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no mutable maps or slices with w.
// Step results and context values are copied shallowly.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	next := *w
	next.Context = CloneMap(w.Context)
	next.Steps = make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		s.Config = CloneMap(s.Config)
		next.Steps[i] = s
	}
	return &next
}

// Snapshot builds the read-only status view exposed to callers.
func (w *Workflow) Snapshot() Snapshot {
	steps := make([]StepSnapshot, len(w.Steps))
	for i, s := range w.Steps {
		steps[i] = StepSnapshot{
			Name:   s.Name,
			Action: s.Action,
			Status: s.Status,
			Result: s.Result,
			Error:  s.Error,
		}
	}
	return Snapshot{
		WorkflowID:  w.ID,
		Status:      w.Status,
		CurrentStep: w.CurrentStep,
		TotalSteps:  len(w.Steps),
		Progress:    w.Progress(),
		Steps:       steps,
	}
}

// Summary builds the compact listing entry for the workflow.
func (w *Workflow) Summary() Summary {
	return Summary{
		WorkflowID:  w.ID,
		AgentID:     w.AgentID,
		SessionID:   w.SessionID,
		Type:        w.Type,
		Status:      w.Status,
		CurrentStep: w.CurrentStep,
		TotalSteps:  len(w.Steps),
		CreatedAt:   w.CreatedAt,
	}
}

// Snapshot is the status view of a workflow.
type Snapshot struct {
	WorkflowID  string         `json:"workflow_id"`
	Status      WorkflowStatus `json:"status"`
	CurrentStep int            `json:"current_step"`
	TotalSteps  int            `json:"total_steps"`
	Progress    float64        `json:"progress"`
	Steps       []StepSnapshot `json:"steps"`
}

// StepSnapshot is the per-step part of a Snapshot.
type StepSnapshot struct {
	Name   string     `json:"name"`
	Action string     `json:"action"`
	Status StepStatus `json:"status"`
	Result any        `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Summary is the listing entry for an active workflow.
type Summary struct {
	WorkflowID  string         `json:"workflow_id"`
	AgentID     string         `json:"agent_id"`
	SessionID   string         `json:"session_id"`
	Type        string         `json:"type"`
	Status      WorkflowStatus `json:"status"`
	CurrentStep int            `json:"current_step"`
	TotalSteps  int            `json:"total_steps"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ExecutionResult is returned by every execution attempt, successful or not.
type ExecutionResult struct {
	Success       bool           `json:"success"`
	WorkflowID    string         `json:"workflow_id"`
	Status        WorkflowStatus `json:"status"`
	Context       map[string]any `json:"context,omitempty"`
	Error         string         `json:"error,omitempty"`
	StepsExecuted int            `json:"steps_executed"`
}

// CloneMap copies the top level of m. A nil map yields an empty one.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
