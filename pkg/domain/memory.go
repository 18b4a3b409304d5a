package domain

import "time"

// MemoryType classifies a memory entry for retrieval and eviction.
type MemoryType string

const (
	MemoryShortTerm MemoryType = "short_term"
	MemoryLongTerm  MemoryType = "long_term"
	MemoryEpisodic  MemoryType = "episodic"
	MemorySemantic  MemoryType = "semantic"
)

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryShortTerm, MemoryLongTerm, MemoryEpisodic, MemorySemantic:
		return true
	}
	return false
}

// Memory is a persisted fact, experience or decision scoped to an agent.
type Memory struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	Type       MemoryType     `json:"memory_type"`
	Key        string         `json:"key"`
	Content    map[string]any `json:"content"`
	Importance float64        `json:"importance_score"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
}

// Expired reports whether the entry is past its expiry at the given instant.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// MemoryOptions carries the optional fields of StoreMemory.
type MemoryOptions struct {
	Importance float64
	ExpiresAt  *time.Time
}

// Session is the per-agent state record correlated with a workflow.
type Session struct {
	AgentID   string         `json:"agent_id"`
	SessionID string         `json:"session_id"`
	State     map[string]any `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ExecutionStatus is the outcome recorded on an execution log entry.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Execution is one entry of the agent execution log.
type Execution struct {
	ID          string          `json:"id"`
	AgentID     string          `json:"agent_id"`
	TaskName    string          `json:"task_name"`
	TaskType    string          `json:"task_type,omitempty"`
	Input       map[string]any  `json:"input,omitempty"`
	Output      map[string]any  `json:"output,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ExecutionOptions carries the optional fields of StartExecution.
type ExecutionOptions struct {
	TaskType string
	Metadata map[string]any
}
