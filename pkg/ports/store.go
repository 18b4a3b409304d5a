package ports

import (
	"context"

	"github.com/aretw0/arbiter/pkg/domain"
)

// StateStore defines the persistence boundary for sessions, memories and the
// execution log. Every record is partitioned by agent id.
type StateStore interface {
	// StartSession registers a session, overwriting any prior one with the same ids.
	StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error)

	// LoadSession retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error)

	// UpdateState shallow-merges partial into the session state and returns the merged state.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error)

	// StoreMemory persists a memory entry.
	StoreMemory(ctx context.Context, agentID string, memoryType domain.MemoryType, key string, content map[string]any, opts domain.MemoryOptions) (*domain.Memory, error)

	// RetrieveMemories returns non-expired entries newest first.
	// An empty memoryType matches every type; a limit <= 0 means unbounded.
	RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error)

	// SearchMemories returns non-expired entries whose key starts with keyPrefix, newest first.
	SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error)

	// StartExecution opens an execution log entry in the running status and returns its id.
	StartExecution(ctx context.Context, agentID, taskName string, input map[string]any, opts domain.ExecutionOptions) (string, error)

	// CompleteExecution closes an execution log entry.
	// Returns domain.ErrExecutionNotFound if the id is unknown.
	CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error

	// GetExecution retrieves an execution log entry.
	// Returns domain.ErrExecutionNotFound if the id is unknown.
	GetExecution(ctx context.Context, executionID string) (*domain.Execution, error)
}
