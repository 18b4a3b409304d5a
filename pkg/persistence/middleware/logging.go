package middleware

import (
	"context"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/ports"
	"go.uber.org/zap"
)

type loggingMiddleware struct {
	next   ports.StateStore
	logger *zap.Logger
}

// NewLoggingMiddleware logs every store call at Debug, and failures at Warn.
func NewLoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next ports.StateStore) ports.StateStore {
		return &loggingMiddleware{next: next, logger: logger.Named("store")}
	}
}

func (m *loggingMiddleware) log(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		m.logger.Warn("store call failed", append(fields, zap.Error(err))...)
		return
	}
	m.logger.Debug("store call", fields...)
}

func (m *loggingMiddleware) StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error) {
	start := time.Now()
	sess, err := m.next.StartSession(ctx, agentID, sessionID, initial)
	m.log("StartSession", start, err, zap.String("agent_id", agentID), zap.String("session_id", sessionID))
	return sess, err
}

func (m *loggingMiddleware) LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error) {
	start := time.Now()
	sess, err := m.next.LoadSession(ctx, agentID, sessionID)
	m.log("LoadSession", start, err, zap.String("agent_id", agentID), zap.String("session_id", sessionID))
	return sess, err
}

func (m *loggingMiddleware) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	start := time.Now()
	state, err := m.next.UpdateState(ctx, agentID, sessionID, partial)
	m.log("UpdateState", start, err, zap.String("agent_id", agentID), zap.String("session_id", sessionID), zap.Int("keys", len(partial)))
	return state, err
}

func (m *loggingMiddleware) StoreMemory(ctx context.Context, agentID string, memoryType domain.MemoryType, key string, content map[string]any, opts domain.MemoryOptions) (*domain.Memory, error) {
	start := time.Now()
	mem, err := m.next.StoreMemory(ctx, agentID, memoryType, key, content, opts)
	m.log("StoreMemory", start, err, zap.String("agent_id", agentID), zap.String("memory_type", string(memoryType)), zap.String("key", key))
	return mem, err
}

func (m *loggingMiddleware) RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error) {
	start := time.Now()
	mems, err := m.next.RetrieveMemories(ctx, agentID, memoryType, limit)
	m.log("RetrieveMemories", start, err, zap.String("agent_id", agentID), zap.String("memory_type", string(memoryType)), zap.Int("found", len(mems)))
	return mems, err
}

func (m *loggingMiddleware) SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error) {
	start := time.Now()
	mems, err := m.next.SearchMemories(ctx, agentID, keyPrefix)
	m.log("SearchMemories", start, err, zap.String("agent_id", agentID), zap.String("prefix", keyPrefix), zap.Int("found", len(mems)))
	return mems, err
}

func (m *loggingMiddleware) StartExecution(ctx context.Context, agentID, taskName string, input map[string]any, opts domain.ExecutionOptions) (string, error) {
	start := time.Now()
	id, err := m.next.StartExecution(ctx, agentID, taskName, input, opts)
	m.log("StartExecution", start, err, zap.String("agent_id", agentID), zap.String("task", taskName), zap.String("execution_id", id))
	return id, err
}

func (m *loggingMiddleware) CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error {
	start := time.Now()
	err := m.next.CompleteExecution(ctx, executionID, output, status, errorMessage)
	m.log("CompleteExecution", start, err, zap.String("execution_id", executionID), zap.String("status", string(status)))
	return err
}

func (m *loggingMiddleware) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	start := time.Now()
	exec, err := m.next.GetExecution(ctx, executionID)
	m.log("GetExecution", start, err, zap.String("execution_id", executionID))
	return exec, err
}
