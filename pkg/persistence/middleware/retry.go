package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/cenkalti/backoff/v4"
)

type retryMiddleware struct {
	next       ports.StateStore
	maxRetries uint64
	initial    time.Duration
}

// NewRetryMiddleware retries failed store calls with exponential backoff.
// Not-found errors are returned at once; they will not heal by retrying.
func NewRetryMiddleware(maxRetries int, initialInterval time.Duration) Middleware {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialInterval <= 0 {
		initialInterval = 50 * time.Millisecond
	}
	return func(next ports.StateStore) ports.StateStore {
		return &retryMiddleware{next: next, maxRetries: uint64(maxRetries), initial: initialInterval}
	}
}

func (m *retryMiddleware) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.initial
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, m.maxRetries), ctx)
}

func retryValue[T any](ctx context.Context, m *retryMiddleware, op func() (T, error)) (T, error) {
	var out T
	err := backoff.Retry(func() error {
		v, err := op()
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrExecutionNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}, m.policy(ctx))
	return out, err
}

func (m *retryMiddleware) StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error) {
	return retryValue(ctx, m, func() (*domain.Session, error) {
		return m.next.StartSession(ctx, agentID, sessionID, initial)
	})
}

func (m *retryMiddleware) LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error) {
	return retryValue(ctx, m, func() (*domain.Session, error) {
		return m.next.LoadSession(ctx, agentID, sessionID)
	})
}

func (m *retryMiddleware) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	return retryValue(ctx, m, func() (map[string]any, error) {
		return m.next.UpdateState(ctx, agentID, sessionID, partial)
	})
}

// StoreMemory is retried too; a retry after an ambiguous failure may store a duplicate entry.
func (m *retryMiddleware) StoreMemory(ctx context.Context, agentID string, memoryType domain.MemoryType, key string, content map[string]any, opts domain.MemoryOptions) (*domain.Memory, error) {
	return retryValue(ctx, m, func() (*domain.Memory, error) {
		return m.next.StoreMemory(ctx, agentID, memoryType, key, content, opts)
	})
}

func (m *retryMiddleware) RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error) {
	return retryValue(ctx, m, func() ([]domain.Memory, error) {
		return m.next.RetrieveMemories(ctx, agentID, memoryType, limit)
	})
}

func (m *retryMiddleware) SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error) {
	return retryValue(ctx, m, func() ([]domain.Memory, error) {
		return m.next.SearchMemories(ctx, agentID, keyPrefix)
	})
}

func (m *retryMiddleware) StartExecution(ctx context.Context, agentID, taskName string, input map[string]any, opts domain.ExecutionOptions) (string, error) {
	return retryValue(ctx, m, func() (string, error) {
		return m.next.StartExecution(ctx, agentID, taskName, input, opts)
	})
}

func (m *retryMiddleware) CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error {
	_, err := retryValue(ctx, m, func() (struct{}, error) {
		return struct{}{}, m.next.CompleteExecution(ctx, executionID, output, status, errorMessage)
	})
	return err
}

func (m *retryMiddleware) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	return retryValue(ctx, m, func() (*domain.Execution, error) {
		return m.next.GetExecution(ctx, executionID)
	})
}
