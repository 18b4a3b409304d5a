package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/arbiter/pkg/adapters/memory"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/persistence/middleware"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// flakyStore fails the first `failures` UpdateState calls.
type flakyStore struct {
	*memory.Store
	failures int
	calls    int
}

func (s *flakyStore) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return s.Store.UpdateState(ctx, agentID, sessionID, partial)
}

func TestMiddlewares_Contract(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	store := middleware.Chain(memory.NewStore(),
		middleware.NewLoggingMiddleware(zap.New(core)),
		middleware.NewRetryMiddleware(2, time.Millisecond),
	)
	ports.RunStateStoreContract(t, store)
}

func TestRetryMiddleware_RecoversTransientErrors(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Store: memory.NewStore(), failures: 2}
	_, err := inner.StartSession(ctx, "agent", "s1", nil)
	require.NoError(t, err)

	store := middleware.NewRetryMiddleware(3, time.Millisecond)(inner)
	state, err := store.UpdateState(ctx, "agent", "s1", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", state["k"])
	assert.Equal(t, 3, inner.calls)
}

func TestRetryMiddleware_GivesUp(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Store: memory.NewStore(), failures: 10}
	store := middleware.NewRetryMiddleware(2, time.Millisecond)(inner)

	_, err := store.UpdateState(ctx, "agent", "s1", nil)
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 3, inner.calls, "one attempt plus two retries")
}

func TestRetryMiddleware_NotFoundIsPermanent(t *testing.T) {
	inner := &flakyStore{Store: memory.NewStore()}
	store := middleware.NewRetryMiddleware(5, time.Millisecond)(inner)

	_, err := store.UpdateState(context.Background(), "agent", "missing", nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, 1, inner.calls)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := middleware.NewLoggingMiddleware(zap.New(core))(memory.NewStore())
	ctx := context.Background()

	_, err := store.StartSession(ctx, "agent", "s1", nil)
	require.NoError(t, err)
	_, err = store.LoadSession(ctx, "agent", "missing")
	require.Error(t, err)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "store call", entries[0].Message)
	assert.Equal(t, "StartSession", entries[0].ContextMap()["op"])
	assert.Equal(t, "store call failed", entries[1].Message)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}
