package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbiter/pkg/adapters/redis"
	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, opts ...redis.Option) (*miniredis.Miniredis, *redis.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.NewFromClient(client, opts...)
}

func TestRedisStore_Contract(t *testing.T) {
	_, store := setupStore(t)
	ports.RunStateStoreContract(t, store)
}

func TestRedisStore_SessionTTL(t *testing.T) {
	mr, store := setupStore(t, redis.WithTTL(time.Second))
	ctx := context.Background()

	_, err := store.StartSession(ctx, "agent", "s1", map[string]any{"foo": "bar"})
	require.NoError(t, err)

	// Updates keep the remaining TTL instead of resetting it.
	_, err = store.UpdateState(ctx, "agent", "s1", map[string]any{"step": 1})
	require.NoError(t, err)
	assert.True(t, mr.TTL("arbiter:session:agent:s1") > 0)

	mr.FastForward(2 * time.Second)

	_, err = store.LoadSession(ctx, "agent", "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_MemoryExpiryPrunesIndex(t *testing.T) {
	mr, store := setupStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	expires := time.Now().Add(time.Minute)
	brief, err := store.StoreMemory(ctx, "agent", domain.MemoryShortTerm, "brief", nil, domain.MemoryOptions{ExpiresAt: &expires})
	require.NoError(t, err)
	_, err = store.StoreMemory(ctx, "agent", domain.MemoryShortTerm, "lasting", map[string]any{"n": 1}, domain.MemoryOptions{})
	require.NoError(t, err)

	members, err := mr.ZMembers("test:memories:agent")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	mr.FastForward(2 * time.Minute)

	got, err := store.RetrieveMemories(ctx, "agent", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lasting", got[0].Key)
	assert.Equal(t, float64(1), got[0].Content["n"])

	members, err = mr.ZMembers("test:memories:agent")
	require.NoError(t, err)
	assert.NotContains(t, members, brief.ID)
}

func TestRedisStore_UpdateStateConcurrent(t *testing.T) {
	_, store := setupStore(t)
	ctx := context.Background()

	_, err := store.StartSession(ctx, "agent", "s1", nil)
	require.NoError(t, err)

	done := make(chan error, 2)
	for _, key := range []string{"a", "b"} {
		go func(key string) {
			_, err := store.UpdateState(ctx, "agent", "s1", map[string]any{key: true})
			done <- err
		}(key)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	sess, err := store.LoadSession(ctx, "agent", "s1")
	require.NoError(t, err)
	assert.Equal(t, true, sess.State["a"])
	assert.Equal(t, true, sess.State["b"])
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	mr, store := setupStore(t)
	mr.Close()

	_, err := store.StartSession(context.Background(), "agent", "s1", nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}
