package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbiter/pkg/adapters/redis"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/aretw0/arbiter/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesSameKey(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "wf", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond) // Simulate IO
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "critical sections for one key must not overlap")
}

func TestManager_DifferentKeysRunInParallel(t *testing.T) {
	manager := session.NewManager()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = manager.WithLock(ctx, "a", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, "b", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b was blocked by key a")
	}
	close(release)
}

func TestManager_PropagatesError(t *testing.T) {
	manager := session.NewManager()
	boom := errors.New("boom")
	err := manager.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("redis down")
}

func TestManager_DistributedLockFailure(t *testing.T) {
	manager := session.NewManager(session.WithLocker(failingLocker{}))
	called := false
	err := manager.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
	assert.True(t, manager.Distributed())
}

func TestManager_RedisLocker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := session.NewManager(
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTTL(5*time.Second),
	)

	err = manager.WithLock(context.Background(), "wf-1", func(context.Context) error {
		assert.True(t, mr.Exists("test:lock:wf-1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:wf-1"))
}
