package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oauth-token-cache/internal/redis"
)

func setupManager(t *testing.T, expiry time.Duration) (*RedsyncManager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	manager, err := NewRedsyncManager(client, expiry)
	require.NoError(t, err)
	return manager, mr
}

func TestNewRedsyncManager_RequiresClient(t *testing.T) {
	manager, err := NewRedsyncManager(nil, time.Second)
	assert.Error(t, err)
	assert.Nil(t, manager)
}

func TestRedsyncManager_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("lock name hides the cache key", func(t *testing.T) {
		manager, mr := setupManager(t, 5*time.Second)

		lock, err := manager.Acquire(ctx, "_CachingTokenClient_password_alice_hunter2__")
		require.NoError(t, err)

		assert.NotContains(t, lock.Key(), "hunter2")
		assert.True(t, mr.Exists(lock.Key()))

		require.NoError(t, lock.Release(ctx))
		assert.False(t, mr.Exists(lock.Key()))
		assert.NoError(t, lock.Release(ctx), "second release is a no-op")
	})

	t.Run("contention times out with ctx", func(t *testing.T) {
		manager, _ := setupManager(t, 5*time.Second)

		held, err := manager.Acquire(ctx, "k")
		require.NoError(t, err)
		defer held.Release(ctx)

		shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()

		lock, err := manager.Acquire(shortCtx, "k")
		assert.Error(t, err)
		assert.Nil(t, lock)
	})

	t.Run("waiter acquires after release", func(t *testing.T) {
		manager, _ := setupManager(t, 5*time.Second)

		held, err := manager.Acquire(ctx, "k")
		require.NoError(t, err)

		acquired := make(chan Lock, 1)
		go func() {
			lock, err := manager.Acquire(ctx, "k")
			if err == nil {
				acquired <- lock
			}
		}()

		time.Sleep(50 * time.Millisecond)
		require.NoError(t, held.Release(ctx))

		select {
		case lock := <-acquired:
			require.NoError(t, lock.Release(ctx))
		case <-time.After(3 * time.Second):
			t.Fatal("waiter never acquired the lock")
		}
	})

	t.Run("mutual exclusion", func(t *testing.T) {
		manager, _ := setupManager(t, 5*time.Second)

		var inside, maxInside int32
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lock, err := manager.Acquire(ctx, "shared")
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				assert.NoError(t, lock.Release(ctx))
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
	})
}
