package tokencache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oauth-token-cache/internal/common/cache"
	apperrors "oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/locks"
	"oauth-token-cache/internal/models"
	"oauth-token-cache/internal/testutil"
)

const testKey = "_CachingTokenClient_client_credentials___cid_secret"

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(epoch)
	store := cache.NewLocalStore[Entry](time.Minute, cache.WithNowFunc(clock.Now))
	opts = append([]Option{WithNowFunc(clock.Now)}, opts...)
	return New(store, opts...), clock
}

// countingFetch returns a fetch that issues token-1, token-2, ... and counts calls.
func countingFetch(expiresIn *int) (FetchFunc, *int32) {
	var calls int32
	return func(ctx context.Context) (models.TokenResult, error) {
		n := atomic.AddInt32(&calls, 1)
		return models.TokenResult{
			AccessToken: "token-" + string(rune('0'+n)),
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		}, nil
	}, &calls
}

type countingRecorder struct {
	hits, misses, fetches, failures, invalidations int32
}

func (r *countingRecorder) CacheHit()  { atomic.AddInt32(&r.hits, 1) }
func (r *countingRecorder) CacheMiss() { atomic.AddInt32(&r.misses, 1) }
func (r *countingRecorder) FetchCompleted(_ time.Duration, err error) {
	atomic.AddInt32(&r.fetches, 1)
	if err != nil {
		atomic.AddInt32(&r.failures, 1)
	}
}
func (r *countingRecorder) Invalidated() { atomic.AddInt32(&r.invalidations, 1) }

// faultyStore fails reads and/or writes on demand.
type faultyStore struct {
	cache.Store[Entry]
	failReads  bool
	failWrites bool
}

func (f *faultyStore) TryGet(ctx context.Context, key string) (Entry, bool, error) {
	if f.failReads {
		return Entry{}, false, apperrors.ConnectionError("read refused", nil)
	}
	return f.Store.TryGet(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key string, value Entry, expiresAt time.Time) error {
	if f.failWrites {
		return apperrors.ConnectionError("write refused", nil)
	}
	return f.Store.Set(ctx, key, value, expiresAt)
}

type fakeLock struct {
	released *int32
}

func (l fakeLock) Key() string { return "lock" }
func (l fakeLock) Release(context.Context) error {
	atomic.AddInt32(l.released, 1)
	return nil
}

type fakeLocker struct {
	acquired int32
	released int32
	err      error
}

func (f *fakeLocker) Acquire(ctx context.Context, name string) (locks.Lock, error) {
	if f.err != nil {
		return nil, f.err
	}
	atomic.AddInt32(&f.acquired, 1)
	return fakeLock{released: &f.released}, nil
}

func TestCache_ConcurrentCallersShareOneFetch(t *testing.T) {
	c, _ := newTestCache(t)

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (models.TokenResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return models.TokenResult{AccessToken: "shared", ExpiresIn: models.IntPtr(3600)}, nil
	}

	const callers = 20
	results := make([]models.TokenResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCreate(context.Background(), testKey, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].AccessToken)
	}
}

func TestCache_HitSkipsFetch(t *testing.T) {
	recorder := &countingRecorder{}
	c, _ := newTestCache(t, WithRecorder(recorder))
	fetch, calls := countingFetch(models.IntPtr(3600))
	ctx := context.Background()

	first, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	second, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), *calls)
	assert.Equal(t, int32(1), recorder.hits)
	assert.Equal(t, int32(1), recorder.misses)
	assert.Equal(t, int32(1), recorder.fetches)
}

func TestCache_ReturnedTokenIsACopy(t *testing.T) {
	c, _ := newTestCache(t)
	fetch, _ := countingFetch(models.IntPtr(3600))
	ctx := context.Background()

	first, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	*first.ExpiresIn = 1

	second, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, 3600, *second.ExpiresIn)
}

func TestCache_ExpiredEntryTriggersOneFetch(t *testing.T) {
	c, clock := newTestCache(t)
	fetch, calls := countingFetch(models.IntPtr(60))
	ctx := context.Background()

	first, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	cached, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, first.AccessToken, cached.AccessToken)

	clock.Advance(time.Second)
	renewed, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, renewed.AccessToken)
	assert.Equal(t, int32(2), *calls)

	_, err = c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), *calls)
}

func TestCache_ExpiryComputation(t *testing.T) {
	ctx := context.Background()

	t.Run("expires_in reported", func(t *testing.T) {
		c, _ := newTestCache(t)
		fetch, _ := countingFetch(models.IntPtr(3600))
		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)

		entry, ok := c.Peek(ctx, testKey)
		require.True(t, ok)
		assert.Equal(t, epoch.Add(3600*time.Second), entry.ExpiresAt)
	})

	t.Run("default expiry", func(t *testing.T) {
		c, _ := newTestCache(t)
		fetch, _ := countingFetch(nil)
		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)

		entry, ok := c.Peek(ctx, testKey)
		require.True(t, ok)
		assert.Equal(t, epoch.Add(DefaultExpiry), entry.ExpiresAt)
	})

	t.Run("configured default expiry", func(t *testing.T) {
		c, _ := newTestCache(t, WithDefaultExpiry(10*time.Minute))
		fetch, _ := countingFetch(nil)
		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)

		entry, ok := c.Peek(ctx, testKey)
		require.True(t, ok)
		assert.Equal(t, epoch.Add(10*time.Minute), entry.ExpiresAt)
	})

	t.Run("zero expires_in is not served from cache", func(t *testing.T) {
		c, _ := newTestCache(t)
		fetch, calls := countingFetch(models.IntPtr(0))
		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		_, err = c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(2), *calls)
	})
}

func TestCache_FailureIsNotCached(t *testing.T) {
	recorder := &countingRecorder{}
	c, _ := newTestCache(t, WithRecorder(recorder))
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (models.TokenResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return models.TokenResult{}, apperrors.OAuthError("invalid_client", "unknown client")
		}
		return models.TokenResult{AccessToken: "ok"}, nil
	}

	_, err := c.GetOrCreate(ctx, testKey, fetch)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))

	_, ok := c.Peek(ctx, testKey)
	assert.False(t, ok)

	token, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", token.AccessToken)
	assert.Equal(t, int32(2), calls)
	assert.Equal(t, int32(1), recorder.failures)
}

func TestCache_FailureReachesEveryWaiter(t *testing.T) {
	c, _ := newTestCache(t)
	boom := apperrors.TransportError("connection reset", nil)

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (models.TokenResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return models.TokenResult{}, boom
	}

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrCreate(context.Background(), testKey, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
}

func TestCache_Invalidate(t *testing.T) {
	recorder := &countingRecorder{}
	c, _ := newTestCache(t, WithRecorder(recorder))
	fetch, calls := countingFetch(models.IntPtr(3600))
	ctx := context.Background()

	_, err := c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, testKey))
	require.NoError(t, c.Invalidate(ctx, testKey))
	require.NoError(t, c.Invalidate(ctx, "never-cached"))

	_, err = c.GetOrCreate(ctx, testKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), *calls)
	assert.Equal(t, int32(3), recorder.invalidations)
}

func TestCache_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	c, _ := newTestCache(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var fetchCtxErr error
	fetch := func(ctx context.Context) (models.TokenResult, error) {
		close(started)
		<-release
		fetchCtxErr = ctx.Err()
		return models.TokenResult{AccessToken: "late"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(ctx, testKey, fetch)
		firstErr <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan models.TokenResult, 1)
	go func() {
		token, _ := c.GetOrCreate(context.Background(), testKey, fetch)
		second <- token
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "late", (<-second).AccessToken)
	assert.NoError(t, fetchCtxErr)
}

func TestCache_StoreErrors(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(epoch)

	t.Run("read error is a miss", func(t *testing.T) {
		store := &faultyStore{Store: cache.NewLocalStore[Entry](time.Minute, cache.WithNowFunc(clock.Now)), failReads: true}
		c := New(store, WithNowFunc(clock.Now))
		fetch, calls := countingFetch(models.IntPtr(3600))

		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		_, err = c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(2), *calls)
	})

	t.Run("write error still returns the token", func(t *testing.T) {
		store := &faultyStore{Store: cache.NewLocalStore[Entry](time.Minute, cache.WithNowFunc(clock.Now)), failWrites: true}
		c := New(store, WithNowFunc(clock.Now))
		fetch, _ := countingFetch(models.IntPtr(3600))

		token, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		assert.Equal(t, "token-1", token.AccessToken)
	})
}

func TestCache_DistributedLock(t *testing.T) {
	ctx := context.Background()

	t.Run("held around the fetch", func(t *testing.T) {
		locker := &fakeLocker{}
		c, _ := newTestCache(t, WithLocker(locker))
		fetch, calls := countingFetch(models.IntPtr(3600))

		_, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		_, err = c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)

		assert.Equal(t, int32(1), *calls)
		assert.Equal(t, int32(1), locker.acquired)
		assert.Equal(t, int32(1), locker.released)
	})

	t.Run("unavailable lock does not block the fetch", func(t *testing.T) {
		locker := &fakeLocker{err: errors.New("redis down")}
		c, _ := newTestCache(t, WithLocker(locker))
		fetch, calls := countingFetch(models.IntPtr(3600))

		token, err := c.GetOrCreate(ctx, testKey, fetch)
		require.NoError(t, err)
		assert.Equal(t, "token-1", token.AccessToken)
		assert.Equal(t, int32(1), *calls)
	})
}
