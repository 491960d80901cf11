// Package tokencache memoizes OAuth2 token results under a grant-derived key
// and coalesces concurrent fetches for the same key.
//
// Lookups go through three stages:
//
//  1. A lock-free read of the backing store.
//  2. Callers that missed join one singleflight flight per key, so every
//     waiter observes the same token or the same error.
//  3. The flight takes the cache-wide mutex, reads the store again, and only
//     then invokes the fetch. When a Locker is configured the flight also
//     holds a distributed lock so processes sharing a Redis store coalesce
//     too.
//
// The mutex is shared by all keys, so fetches for different keys run one at
// a time.
package tokencache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"oauth-token-cache/internal/common/cache"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/locks"
	"oauth-token-cache/internal/models"
)

// DefaultExpiry applies when the endpoint does not report expires_in.
const DefaultExpiry = 24 * time.Hour

// Entry is a cached token together with the instant it stops being served.
type Entry struct {
	Token     models.TokenResult `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// FetchFunc obtains a fresh token. It is called at most once per flight.
type FetchFunc func(ctx context.Context) (models.TokenResult, error)

// Recorder observes cache activity. *metrics.TokenCacheMetrics satisfies it.
type Recorder interface {
	CacheHit()
	CacheMiss()
	FetchCompleted(d time.Duration, err error)
	Invalidated()
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()                           {}
func (nopRecorder) CacheMiss()                          {}
func (nopRecorder) FetchCompleted(time.Duration, error) {}
func (nopRecorder) Invalidated()                        {}

// Option configures a Cache.
type Option func(*Cache)

// WithNowFunc overrides the clock used for expiry computation and checks.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultExpiry sets the lifetime given to tokens without expires_in.
// Non-positive values are ignored.
func WithDefaultExpiry(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.defaultExpiry = d
		}
	}
}

// WithLocker enables cross-process coalescing.
func WithLocker(l locks.Locker) Option {
	return func(c *Cache) {
		c.locker = l
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger replaces the global logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache is the coalescing token cache. It is safe for concurrent use.
type Cache struct {
	store         cache.Store[Entry]
	mu            sync.Mutex
	flights       singleflight.Group
	locker        locks.Locker
	recorder      Recorder
	logger        logging.Logger
	now           func() time.Time
	defaultExpiry time.Duration
}

// New creates a cache over store.
func New(store cache.Store[Entry], opts ...Option) *Cache {
	c := &Cache{
		store:         store,
		recorder:      nopRecorder{},
		logger:        logging.GetGlobalLogger(),
		now:           time.Now,
		defaultExpiry: DefaultExpiry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate returns the cached token for key, calling fetch when there is
// none. Failures are returned to every waiter and never cached.
//
// A caller whose ctx ends stops waiting and gets ctx.Err(); the fetch itself
// keeps running for the remaining waiters.
func (c *Cache) GetOrCreate(ctx context.Context, key string, fetch FetchFunc) (models.TokenResult, error) {
	if token, ok := c.lookup(ctx, key); ok {
		c.recorder.CacheHit()
		return token, nil
	}
	c.recorder.CacheMiss()

	flightCtx := context.WithoutCancel(ctx)
	results := c.flights.DoChan(key, func() (interface{}, error) {
		return c.fill(flightCtx, key, fetch)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return models.TokenResult{}, res.Err
		}
		return res.Val.(models.TokenResult).Clone(), nil
	case <-ctx.Done():
		return models.TokenResult{}, ctx.Err()
	}
}

// fill runs once per flight.
func (c *Cache) fill(ctx context.Context, key string, fetch FetchFunc) (models.TokenResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token, ok := c.lookup(ctx, key); ok {
		return token, nil
	}

	if c.locker != nil {
		lock, err := c.locker.Acquire(ctx, key)
		if err != nil {
			c.logger.Warn("Distributed lock unavailable, fetching without it",
				logging.Field{Key: "key", Value: Fingerprint(key)},
				logging.Err(err),
			)
		} else {
			defer func() {
				if err := lock.Release(ctx); err != nil {
					c.logger.Warn("Failed to release distributed lock",
						logging.Field{Key: "key", Value: Fingerprint(key)},
						logging.Err(err),
					)
				}
			}()

			if token, ok := c.lookup(ctx, key); ok {
				return token, nil
			}
		}
	}

	started := time.Now()
	token, err := fetch(ctx)
	c.recorder.FetchCompleted(time.Since(started), err)
	if err != nil {
		c.logger.Debug("Token fetch failed",
			logging.Field{Key: "key", Value: Fingerprint(key)},
			logging.Err(err),
		)
		return models.TokenResult{}, err
	}

	entry := Entry{Token: token.Clone(), ExpiresAt: c.expiresAt(token)}
	if err := c.store.Set(ctx, key, entry, entry.ExpiresAt); err != nil {
		c.logger.Warn("Failed to cache token",
			logging.Field{Key: "key", Value: Fingerprint(key)},
			logging.Err(err),
		)
	}

	c.logger.Debug("Token cached",
		logging.Field{Key: "key", Value: Fingerprint(key)},
		logging.Field{Key: "expires_at", Value: entry.ExpiresAt},
	)

	return token, nil
}

// lookup reads a live entry. Store errors count as a miss.
func (c *Cache) lookup(ctx context.Context, key string) (models.TokenResult, bool) {
	entry, found, err := c.store.TryGet(ctx, key)
	if err != nil {
		c.logger.Warn("Token cache read failed, treating as miss",
			logging.Field{Key: "key", Value: Fingerprint(key)},
			logging.Err(err),
		)
		return models.TokenResult{}, false
	}
	if !found || !c.now().Before(entry.ExpiresAt) {
		return models.TokenResult{}, false
	}
	return entry.Token.Clone(), true
}

// expiresAt is now plus expires_in when reported, else the default expiry.
func (c *Cache) expiresAt(token models.TokenResult) time.Time {
	now := c.now()
	if token.ExpiresIn != nil {
		return now.Add(time.Duration(*token.ExpiresIn) * time.Second)
	}
	return now.Add(c.defaultExpiry)
}

// Invalidate drops the entry for key. Dropping a missing key is not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Remove(ctx, key); err != nil {
		return err
	}
	c.recorder.Invalidated()
	return nil
}

// Peek returns the live entry for key without fetching.
func (c *Cache) Peek(ctx context.Context, key string) (Entry, bool) {
	entry, found, err := c.store.TryGet(ctx, key)
	if err != nil || !found || !c.now().Before(entry.ExpiresAt) {
		return Entry{}, false
	}
	return entry, true
}
