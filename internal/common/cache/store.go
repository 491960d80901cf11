package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is an expiring key-value store. Entries become unreadable at the
// absolute instant passed to Set.
type Store[V any] interface {
	TryGet(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, expiresAt time.Time) error
	Remove(ctx context.Context, key string) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	nowFunc func() time.Time
	sealer  Sealer
}

func newOptions(opts []Option) options {
	o := options{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithNowFunc overrides the clock used to turn expiry instants into TTLs.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.nowFunc = now
		}
	}
}

// ttlUntil converts an absolute expiry into a TTL. ok is false when the
// instant has already passed.
func ttlUntil(now func() time.Time, expiresAt time.Time) (time.Duration, bool) {
	ttl := expiresAt.Sub(now())
	return ttl, ttl > 0
}

// LocalStore wraps patrickmn/go-cache for in-process caching
type LocalStore[V any] struct {
	cache *gocache.Cache
	opts  options
}

var _ Store[string] = (*LocalStore[string])(nil)

// NewLocalStore creates an in-memory store. Expired entries are purged every
// cleanupInterval and are never returned in between.
func NewLocalStore[V any](cleanupInterval time.Duration, opts ...Option) *LocalStore[V] {
	return &LocalStore[V]{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
		opts:  newOptions(opts),
	}
}

// TryGet returns the value stored under key, if present and unexpired
func (l *LocalStore[V]) TryGet(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, found := l.cache.Get(key)
	if !found {
		return zero, false, nil
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false, nil
	}
	return value, true, nil
}

// Set stores value until expiresAt. A value that is already expired is not
// stored and any previous value under key is dropped.
func (l *LocalStore[V]) Set(ctx context.Context, key string, value V, expiresAt time.Time) error {
	ttl, ok := ttlUntil(l.opts.nowFunc, expiresAt)
	if !ok {
		// go-cache reads 0 as "default expiration"
		l.cache.Delete(key)
		return nil
	}
	l.cache.Set(key, value, ttl)
	return nil
}

// Remove deletes key; removing a missing key is not an error
func (l *LocalStore[V]) Remove(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Len returns the number of items held, including expired ones not yet purged
func (l *LocalStore[V]) Len() int {
	return l.cache.ItemCount()
}

// Flush removes every entry
func (l *LocalStore[V]) Flush() {
	l.cache.Flush()
}
