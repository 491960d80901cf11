// Package locks provides the cross-process lock that lets several token
// cache instances sharing one Redis store coalesce fetches for the same key.
//
// The implementation uses the Redlock algorithm from go-redsync/redsync/v4.
// A held lock is extended in the background at a third of its expiry so a
// slow token endpoint does not let the lock lapse mid-fetch.
package locks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Lock is a held distributed lock.
type Lock interface {
	// Key returns the lock name as stored in Redis.
	Key() string
	// Release stops renewal and deletes the lock. Releasing twice is a no-op.
	Release(ctx context.Context) error
}

// Locker acquires named locks, blocking until the lock is held or ctx ends.
type Locker interface {
	Acquire(ctx context.Context, name string) (Lock, error)
}

// lockName turns a cache key, which embeds credentials, into an opaque name.
func lockName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return "lock:oauth2:" + hex.EncodeToString(sum[:])
}
