package locks

import (
	"context"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/redis"
)

const (
	// DefaultExpiry bounds how long a crashed holder can block other processes.
	DefaultExpiry = 30 * time.Second
	retryDelay    = 100 * time.Millisecond
	releaseWait   = 5 * time.Second
)

// RedsyncManager implements Locker with redsync mutexes.
type RedsyncManager struct {
	redsync *redsync.Redsync
	expiry  time.Duration
}

var _ Locker = (*RedsyncManager)(nil)

// NewRedsyncManager creates a lock manager on top of a connected client.
// Acquire keeps retrying for roughly one expiry period before giving up.
func NewRedsyncManager(redisClient *redis.Client, expiry time.Duration) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncManager{
		redsync: redsync.New(pool),
		expiry:  expiry,
	}, nil
}

// Acquire blocks until the named lock is held, ctx ends, or the retry budget
// is spent.
func (rm *RedsyncManager) Acquire(ctx context.Context, name string) (Lock, error) {
	key := lockName(name)
	tries := int(rm.expiry/retryDelay) + 1

	mutex := rm.redsync.NewMutex(key,
		redsync.WithExpiry(rm.expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("lock", key)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &redsyncLock{
		mutex:  mutex,
		key:    key,
		expiry: rm.expiry,
		cancel: cancel,
	}
	go lock.renew(lockCtx)

	return lock, nil
}

type redsyncLock struct {
	mutex  *redsync.Mutex
	key    string
	expiry time.Duration
	cancel context.CancelFunc
	once   sync.Once
}

func (l *redsyncLock) Key() string {
	return l.key
}

// renew extends the lock at a third of its expiry until released.
func (l *redsyncLock) renew(ctx context.Context) {
	interval := l.expiry / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, releaseWait)
			ok, err := l.mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				logging.Warn("Distributed lock lost before release",
					logging.Field{Key: "lock", Value: l.key},
					logging.Field{Key: "error", Value: err},
				)
				return
			}
		}
	}
}

func (l *redsyncLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseWait)
		defer cancel()

		var ok bool
		ok, err = l.mutex.UnlockContext(releaseCtx)
		if err == nil && !ok {
			err = errors.InternalError("distributed lock already expired", nil).WithContext("lock", l.key)
		}
	})
	return err
}
