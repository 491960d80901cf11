package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"oauth-token-cache/internal/common/logging"
)

// DefaultL1TTL caps how long the local tier may serve a value without
// consulting Redis.
const DefaultL1TTL = 5 * time.Minute

const subscribeTimeout = 5 * time.Second

// TwoTierStore combines a local L1 with a Redis L2. Redis is the source of
// truth; L1 holds copies for at most l1TTL and never past the entry's expiry.
//
// Removals are published on a Redis channel so every store sharing the key
// prefix drops its L1 copy. L1 is keyed by the hashed Redis key, so only
// hashes travel over the channel.
type TwoTierStore[V any] struct {
	l1      *LocalStore[V]
	l2      *RedisStore[V]
	l1TTL   time.Duration
	opts    options
	channel string
	pubsub  *redis.PubSub
}

var _ Store[string] = (*TwoTierStore[string])(nil)

// NewTwoTierStore creates a store with a local L1 and Redis L2 and starts
// listening for removals made by other processes.
func NewTwoTierStore[V any](l1TTL, cleanupInterval time.Duration, client *redis.Client, keyPrefix string, opts ...Option) *TwoTierStore[V] {
	if l1TTL <= 0 {
		l1TTL = DefaultL1TTL
	}
	t := &TwoTierStore[V]{
		l1:      NewLocalStore[V](cleanupInterval, opts...),
		l2:      NewRedisStore[V](client, keyPrefix, opts...),
		l1TTL:   l1TTL,
		opts:    newOptions(opts),
		channel: InvalidationChannel(keyPrefix),
	}
	t.subscribe()
	return t
}

// InvalidationChannel names the channel removals are published on
func InvalidationChannel(keyPrefix string) string {
	return keyPrefix + "invalidations"
}

func (t *TwoTierStore[V]) subscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	pubsub := t.l2.client.Subscribe(ctx, t.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Warn("Two-tier store not subscribed to invalidations; remote removals reach L1 after its TTL",
			logging.Field{Key: "channel", Value: t.channel},
			logging.Err(err),
		)
		_ = pubsub.Close()
		return
	}
	t.pubsub = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			_ = t.l1.Remove(context.Background(), msg.Payload)
		}
	}()
}

// TryGet checks L1 first, then L2. L2 hits are copied into L1.
func (t *TwoTierStore[V]) TryGet(ctx context.Context, key string) (V, bool, error) {
	l1Key := t.l2.RedisKey(key)
	if value, found, _ := t.l1.TryGet(ctx, l1Key); found {
		return value, true, nil
	}

	value, found, err := t.l2.TryGet(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	// The remaining Redis TTL bounds the L1 copy.
	if ttl, err := t.l2.client.PTTL(ctx, l1Key).Result(); err == nil && ttl > 0 {
		_ = t.l1.Set(ctx, l1Key, value, t.opts.nowFunc().Add(min(ttl, t.l1TTL)))
	}
	return value, true, nil
}

// Set writes L2 first, then L1 with the capped TTL
func (t *TwoTierStore[V]) Set(ctx context.Context, key string, value V, expiresAt time.Time) error {
	if err := t.l2.Set(ctx, key, value, expiresAt); err != nil {
		return err
	}

	l1Expiry := t.opts.nowFunc().Add(t.l1TTL)
	if expiresAt.Before(l1Expiry) {
		l1Expiry = expiresAt
	}
	return t.l1.Set(ctx, t.l2.RedisKey(key), value, l1Expiry)
}

// Remove deletes from both tiers and tells other stores to drop their L1 copy
func (t *TwoTierStore[V]) Remove(ctx context.Context, key string) error {
	l1Key := t.l2.RedisKey(key)
	_ = t.l1.Remove(ctx, l1Key)
	if err := t.l2.Remove(ctx, key); err != nil {
		logging.Warn("Two-tier remove left a stale L2 entry", logging.Err(err))
		return err
	}

	if err := t.l2.client.Publish(ctx, t.channel, l1Key).Err(); err != nil {
		logging.Warn("Two-tier removal not broadcast", logging.Field{Key: "channel", Value: t.channel}, logging.Err(err))
	}
	return nil
}

// Close stops listening for removals made by other processes
func (t *TwoTierStore[V]) Close() error {
	if t.pubsub == nil {
		return nil
	}
	return t.pubsub.Close()
}
