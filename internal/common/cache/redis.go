package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"oauth-token-cache/internal/common/errors"
)

// Sealer encrypts values before they leave the process.
// *crypto.ConfigEncryptor satisfies it.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// WithSealer encrypts values written to shared backends.
func WithSealer(s Sealer) Option {
	return func(o *options) {
		o.sealer = s
	}
}

// RedisStore keeps JSON-encoded values in Redis with a native TTL.
// Keys are SHA-256 hashed so credential material never appears in key names.
type RedisStore[V any] struct {
	client    *redis.Client
	keyPrefix string
	opts      options
}

var _ Store[string] = (*RedisStore[string])(nil)

// NewRedisStore creates a Redis-backed store
func NewRedisStore[V any](client *redis.Client, keyPrefix string, opts ...Option) *RedisStore[V] {
	return &RedisStore[V]{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      newOptions(opts),
	}
}

// RedisKey returns the Redis key used for key.
func (r *RedisStore[V]) RedisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return r.keyPrefix + hex.EncodeToString(sum[:])
}

// TryGet loads and decodes the value under key
func (r *RedisStore[V]) TryGet(ctx context.Context, key string) (V, bool, error) {
	var zero V

	payload, err := r.client.Get(ctx, r.RedisKey(key)).Result()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.ConnectionError("failed to read cache entry", err)
	}

	if r.opts.sealer != nil {
		payload, err = r.opts.sealer.Decrypt(payload)
		if err != nil {
			return zero, false, errors.InternalError("failed to decrypt cache entry", err)
		}
	}

	var value V
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return zero, false, errors.InternalError("failed to decode cache entry", err)
	}
	return value, true, nil
}

// Set encodes value and stores it with a TTL ending at expiresAt
func (r *RedisStore[V]) Set(ctx context.Context, key string, value V, expiresAt time.Time) error {
	ttl, ok := ttlUntil(r.opts.nowFunc, expiresAt)
	if !ok {
		// a zero expiration means "persist" to go-redis
		return r.Remove(ctx, key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.InternalError("failed to encode cache entry", err)
	}

	payload := string(data)
	if r.opts.sealer != nil {
		payload, err = r.opts.sealer.Encrypt(payload)
		if err != nil {
			return errors.InternalError("failed to encrypt cache entry", err)
		}
	}

	if err := r.client.Set(ctx, r.RedisKey(key), payload, ttl).Err(); err != nil {
		return errors.ConnectionError("failed to write cache entry", err)
	}
	return nil
}

// Remove deletes key; removing a missing key is not an error
func (r *RedisStore[V]) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.RedisKey(key)).Err(); err != nil {
		return errors.ConnectionError("failed to delete cache entry", err)
	}
	return nil
}

// Clear removes every key under the store's prefix
func (r *RedisStore[V]) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.ConnectionError("failed to scan cache keys", err)
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}
