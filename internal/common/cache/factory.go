package cache

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Type represents the store backend type
type Type string

const (
	TypeLocal   Type = "local"
	TypeRedis   Type = "redis"
	TypeTwoTier Type = "two_tier"
)

// ParseType validates a backend name
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeLocal, TypeRedis, TypeTwoTier:
		return t, nil
	default:
		return "", fmt.Errorf("unknown cache type: %s", s)
	}
}

// Config holds store configuration
type Config struct {
	Type            Type          `json:"type"`
	CleanupInterval time.Duration `json:"cleanup_interval,omitempty"`
	L1TTL           time.Duration `json:"l1_ttl,omitempty"`
	KeyPrefix       string        `json:"key_prefix,omitempty"`
	RedisClient     *redis.Client `json:"-"`
}

// DefaultConfig returns default store configuration
func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		CleanupInterval: 10 * time.Minute,
		L1TTL:           DefaultL1TTL,
		KeyPrefix:       "oauth2:token:",
	}
}

// New creates a store based on configuration
func New[V any](config Config, opts ...Option) (Store[V], error) {
	switch config.Type {
	case TypeLocal, "":
		return NewLocalStore[V](config.CleanupInterval, opts...), nil

	case TypeRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for redis cache")
		}
		return NewRedisStore[V](config.RedisClient, config.KeyPrefix, opts...), nil

	case TypeTwoTier:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis client required for two-tier cache")
		}
		return NewTwoTierStore[V](config.L1TTL, config.CleanupInterval, config.RedisClient, config.KeyPrefix, opts...), nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}

// Shared reports whether stores of this type are visible to other processes.
func (t Type) Shared() bool {
	return t == TypeRedis || t == TypeTwoTier
}
