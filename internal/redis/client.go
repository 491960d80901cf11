package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const pingTimeout = 5 * time.Second

// Client owns the go-redis connection pool shared by the Redis-backed token
// store and the distributed lock.
type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// NewClient connects and pings Redis.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	cfg := *config
	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: &cfg,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings Redis, bounded by ctx and a 5s timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Address returns the address the client connected to.
func (c *Client) Address() string {
	return c.config.Address
}

// GetGoRedisClient exposes the underlying client for stores and redsync.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}
