package app

import (
	"fmt"

	"oauth-token-cache/internal/common/cache"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/redis"
)

// initializeRedis connects only when the token store is shared; a local
// store never touches Redis.
func (app *App) initializeRedis() error {
	if !cache.Type(app.Config.CacheType).Shared() {
		app.Logger.Info("Redis: Not used (in-memory token cache, distributed locks disabled)")
		return nil
	}

	redisConfig := &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	}

	redisClient, err := redis.NewClient(redisConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected",
		logging.Field{Key: "address", Value: redisClient.Address()},
		logging.Field{Key: "db", Value: redisConfig.DB},
	)
	return nil
}
