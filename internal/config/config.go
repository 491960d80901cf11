// Package config provides configuration management for the token broker.
// It loads configuration from environment variables with sensible defaults
// and validates it before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8089)
//   - LOG_LEVEL: Logging level (default: info)
//   - DEFAULT_CACHE_EXPIRY_SECONDS: Lifetime of tokens without expires_in (default: 86400)
//
// Token Cache:
//   - CACHE_TYPE: "local", "redis" or "two_tier" (default: local)
//   - CACHE_KEY_PREFIX: Redis key prefix (default: oauth2:token:)
//   - CACHE_CLEANUP_INTERVAL: In-memory janitor interval (default: 10m)
//   - CACHE_L1_TTL: In-memory cap for the two-tier store (default: 5m)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Security Configuration:
//   - CONFIG_ENCRYPTION_KEY: Encrypts tokens stored in Redis (32 characters if provided)
//
// Token Endpoint:
//   - HTTP_TIMEOUT: Token request timeout (default: 30s)
//   - CIRCUIT_BREAKER_ENABLED: Guard the endpoint with a circuit breaker (default: true)
//
// Coordination and Metrics:
//   - DISTRIBUTED_LOCK_ENABLED: Serialize fetches across processes (default: false)
//   - DISTRIBUTED_LOCK_TTL: Lock expiry (default: 30s)
//   - METRICS_ENABLED: Register Prometheus collectors and serve /metrics (default: true)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"oauth-token-cache/internal/common/cache"
)

// Config holds all configuration values for the token broker.
// String fields correspond to environment variables; they are parsed by
// Validate and the typed accessors below.
type Config struct {
	// Application settings
	Port                      string // Server port number
	LogLevel                  string // Logging level (debug, info, warn, error)
	DefaultCacheExpirySeconds string // Fallback token lifetime in seconds

	// Token cache
	CacheType            string // local, redis or two_tier
	CacheKeyPrefix       string // Redis key prefix
	CacheCleanupInterval string // go-cache janitor interval
	CacheL1TTL           string // Two-tier in-memory cap

	// Redis configuration for shared caches and locks
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Encryption configuration
	EncryptionKey string // Key for encrypting tokens at rest in Redis

	// Token endpoint
	HTTPTimeout           string // Token request timeout
	CircuitBreakerEnabled bool   // Whether the endpoint is guarded by a breaker

	// Coordination
	DistributedLockEnabled bool   // Whether fetches are serialized across processes
	DistributedLockTTL     string // Lock expiry

	MetricsEnabled bool
}

// Load creates a new Config with values loaded from environment variables.
// Unset variables take their default. Call Validate before use.
func Load() *Config {
	return &Config{
		Port:                      getEnv("PORT", "8089"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		DefaultCacheExpirySeconds: getEnv("DEFAULT_CACHE_EXPIRY_SECONDS", "86400"),

		CacheType:            getEnv("CACHE_TYPE", "local"),
		CacheKeyPrefix:       getEnv("CACHE_KEY_PREFIX", "oauth2:token:"),
		CacheCleanupInterval: getEnv("CACHE_CLEANUP_INTERVAL", "10m"),
		CacheL1TTL:           getEnv("CACHE_L1_TTL", "5m"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		HTTPTimeout:           getEnv("HTTP_TIMEOUT", "30s"),
		CircuitBreakerEnabled: getBoolEnv("CIRCUIT_BREAKER_ENABLED", true),

		DistributedLockEnabled: getBoolEnv("DISTRIBUTED_LOCK_ENABLED", false),
		DistributedLockTTL:     getEnv("DISTRIBUTED_LOCK_TTL", "30s"),

		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
//
// This function accepts common boolean representations:
//   - "true", "1", "t", "TRUE", "True" -> true
//   - "false", "0", "f", "FALSE", "False" -> false
//   - Any other value or parsing error -> returns defaultValue
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks that all values parse and that dependent settings agree.
//
// This method checks:
//   - Field formats (ports, durations, numbers)
//   - Cache backend names
//   - Cross-field dependencies (distributed locks need a Redis-backed cache)
//   - Key lengths
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if seconds, err := strconv.Atoi(c.DefaultCacheExpirySeconds); err != nil || seconds < 1 {
		return fmt.Errorf("DEFAULT_CACHE_EXPIRY_SECONDS must be a positive number")
	}

	cacheType, err := cache.ParseType(c.CacheType)
	if err != nil {
		return fmt.Errorf("CACHE_TYPE must be 'local', 'redis' or 'two_tier'")
	}

	if d, err := time.ParseDuration(c.CacheCleanupInterval); err != nil || d <= 0 {
		return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be a positive duration (e.g., '10m')")
	}

	if d, err := time.ParseDuration(c.CacheL1TTL); err != nil || d <= 0 {
		return fmt.Errorf("CACHE_L1_TTL must be a positive duration (e.g., '5m')")
	}

	if cacheType.Shared() {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when CACHE_TYPE is %s", cacheType)
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if d, err := time.ParseDuration(c.HTTPTimeout); err != nil || d <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be a positive duration (e.g., '30s')")
	}

	if c.DistributedLockEnabled {
		if !cacheType.Shared() {
			return fmt.Errorf("DISTRIBUTED_LOCK_ENABLED requires CACHE_TYPE 'redis' or 'two_tier'")
		}
		if d, err := time.ParseDuration(c.DistributedLockTTL); err != nil || d <= 0 {
			return fmt.Errorf("DISTRIBUTED_LOCK_TTL must be a positive duration (e.g., '30s')")
		}
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	return nil
}

// CacheConfig returns the store configuration. The Redis client is attached
// by the caller.
func (c *Config) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Type = cache.Type(c.CacheType)
	cfg.KeyPrefix = c.CacheKeyPrefix
	cfg.CleanupInterval = parseDuration(c.CacheCleanupInterval, cfg.CleanupInterval)
	cfg.L1TTL = parseDuration(c.CacheL1TTL, cfg.L1TTL)
	return cfg
}

// DefaultCacheExpiry returns DEFAULT_CACHE_EXPIRY_SECONDS as a number
func (c *Config) DefaultCacheExpiry() int {
	seconds, err := strconv.Atoi(c.DefaultCacheExpirySeconds)
	if err != nil || seconds < 1 {
		return 86400
	}
	return seconds
}

// RequestTimeout returns HTTP_TIMEOUT as a duration
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.HTTPTimeout, 30*time.Second)
}

// LockTTL returns DISTRIBUTED_LOCK_TTL as a duration
func (c *Config) LockTTL() time.Duration {
	return parseDuration(c.DistributedLockTTL, 30*time.Second)
}

// RedisDBNumber returns REDIS_DB as a number
func (c *Config) RedisDBNumber() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as a number
func (c *Config) RedisPoolSizeNumber() int {
	size, err := strconv.Atoi(c.RedisPoolSize)
	if err != nil || size < 1 {
		return 10
	}
	return size
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
