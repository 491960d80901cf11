package app

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"oauth-token-cache/internal/circuitbreaker"
	"oauth-token-cache/internal/common/cache"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/config"
	"oauth-token-cache/internal/crypto"
	"oauth-token-cache/internal/locks"
	"oauth-token-cache/internal/metrics"
	"oauth-token-cache/internal/oauth2"
	"oauth-token-cache/internal/redis"
	"oauth-token-cache/internal/tokencache"

	commonhttp "oauth-token-cache/internal/common/http"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Client      *oauth2.CachingClient
	Breaker     *circuitbreaker.GoBreakerAdapter
	RedisClient *redis.Client
	Locker      locks.Locker
	Encryptor   *crypto.ConfigEncryptor
	Registry    *prometheus.Registry
	Metrics     *metrics.TokenCacheMetrics
	Logger      logging.Logger

	store cache.Store[tokencache.Entry]
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeEncryption(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeLocks(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeMetrics()

	if err := app.initializeClient(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeEncryption() error {
	if app.Config.EncryptionKey == "" {
		return nil
	}

	encryptor, err := crypto.NewConfigEncryptor(app.Config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	app.Encryptor = encryptor

	if app.RedisClient == nil {
		app.Logger.Warn("Encryption: key set but tokens are only cached in memory")
		return nil
	}
	app.Logger.Info("Encryption: Tokens in Redis are encrypted")
	return nil
}

func (app *App) initializeLocks() error {
	if !app.Config.DistributedLockEnabled {
		return nil
	}
	if app.RedisClient == nil {
		return fmt.Errorf("distributed locks require a Redis-backed cache")
	}

	locker, err := locks.NewRedsyncManager(app.RedisClient, app.Config.LockTTL())
	if err != nil {
		return fmt.Errorf("failed to initialize distributed locks: %w", err)
	}
	app.Locker = locker
	app.Logger.Info("Distributed Locks: Enabled", logging.Duration("ttl", app.Config.LockTTL()))
	return nil
}

func (app *App) initializeMetrics() {
	if !app.Config.MetricsEnabled {
		return
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewTokenCacheMetrics(app.Registry)
}

func (app *App) initializeClient() error {
	cacheConfig := app.Config.CacheConfig()
	if app.RedisClient != nil {
		cacheConfig.RedisClient = app.RedisClient.GetGoRedisClient()
	}

	var storeOpts []cache.Option
	if app.Encryptor != nil {
		storeOpts = append(storeOpts, cache.WithSealer(app.Encryptor))
	}

	store, err := cache.New[tokencache.Entry](cacheConfig, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}
	app.store = store

	httpClient := commonhttp.NewHTTPClient(commonhttp.WithTimeout(app.Config.RequestTimeout()))
	endpointOpts := []oauth2.TokenClientOption{oauth2.WithHTTPClient(httpClient)}

	if app.Config.CircuitBreakerEnabled {
		app.Breaker = circuitbreaker.NewGoBreaker("token-endpoint", circuitbreaker.DefaultConfig(), app.Logger)
		endpointOpts = append(endpointOpts, oauth2.WithCircuitBreaker(app.Breaker))
	}

	cacheOpts := []tokencache.Option{tokencache.WithLogger(logging.GetGlobalLogger())}
	if app.Locker != nil {
		cacheOpts = append(cacheOpts, tokencache.WithLocker(app.Locker))
	}
	if app.Metrics != nil {
		cacheOpts = append(cacheOpts, tokencache.WithRecorder(app.Metrics))
	}

	options := oauth2.ClientOptions{DefaultCacheExpirySeconds: app.Config.DefaultCacheExpiry()}
	app.Client = oauth2.NewCachingClient(oauth2.NewTokenClient(endpointOpts...), store, options, cacheOpts...)

	app.Logger.Info("Token cache: Ready",
		logging.Field{Key: "store", Value: string(cacheConfig.Type)},
		logging.Field{Key: "default_expiry_seconds", Value: options.DefaultCacheExpirySeconds},
		logging.Field{Key: "circuit_breaker", Value: app.Breaker != nil},
	)
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if closer, ok := app.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			app.Logger.Warn("Error closing token store", logging.Err(err))
		}
	}
	app.store = nil

	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Error closing Redis client", logging.Err(err))
		}
		app.RedisClient = nil
	}
}
