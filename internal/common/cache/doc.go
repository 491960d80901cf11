// Package cache provides the expiring key-value stores that back the token
// cache.
//
// Every backend implements Store[V]: TryGet, Set with an absolute expiry
// instant, and Remove. An entry must not be readable after its expiry
// instant, whatever the read volume.
//
// Backends:
//
//  1. LocalStore - in-process, github.com/patrickmn/go-cache
//  2. RedisStore - shared, github.com/go-redis/redis/v8. Keys are hashed
//     before they reach Redis and values may be encrypted at rest.
//  3. TwoTierStore - LocalStore in front of RedisStore, L1 TTL capped
//
// Usage:
//
//	store := cache.NewLocalStore[models.TokenResult](10 * time.Minute)
//	_ = store.Set(ctx, key, token, time.Now().Add(time.Hour))
//	token, found, err := store.TryGet(ctx, key)
//
//	// Using factory
//	store, err := cache.New[tokencache.Entry](cache.Config{
//		Type:        cache.TypeTwoTier,
//		RedisClient: rdb,
//		KeyPrefix:   "oauth2:token:",
//	})
package cache
