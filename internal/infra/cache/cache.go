package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"videostar-app/config"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the Redis connection used for profile and plan
// catalog caching. A missing cache server is logged, not fatal, since the cache
// is never the source of truth.
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", config.CACHE_HOST, config.CACHE_PORT),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: could not connect to cache: %v", err)
	}
}

func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value with an expiration.
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a string value by key.
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a key.
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}
