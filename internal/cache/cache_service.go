// Package cache provides Redis-based caching for screening shortlists and
// validation reports, with graceful degradation when Redis is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stock-pattern-engine/config"
)

// Cache keys
const (
	KeyShortlist        = "screener:shortlist"
	KeyScreenResult     = "screener:result"
	KeyValidationReport = "validation:latest"
)

// ErrCacheMiss marks an absent key; callers fall back to the database.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheUnavailable marks a degraded cache; callers fall back to the
// database without treating it as a failure.
var ErrCacheUnavailable = errors.New("cache unavailable")

// CacheService wraps a Redis client. When Redis is down, operations return
// ErrCacheUnavailable and a background probe re-enables the service once
// the connection recovers.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time
}

// NewCacheService connects to Redis. A failed initial connection returns a
// degraded service, not an error; the engine works without the cache.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client: client,
		ttl:    time.Duration(cfg.CacheTTL) * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] Initial Redis connection failed: %v", err)
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	log.Printf("[CACHE] Redis connected successfully at %s", cfg.Address)

	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= 3 {
		if cs.healthy {
			log.Printf("[CACHE] Redis marked unhealthy after %d failures", cs.failureCount)
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		log.Printf("[CACHE] Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth probes a degraded connection at most every 30 seconds.
func (cs *CacheService) checkHealth() {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= 30*time.Second
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(ctx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// SetJSON stores a JSON-encoded value under the key with the service TTL.
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return ErrCacheUnavailable
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := cs.client.Set(ctx, key, encoded, cs.ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("caching %s: %w", key, err)
	}
	cs.recordSuccess()
	return nil
}

// GetJSON loads and decodes a cached value into out.
func (cs *CacheService) GetJSON(ctx context.Context, key string, out interface{}) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return ErrCacheUnavailable
	}

	encoded, err := cs.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		cs.recordSuccess()
		return ErrCacheMiss
	}
	if err != nil {
		cs.recordFailure()
		return fmt.Errorf("reading %s: %w", key, err)
	}
	cs.recordSuccess()

	return json.Unmarshal([]byte(encoded), out)
}

// Invalidate removes a key, for use after a new validation run lands.
func (cs *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !cs.IsHealthy() {
		return
	}
	if err := cs.client.Del(ctx, keys...).Err(); err != nil {
		cs.recordFailure()
	}
}

// Close releases the Redis connection.
func (cs *CacheService) Close() error {
	return cs.client.Close()
}
