package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheConfig holds cache configuration
type CacheConfig struct {
	RedisURL    string
	EnableRedis bool
	DefaultTTL  time.Duration
}

// Cache stores JSON values in Redis, or in process memory when Redis is
// disabled or unreachable.
type Cache struct {
	redis      *redis.Client
	defaultTTL time.Duration

	mu  sync.RWMutex
	mem map[string]memItem
}

type memItem struct {
	data    []byte
	expires time.Time
}

// NewCache connects to Redis if enabled and falls back to memory otherwise.
func NewCache(cfg CacheConfig) *Cache {
	c := &Cache{
		defaultTTL: cfg.DefaultTTL,
		mem:        make(map[string]memItem),
	}
	if !cfg.EnableRedis || cfg.RedisURL == "" {
		log.Println("[CACHE] using in-memory cache")
		return c
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("[CACHE] invalid REDIS_URL, using in-memory cache: %v", err)
		return c
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[CACHE] redis %s unreachable, using in-memory cache: %v", opt.Addr, err)
		_ = client.Close()
		return c
	}

	c.redis = client
	log.Printf("[CACHE] using redis at %s", opt.Addr)
	return c
}

// Backend names the active store.
func (c *Cache) Backend() string {
	if c.redis != nil {
		return "redis"
	}
	return "memory"
}

// Get decodes the value stored under key into dest. It reports false on a
// miss, an expired entry or an undecodable value.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c.redis != nil {
		b, err := c.redis.Get(ctx, key).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Printf("[CACHE] redis get %s failed: %v", key, err)
			}
			return false
		}
		return json.Unmarshal(b, dest) == nil
	}

	c.mu.RLock()
	item, ok := c.mem[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(item.expires) {
		return false
	}
	return json.Unmarshal(item.data, dest) == nil
}

// Set stores value under key. A non-positive ttl uses the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if c.redis != nil {
		return c.redis.Set(ctx, key, b, ttl).Err()
	}

	c.mu.Lock()
	c.mem[key] = memItem{data: b, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
