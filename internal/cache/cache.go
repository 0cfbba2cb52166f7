// Package cache provides a TTL response cache backed by Redis, falling back
// to process memory when Redis is not configured or unreachable.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"divtrack/internal/errors"
)

const keyPrefix = "divtrack:v1:"

// Cache stores raw response bodies by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Backend() string
}

// New returns a Redis cache when redisURL is set and answers a ping,
// otherwise an in-memory cache.
func New(ctx context.Context, redisURL string, logger zerolog.Logger) Cache {
	if redisURL == "" {
		return NewMemoryCache()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid redis URL, using in-memory cache")
		return NewMemoryCache()
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable, using in-memory cache")
		client.Close()
		return NewMemoryCache()
	}

	logger.Debug().Str("addr", opts.Addr).Msg("Redis cache connected")
	return NewRedisCache(client)
}

// RedisCache stores entries in Redis with native expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (r *RedisCache) Backend() string { return "redis" }

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

type memEntry struct {
	value  []byte
	expire time.Time // zero means no expiry
}

// MemoryCache is a mutex-guarded map with lazy expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, errors.ErrCacheMiss
	}
	if !e.expire.IsZero() && m.now().After(e.expire) {
		delete(m.entries, key)
		return nil, errors.ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expire = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryCache) Backend() string { return "memory" }

// Fetch returns the cached value for key decoded into T, or calls load,
// caches its result for ttl and returns it. Cache failures never fail the
// call; they are logged and skip caching. keep decides whether a loaded
// value may be cached.
func Fetch[T any](ctx context.Context, c Cache, logger zerolog.Logger, key string, ttl time.Duration, keep func(T) bool, load func(context.Context) (T, error)) (T, error) {
	if c == nil || ttl <= 0 {
		return load(ctx)
	}

	raw, err := c.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		uerr := json.Unmarshal(raw, &cached)
		if uerr == nil {
			return cached, nil
		}
		logger.Warn().Err(uerr).Str("backend", c.Backend()).Str("key", key).Msg("Discarding unreadable cache entry")
	case !errors.Is(err, errors.ErrCacheMiss):
		logger.Warn().Err(err).Str("backend", c.Backend()).Str("key", key).Msg("Cache read failed")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if keep != nil && !keep(v) {
		return v, nil
	}
	raw, err = json.Marshal(v)
	if err == nil {
		err = c.Set(ctx, key, raw, ttl)
	}
	if err != nil {
		logger.Warn().Err(err).Str("backend", c.Backend()).Str("key", key).Msg("Cache write failed")
	}
	return v, nil
}
