package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// AccessObserver is told about every key read through the cache.
type AccessObserver interface {
	Track(key string)
}

// Cache stores JSON values in Redis when available and in a MemoryStore
// otherwise. A Redis failure (anything but a miss) falls back to memory for
// that call only.
type Cache struct {
	rdb        *redis.Client
	mem        *MemoryStore
	logger     *logrus.Logger
	prefix     string
	defaultTTL time.Duration

	mu       sync.RWMutex
	observer AccessObserver
}

type Option func(*Cache)

// WithPrefix namespaces every Redis key.
func WithPrefix(p string) Option { return func(c *Cache) { c.prefix = p } }

// WithDefaultTTL is used when Set is called with ttl == 0.
func WithDefaultTTL(d time.Duration) Option { return func(c *Cache) { c.defaultTTL = d } }

func WithMemoryStore(m *MemoryStore) Option { return func(c *Cache) { c.mem = m } }

func New(rdb *redis.Client, logger *logrus.Logger, opts ...Option) *Cache {
	c := &Cache{
		rdb:        rdb,
		logger:     logger,
		defaultTTL: 5 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	if c.mem == nil {
		c.mem = NewMemoryStore(10000)
	}
	return c
}

// Memory exposes the fallback store, mainly so main can run its janitor.
func (c *Cache) Memory() *MemoryStore { return c.mem }

// SetObserver installs the access observer (usually the Warmer).
func (c *Cache) SetObserver(o AccessObserver) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

func (c *Cache) observe(key string) {
	c.mu.RLock()
	o := c.observer
	c.mu.RUnlock()
	if o != nil {
		o.Track(key)
	}
}

func (c *Cache) fallback(op, key string, err error) {
	stats.Add(statFallbacks, 1)
	if c.logger != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"op": op, "key": key}).Warn("redis unavailable, using memory cache")
	}
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.observe(key)
	raw, ok := c.getRaw(ctx, key)
	if !ok {
		stats.Add(statMisses, 1)
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		stats.Add(statMisses, 1)
		return false, err
	}
	stats.Add(statHits, 1)
	return true, nil
}

func (c *Cache) getRaw(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
		if err == nil {
			return b, true
		}
		if errors.Is(err, redis.Nil) {
			return nil, false
		}
		c.fallback("get", key, err)
	}
	return c.mem.Get(key)
}

// Set stores value under key. ttl == 0 uses the default TTL, ttl < 0 never expires.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	switch {
	case ttl == 0:
		ttl = c.defaultTTL
	case ttl < 0:
		ttl = 0
	}
	stats.Add(statSets, 1)
	if c.rdb != nil {
		err := c.rdb.Set(ctx, c.prefix+key, b, ttl).Err()
		if err == nil {
			return nil
		}
		c.fallback("set", key, err)
	}
	c.mem.Set(key, b, ttl)
	return nil
}

// Del removes keys from both Redis and memory. Memory is always cleared; a
// Redis failure is returned so callers know the shared copy may be stale.
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	stats.Add(statDeletes, int64(len(keys)))
	c.mem.Delete(keys...)
	if c.rdb == nil {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.fallback("del", strings.Join(keys, ","), err)
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DelPrefix removes every key starting with prefix and returns how many
// entries were removed. Memory is always cleared; a Redis failure stops the
// scan and is returned with the count removed so far.
func (c *Cache) DelPrefix(ctx context.Context, prefix string) (int, error) {
	n := c.mem.DeletePrefix(prefix)
	if c.rdb == nil {
		stats.Add(statDeletes, int64(n))
		return n, nil
	}
	var (
		cursor   uint64
		redisErr error
	)
	pattern := escapeGlob(c.prefix+prefix) + "*"
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			c.fallback("scan", prefix, err)
			redisErr = fmt.Errorf("redis scan: %w", err)
			break
		}
		if len(keys) > 0 {
			deleted, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				c.fallback("del", prefix, err)
				redisErr = fmt.Errorf("redis del: %w", err)
				break
			}
			n += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	stats.Add(statDeletes, int64(n))
	return n, redisErr
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Cache write failures are logged, not returned.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if ok, err := c.Get(ctx, key, &v); err == nil && ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache set failed")
	}
	return v, nil
}
