package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// ipFromCtx prefers the address resolved by RealIP and otherwise uses the
// TCP peer. Unauthenticated forwarding headers are never read here.
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := peerIP(c); ip != "" {
		return ip
	}
	return "unknown"
}

func normalizePath(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

// KeyFunc builds a rate-limit bucket key from the request.
type KeyFunc func(c *gin.Context) string

func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "rl:ip:" + ipFromCtx(c) }
}

func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:path:" + normalizePath(c) + ":ip:" + ipFromCtx(c)
	}
}

// KeyByUserID buckets authenticated callers by user and anonymous ones by IP.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString(CtxUserIDKey); uid != "" {
			return "rl:user:" + uid
		}
		return "rl:user:anon:ip:" + ipFromCtx(c)
	}
}

// INCR and set the window expiry on the first hit.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// AllowFunc returns true when the request bypasses the limit.
type AllowFunc func(*gin.Context) bool

// counter is a fixed window counter store.
type counter interface {
	incr(c *gin.Context, key string) (count int, reset time.Duration, err error)
}

type redisCounter struct {
	rdb    *redis.Client
	window time.Duration
}

func (r redisCounter) incr(c *gin.Context, key string) (int, time.Duration, error) {
	ctx := c.Request.Context()
	n, err := incrExpireScript.Run(ctx, r.rdb, []string{key}, r.window.Milliseconds()).Int()
	if err != nil {
		return 0, 0, err
	}
	ttl, _ := r.rdb.PTTL(ctx, key).Result()
	return n, ttl, nil
}

type window struct {
	count int
	until time.Time
}

// localCounter keeps per-process windows. Expired windows are swept when
// the table grows past sweepAt.
type localCounter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*window
	sweepAt int
	now     func() time.Time
}

func newLocalCounter(w time.Duration) *localCounter {
	return &localCounter{window: w, buckets: map[string]*window{}, sweepAt: 4096, now: time.Now}
}

func (l *localCounter) incr(_ *gin.Context, key string) (int, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.buckets) >= l.sweepAt {
		for k, b := range l.buckets {
			if !now.Before(b.until) {
				delete(l.buckets, k)
			}
		}
	}
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.until) {
		b = &window{until: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return b.count, b.until.Sub(now), nil
}

// RateLimit allows max requests per window per key. Redis holds the
// counters when configured; without Redis, or when a Redis call fails, the
// in-process counter is used. OPTIONS requests are never counted.
func RateLimit(rdb *redis.Client, max int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if max <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	local := newLocalCounter(window)
	var primary counter = local
	if rdb != nil {
		primary = redisCounter{rdb: rdb, window: window}
	}
	return func(c *gin.Context) {
		if allow != nil && allow(c) {
			c.Next()
			return
		}
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}

		key := keyFn(c)
		count, reset, err := primary.incr(c, key)
		if err != nil {
			count, reset, _ = local.incr(c, key)
		}
		resetSec := int((reset + time.Second - 1) / time.Second)
		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if count > max {
			if resetSec > 0 {
				c.Header("Retry-After", strconv.Itoa(resetSec))
			}
			response.Error[any](c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
