package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Release gives a lock back. Releasing a lock that expired or was taken over
// by another owner is a no-op.
type Release func(ctx context.Context) error

// Locker hands out short-lived exclusive locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, bool, error)
}

// NewLocker returns a Redis locker, or a process-local one when rdb is nil.
func NewLocker(rdb *redis.Client, prefix string) Locker {
	if rdb == nil {
		return NewLocalLocker()
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// compare-and-delete so a slow owner cannot release a lock someone else holds now
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, bool, error) {
	full := l.prefix + "lock:" + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{full}, token).Err()
	}, true, nil
}

type localLock struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is a Locker for single-process deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]localLock), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.locks[key] = localLock{token: token, expiresAt: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.locks[key]; ok && cur.token == token {
			delete(l.locks, key)
		}
		return nil
	}, true, nil
}
