package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	seq       uint64
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is the in-process fallback used when Redis is absent or failing.
// Entries expire lazily on read and eagerly through Sweep. When MaxEntries is
// reached, expired entries go first, then the entry closest to expiry.
type MemoryStore struct {
	mu         sync.Mutex
	items      map[string]memEntry
	maxEntries int
	seq        uint64
	now        func() time.Time
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]memEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. ttl <= 0 keeps the entry until deleted or evicted.
func (m *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		if m.sweepLocked(now) == 0 {
			m.evictOneLocked()
		}
	}
	m.seq++
	e := memEntry{value: value, seq: m.seq}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.items[key] = e
}

func (m *MemoryStore) Delete(keys ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := m.items[k]; ok {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) DeletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep drops expired entries and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			n++
		}
	}
	if n > 0 {
		stats.Add(statEvictions, int64(n))
	}
	return n
}

func (m *MemoryStore) evictOneLocked() {
	var (
		victim string
		best   memEntry
		found  bool
	)
	for k, e := range m.items {
		if !found || evictsBefore(e, best) {
			victim, best, found = k, e, true
		}
	}
	if found {
		delete(m.items, victim)
		stats.Add(statEvictions, 1)
	}
}

// evictsBefore orders entries by expiry; entries without expiry come last and
// ties go to the oldest write.
func evictsBefore(a, b memEntry) bool {
	switch {
	case a.expiresAt.IsZero() && b.expiresAt.IsZero():
		return a.seq < b.seq
	case a.expiresAt.IsZero():
		return false
	case b.expiresAt.IsZero():
		return true
	case a.expiresAt.Equal(b.expiresAt):
		return a.seq < b.seq
	default:
		return a.expiresAt.Before(b.expiresAt)
	}
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
