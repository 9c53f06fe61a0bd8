package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrLockHeld is returned by WarmOnce when another instance is warming.
var ErrLockHeld = errors.New("cache warmer: lock held elsewhere")

const warmerLockKey = "warmer"

// Loader rebuilds the value of a key family. Urgency in [0,1] expresses how
// costly a miss is for that family.
type Loader struct {
	Load    func(ctx context.Context, key string) (any, error)
	TTL     time.Duration
	Urgency float64
}

type WarmerConfig struct {
	Limit         int           // max keys warmed per run
	Threshold     float64       // minimum score to warm
	RecencyWindow time.Duration // accesses older than this have zero recency
	MaxTracked    int           // bound on the access table
	LockTTL       time.Duration
}

type accessStat struct {
	last  time.Time
	count int
}

// Candidate is a tracked key with its warm score.
type Candidate struct {
	Key       string  `json:"key"`
	Score     float64 `json:"score"`
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Urgency   float64 `json:"urgency"`
}

type WarmReport struct {
	Considered int `json:"considered"`
	Warmed     int `json:"warmed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

type prefixLoader struct {
	prefix string
	loader Loader
}

// Warmer re-populates the keys most likely to be read next, scored as
// 0.3*recency + 0.4*frequency + 0.3*urgency.
type Warmer struct {
	cache  *Cache
	locker Locker
	logger *logrus.Logger
	cfg    WarmerConfig
	now    func() time.Time

	mu      sync.Mutex
	access  map[string]*accessStat
	loaders []prefixLoader
}

func NewWarmer(c *Cache, locker Locker, logger *logrus.Logger, cfg WarmerConfig) *Warmer {
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = time.Hour
	}
	if cfg.MaxTracked <= 0 {
		cfg.MaxTracked = 5000
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Warmer{
		cache:  c,
		locker: locker,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
		access: make(map[string]*accessStat),
	}
}

// Score combines the three normalized signals.
func Score(recency, frequency, urgency float64) float64 {
	return 0.3*clamp01(recency) + 0.4*clamp01(frequency) + 0.3*clamp01(urgency)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Register installs a loader for every key starting with prefix. The longest
// matching prefix wins.
func (w *Warmer) Register(prefix string, l Loader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaders = append(w.loaders, prefixLoader{prefix: prefix, loader: l})
	sort.SliceStable(w.loaders, func(i, j int) bool {
		return len(w.loaders[i].prefix) > len(w.loaders[j].prefix)
	})
}

func (w *Warmer) loaderFor(key string) (Loader, bool) {
	for _, pl := range w.loaders {
		if strings.HasPrefix(key, pl.prefix) {
			return pl.loader, true
		}
	}
	return Loader{}, false
}

// Track records a read of key. When the table is full the least recently
// read key is forgotten.
func (w *Warmer) Track(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if st, ok := w.access[key]; ok {
		st.last = now
		st.count++
		return
	}
	if len(w.access) >= w.cfg.MaxTracked {
		var oldest string
		var oldestAt time.Time
		for k, st := range w.access {
			if oldest == "" || st.last.Before(oldestAt) {
				oldest, oldestAt = k, st.last
			}
		}
		delete(w.access, oldest)
	}
	w.access[key] = &accessStat{last: now, count: 1}
}

// Forget drops tracking for keys with the given prefix.
func (w *Warmer) Forget(prefix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k := range w.access {
		if strings.HasPrefix(k, prefix) {
			delete(w.access, k)
		}
	}
}

// Candidates returns tracked keys that have a loader, best first. Keys not
// read for two recency windows are pruned.
func (w *Warmer) Candidates() []Candidate {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	window := w.cfg.RecencyWindow

	maxCount := 0
	for k, st := range w.access {
		if now.Sub(st.last) > 2*window {
			delete(w.access, k)
			continue
		}
		if st.count > maxCount {
			maxCount = st.count
		}
	}

	out := make([]Candidate, 0, len(w.access))
	for k, st := range w.access {
		l, ok := w.loaderFor(k)
		if !ok {
			continue
		}
		recency := 1 - float64(now.Sub(st.last))/float64(window)
		frequency := 0.0
		if maxCount > 0 {
			frequency = float64(st.count) / float64(maxCount)
		}
		c := Candidate{Key: k, Recency: clamp01(recency), Frequency: frequency, Urgency: clamp01(l.Urgency)}
		c.Score = Score(c.Recency, c.Frequency, c.Urgency)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// WarmOnce warms the best candidates while holding the warmer lock.
func (w *Warmer) WarmOnce(ctx context.Context) (WarmReport, error) {
	var rep WarmReport
	release, ok, err := w.locker.Acquire(ctx, warmerLockKey, w.cfg.LockTTL)
	if err != nil {
		return rep, err
	}
	if !ok {
		stats.Add(statWarmerSkipped, 1)
		return rep, ErrLockHeld
	}
	defer func() {
		if rErr := release(context.WithoutCancel(ctx)); rErr != nil && w.logger != nil {
			w.logger.WithError(rErr).Warn("release warmer lock failed")
		}
	}()

	stats.Add(statWarmerRuns, 1)
	cands := w.Candidates()
	rep.Considered = len(cands)
	for _, c := range cands {
		if rep.Warmed+rep.Failed >= w.cfg.Limit || c.Score < w.cfg.Threshold {
			rep.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		w.mu.Lock()
		l, _ := w.loaderFor(c.Key)
		w.mu.Unlock()

		v, err := l.Load(ctx, c.Key)
		if err == nil {
			err = w.cache.Set(ctx, c.Key, v, l.TTL)
		}
		if err != nil {
			rep.Failed++
			stats.Add(statWarmerFailed, 1)
			if w.logger != nil {
				w.logger.WithError(err).WithField("key", c.Key).Warn("warm key failed")
			}
			continue
		}
		rep.Warmed++
		stats.Add(statWarmerWarmed, 1)
	}
	return rep, nil
}

// Run calls WarmOnce every interval until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context, interval time.Duration) {
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
			rep, err := w.WarmOnce(ctx)
			switch {
			case errors.Is(err, ErrLockHeld), errors.Is(err, context.Canceled):
				if w.logger != nil {
					w.logger.WithError(err).Debug("cache warm skipped")
				}
			case err != nil:
				if w.logger != nil {
					w.logger.WithError(err).Warn("cache warm failed")
				}
			default:
				if w.logger != nil {
					w.logger.WithFields(logrus.Fields{
						"considered": rep.Considered,
						"warmed":     rep.Warmed,
						"failed":     rep.Failed,
						"skipped":    rep.Skipped,
					}).Info("cache warmed")
				}
			}
		}
	}
}
