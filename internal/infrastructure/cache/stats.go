package cache

import "expvar"

const (
	statHits          = "hits"
	statMisses        = "misses"
	statSets          = "sets"
	statDeletes       = "deletes"
	statFallbacks     = "fallbacks"
	statEvictions     = "evictions"
	statWarmerRuns    = "warmer_runs"
	statWarmerWarmed  = "warmer_warmed"
	statWarmerFailed  = "warmer_failed"
	statWarmerSkipped = "warmer_lock_skips"
)

// stats is published on /debug/vars under "cache".
var stats = expvar.NewMap("cache")

// Stats returns a snapshot of the cache counters.
func Stats() map[string]int64 {
	out := map[string]int64{}
	stats.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out[kv.Key] = v.Value()
		}
	})
	return out
}
