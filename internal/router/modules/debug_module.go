package modules

import (
	"expvar"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
)

var publishOnce sync.Once

type DebugModule struct {
	index *search.MemoryIndex
}

// NewDebugModule publishes the local search index size next to the cache
// counters.
func NewDebugModule(index *search.MemoryIndex) *DebugModule {
	publishOnce.Do(func() {
		expvar.Publish("search_index_docs", expvar.Func(func() any {
			if index == nil {
				return 0
			}
			return index.Len()
		}))
		expvar.Publish("cache_memory_entries", expvar.Func(func() any {
			if c := container.GetCache(); c != nil && c.Memory() != nil {
				return c.Memory().Len()
			}
			return 0
		}))
	})
	return &DebugModule{index: index}
}

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// Public metrics endpoint (expvar), rate-limited per IP
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}
