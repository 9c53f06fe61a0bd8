package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// CacheHandler exposes operator controls for the cache and its warmer.
type CacheHandler struct {
	Cache  *cache.Cache
	Warmer *cache.Warmer
	Logger *logrus.Logger
}

func NewCacheHandler(c *cache.Cache, w *cache.Warmer, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{Cache: c, Warmer: w, Logger: logger}
}

// Warm runs one warming pass now.
func (h *CacheHandler) Warm(c *gin.Context) {
	rep, err := h.Warmer.WarmOnce(c.Request.Context())
	if errors.Is(err, cache.ErrLockHeld) {
		response.Error[any](c, http.StatusConflict, "warm already running", nil)
		return
	}
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, rep, "cache warmed", nil)
}

func (h *CacheHandler) Candidates(c *gin.Context) {
	cands := h.Warmer.Candidates()
	if n := queryInt(c, "limit", 50); n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	response.Success(c, http.StatusOK, cands, "warm candidates", gin.H{"stats": cache.Stats()})
}

// Invalidate handles DELETE /admin/cache?prefix=feed:.
func (h *CacheHandler) Invalidate(c *gin.Context) {
	prefix := strings.TrimSpace(c.Query("prefix"))
	if prefix == "" {
		fail(c, h.Logger, app.ErrInvalidCacheOp)
		return
	}
	n, err := h.Cache.DelPrefix(c.Request.Context(), prefix)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	h.Warmer.Forget(prefix)
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"prefix": prefix, "deleted": n}).Info("cache invalidated")
	}
	response.Success(c, http.StatusOK, gin.H{"prefix": prefix, "deleted": n}, "cache invalidated", nil)
}
