package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/mundo-tango-api/config"
	"github.com/mundotango/mundo-tango-api/internal/container"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/internal/realtime"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.RedisAddr = ""
	container.SetConfig(cfg)
	container.SetJWT(helpers.NewJWTManager("a", "r", time.Minute, time.Hour))
	c := cache.New(nil, nil)
	container.SetCache(c)
	container.SetWarmer(cache.NewWarmer(c, cache.NewLocalLocker(), nil, cache.WarmerConfig{}))
	container.SetHub(realtime.NewHub(nil, 0))

	engine := gin.New()
	engine.Use(middleware.RealIP())
	reg := NewRegistry(engine)
	reg.Use(middleware.RequestIDMiddleware())
	deps := InitModules(reg)
	require.NotNil(t, deps.Search)
	reg.RegisterAll()
	return engine
}

func TestInitModules_Routes(t *testing.T) {
	engine := setupRouter(t)
	got := map[string]bool{}
	for _, r := range engine.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/login",
		"POST /api/refresh",
		"POST /api/logout",
		"POST /api/auth/verify/init",
		"POST /api/auth/verify/confirm",
		"POST /api/auth/password/forgot",
		"POST /api/auth/password/reset",
		"GET /api/profile",
		"PUT /api/profile",
		"POST /api/profile/avatar",
		"GET /api/feed",
		"POST /api/posts",
		"GET /api/posts/:id",
		"GET /api/posts/:id/comments",
		"POST /api/posts/:id/comments",
		"POST /api/users/:id/follow",
		"DELETE /api/users/:id/follow",
		"GET /api/search",
		"GET /api/search/suggest",
		"GET /api/recommendations/:kind",
		"POST /api/recommendations/digest",
		"GET /api/pricing/tiers",
		"GET /api/homes",
		"GET /api/homes/:id",
		"POST /api/homes",
		"POST /api/homes/:id/photos",
		"GET /api/groups",
		"POST /api/groups",
		"POST /api/groups/:id/members",
		"DELETE /api/groups/:id/members",
		"GET /api/groups/:id/chat",
		"GET /api/events",
		"POST /api/events",
		"POST /api/events/:id/rsvp",
		"POST /api/admin/cache/warm",
		"GET /api/admin/cache/candidates",
		"DELETE /api/admin/cache",
		"GET /api/debug/vars",
	} {
		assert.True(t, got[want], "missing route %s", want)
	}
}

func TestInitModules_Guards(t *testing.T) {
	engine := setupRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/verify/init", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// no queue is configured, so account emails cannot be sent
	req := httptest.NewRequest(http.MethodPost, "/api/auth/password/forgot", strings.NewReader(`{"email":"ana@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	admin := func(method, path, remote, xff string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusForbidden, admin(http.MethodPost, "/api/admin/cache/warm", "203.0.113.5:4000", ""))
	assert.Equal(t, http.StatusForbidden, admin(http.MethodPost, "/api/admin/cache/warm", "203.0.113.5:4000", "127.0.0.1"))
	assert.Equal(t, http.StatusForbidden, admin(http.MethodDelete, "/api/admin/cache?prefix=feed:", "203.0.113.5:4000", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, admin(http.MethodPost, "/api/admin/cache/warm", "127.0.0.1:4000", ""))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/debug/vars", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "search_index_docs")
	assert.Contains(t, w.Body.String(), `"cache"`)
}
