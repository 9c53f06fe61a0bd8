package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
)

// AdminModule exposes cache operations to callers on the private network.
type AdminModule struct {
	Cache *handlers.CacheHandler
}

func NewAdminModule(h *handlers.CacheHandler) *AdminModule { return &AdminModule{Cache: h} }

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RequireAllow(middleware.AllowPrivateIP()))
	admin.POST("/cache/warm", m.Cache.Warm)
	admin.GET("/cache/candidates", m.Cache.Candidates)
	admin.DELETE("/cache", m.Cache.Invalidate)
}
