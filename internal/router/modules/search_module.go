package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
)

type SearchModule struct {
	Handler *handlers.SearchHandler
}

func NewSearchModule(h *handlers.SearchHandler) *SearchModule { return &SearchModule{Handler: h} }

func (m *SearchModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/search", rl, m.Handler.Search)
	rg.GET("/search/suggest", rl, m.Handler.Suggest)
}
