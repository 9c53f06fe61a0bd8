package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

type RecommendationModule struct {
	Handler *handlers.RecommendationHandler
	JWT     *helpers.JWTManager
}

func NewRecommendationModule(h *handlers.RecommendationHandler, jwt *helpers.JWTManager) *RecommendationModule {
	return &RecommendationModule{Handler: h, JWT: jwt}
}

func (m *RecommendationModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/recommendations")
	auth.Use(
		middleware.Auth(container.GetRedis(), m.JWT),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	auth.GET("/:kind", m.Handler.List)
}
