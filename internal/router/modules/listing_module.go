package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// ListingModule serves the housing marketplace and subscription pricing.
type ListingModule struct {
	Homes   *handlers.ListingHandler
	Pricing *handlers.PricingHandler
	JWT     *helpers.JWTManager
}

func NewListingModule(homes *handlers.ListingHandler, pricing *handlers.PricingHandler, jwt *helpers.JWTManager) *ListingModule {
	return &ListingModule{Homes: homes, Pricing: pricing, JWT: jwt}
}

func (m *ListingModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/pricing/tiers", rl, m.Pricing.Tiers)
	rg.GET("/homes", rl, m.Homes.ListHomes)
	rg.GET("/homes/:id", rl, m.Homes.GetHome)

	auth := rg.Group("/homes")
	auth.Use(
		middleware.Auth(container.GetRedis(), m.JWT),
		middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByUserID(), nil),
	)
	auth.POST("", m.Homes.CreateHome)
	auth.POST("/:id/photos", m.Homes.AddPhoto)
}
