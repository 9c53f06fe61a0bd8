package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

type EmailModule struct {
	Handler *handlers.EmailHandler
	JWT     *helpers.JWTManager
}

func NewEmailModule(h *handlers.EmailHandler, jwt *helpers.JWTManager) *EmailModule {
	return &EmailModule{Handler: h, JWT: jwt}
}

func (m *EmailModule) Register(rg *gin.RouterGroup) {
	// digests are expensive to build; a few per hour is plenty
	rg.POST("/recommendations/digest",
		middleware.Auth(container.GetRedis(), m.JWT),
		middleware.RateLimit(container.GetRedis(), 3, time.Hour, middleware.KeyByUserID(), nil),
		m.Handler.Digest,
	)
}
