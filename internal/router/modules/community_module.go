package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// CommunityModule serves groups, events and group chat. Chat is nil when
// disabled.
type CommunityModule struct {
	Handler *handlers.CommunityHandler
	Chat    *handlers.ChatHandler
	JWT     *helpers.JWTManager
}

func NewCommunityModule(h *handlers.CommunityHandler, chat *handlers.ChatHandler, jwt *helpers.JWTManager) *CommunityModule {
	return &CommunityModule{Handler: h, Chat: chat, JWT: jwt}
}

func (m *CommunityModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/groups", rl, m.Handler.ListGroups)
	rg.GET("/events", rl, m.Handler.ListEvents)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	{
		writes := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByUserID(), nil)
		auth.POST("/groups", writes, m.Handler.CreateGroup)
		auth.POST("/groups/:id/members", writes, m.Handler.JoinGroup)
		auth.DELETE("/groups/:id/members", writes, m.Handler.LeaveGroup)
		auth.POST("/events", writes, m.Handler.CreateEvent)
		auth.POST("/events/:id/rsvp", writes, m.Handler.RSVP)
		if m.Chat != nil {
			auth.GET("/groups/:id/chat", m.Chat.Connect)
		}
	}
}
