package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// UserModule wires profile, social graph and feed routes. All are protected.
type UserModule struct {
	Users *handlers.UserHandler
	Feed  *handlers.FeedHandler
	JWT   *helpers.JWTManager
}

func NewUserModule(users *handlers.UserHandler, feed *handlers.FeedHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Users: users, Feed: feed, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	// Apply a softer per-IP limiter to all protected routes
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Users.GetProfile)
		auth.PUT("/profile", m.Users.UpdateProfile)
		auth.POST("/profile/avatar", m.Users.UploadAvatar)

		auth.POST("/users/:id/follow", m.Feed.Follow)
		auth.DELETE("/users/:id/follow", m.Feed.Unfollow)

		auth.GET("/feed", m.Feed.Feed)
		auth.POST("/posts", m.Feed.CreatePost)
		auth.GET("/posts/:id", m.Feed.GetPost)
		auth.GET("/posts/:id/comments", m.Feed.ListComments)
		auth.POST("/posts/:id/comments", m.Feed.AddComment)
	}
}
