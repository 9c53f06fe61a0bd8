package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/internal/container"
	handlers "github.com/mundotango/mundo-tango-api/internal/interface/http"
	"github.com/mundotango/mundo-tango-api/internal/interface/middleware"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// AuthModule wires session and account routes.
// Public: POST /api/login, POST /api/refresh, POST /api/auth/verify/confirm,
// POST /api/auth/password/forgot, POST /api/auth/password/reset
// Protected: POST /api/logout, POST /api/auth/verify/init
type AuthModule struct {
	Handler  *handlers.UserHandler
	Accounts *handlers.AccountHandler
	JWT      *helpers.JWTManager
}

func NewAuthModule(h *handlers.UserHandler, accounts *handlers.AccountHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, Accounts: accounts, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public with rate limiting
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)   // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil) // 60 req/min per IP

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/logout", middleware.Auth(container.GetRedis(), m.JWT), m.Handler.Logout)

	if m.Accounts == nil {
		return
	}
	// emails and token guesses are both limited per IP
	mailLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Hour, middleware.KeyByIPAndPath(), nil)     // 5 req/hour per IP and route
	tokenLimiter := middleware.RateLimit(container.GetRedis(), 20, time.Minute, middleware.KeyByIPAndPath(), nil) // 20 req/min per IP and route

	auth := rg.Group("/auth")
	auth.POST("/verify/init", middleware.Auth(container.GetRedis(), m.JWT), mailLimiter, m.Accounts.RequestVerification)
	auth.POST("/verify/confirm", tokenLimiter, m.Accounts.ConfirmVerification)
	auth.POST("/password/forgot", mailLimiter, m.Accounts.ForgotPassword)
	auth.POST("/password/reset", tokenLimiter, m.Accounts.ResetPassword)
}
