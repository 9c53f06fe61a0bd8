package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

const CtxUserIDKey = "userID"

// accessToken reads the access cookie, falling back to a bearer header for
// clients that cannot send cookies (websocket libraries, CLIs).
func accessToken(c *gin.Context) string {
	if token, err := c.Cookie(helpers.AccessCookie); err == nil && token != "" {
		return token
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// OptionalAuth sets userID when a valid access token is present and never
// rejects the request.
func OptionalAuth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := accessToken(c); token != "" {
			if claims, err := jwt.ParseAccessToken(token); err == nil {
				c.Set(CtxUserIDKey, claims.UserID)
			}
		}
		c.Next()
	}
}
