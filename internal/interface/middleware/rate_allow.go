package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// AllowPrivateIP reports true for loopback and private-range clients. The
// client IP is the TCP peer unless RealIP was configured with a trusted
// proxy that forwarded the request.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		parsed := net.ParseIP(ipFromCtx(c))
		if parsed == nil {
			return false
		}
		// 10.0.0.0/8, 172.16/12, 192.168/16, loopback
		return parsed.IsLoopback() || parsed.IsPrivate()
	}
}

// RequireAllow rejects requests for which allow returns false. Admin routes
// use it with AllowPrivateIP so they are reachable only from inside the
// deployment network.
func RequireAllow(allow AllowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allow == nil || !allow(c) {
			response.Error[any](c, http.StatusForbidden, "forbidden", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
