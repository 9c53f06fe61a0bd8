package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// realIPHeaders are consulted in order; X-Forwarded-For uses its left-most hop.
var realIPHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// RealIP stores the client IP under "real_ip". Forwarding headers are only
// honored when the TCP peer is one of trustedProxies (IPs or CIDRs);
// otherwise the peer address is the client IP. Invalid entries are ignored.
func RealIP(trustedProxies ...string) gin.HandlerFunc {
	trusted := parseNets(trustedProxies)
	return func(c *gin.Context) {
		c.Set("real_ip", realIP(c, trusted))
		c.Next()
	}
}

func parseNets(entries []string) []*net.IPNet {
	var out []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil {
				bits := 8 * net.IPv6len
				if ip.To4() != nil {
					ip, bits = ip.To4(), 8*net.IPv4len
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// peerIP is the TCP peer of the request, never taken from headers.
func peerIP(c *gin.Context) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(c.Request.RemoteAddr)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func realIP(c *gin.Context, trusted []*net.IPNet) string {
	peer := peerIP(c)
	if ip := net.ParseIP(peer); ip == nil || !contains(trusted, ip) {
		return peer
	}
	for _, h := range realIPHeaders {
		v := c.GetHeader(h)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return peer
}
