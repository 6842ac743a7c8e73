package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP stores the caller's IP in the request context for audit logging.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c.Request)
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote address host, or "unknown".
func clientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
