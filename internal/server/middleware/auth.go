package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	sessiondomain "github.com/tm65023/Story/internal/session/domain"
)

// SessionResolver maps a session cookie value to a live session. *session.Binder implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*sessiondomain.Session, error)
}

// RequireAuth returns middleware that resolves the session cookie and sets user_id and session_id
// in the request context. Requests without a live session get 401.
func RequireAuth(resolver SessionResolver, cookieName string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		sess, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.Error("resolve session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to resolve session"})
			return
		}
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), sess.UserID, sess.ID))
		c.Next()
	}
}
