// Package handler serves liveness and readiness probes for load balancers and Kubernetes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Pinger checks database connectivity. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SessionChecker checks the session store. *session.Binder implements it.
type SessionChecker interface {
	Ping(ctx context.Context) error
}

// Handler serves /healthz and /readyz.
type Handler struct {
	pinger   Pinger
	sessions SessionChecker
}

// NewHandler returns a health handler. Either dependency may be nil, in which case it is not checked.
func NewHandler(pinger Pinger, sessions SessionChecker) *Handler {
	return &Handler{pinger: pinger, sessions: sessions}
}

// Register mounts the probes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live reports that the process is serving.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 503 when the database or the session store cannot be reached.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "database"})
			return
		}
	}
	if h.sessions != nil {
		if err := h.sessions.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "sessions"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
