// Package handler exposes the dev OTP store over HTTP (GET /api/dev/otp).
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tm65023/Story/internal/devotp"
	"github.com/tm65023/Story/internal/otp/domain"
)

const devOTPNote = "DEV MODE ONLY"

// Handler serves codes from the dev store. Only registered when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler that reads codes from the given store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/dev/otp", h.GetOTP)
}

// GetOTP returns the last code issued for ?email= (and optional ?purpose=). 404 if missing or expired.
func (h *Handler) GetOTP(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email is required"})
		return
	}
	purpose := domain.Purpose(strings.TrimSpace(c.Query("purpose")))
	if purpose != "" && !purpose.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "purpose must be enrollment or reauthentication"})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), email, purpose)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "OTP not found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "note": devOTPNote})
}
