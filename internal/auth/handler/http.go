// Package handler exposes the passwordless auth flow over HTTP/JSON under /api/auth.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm65023/Story/internal/auth/service"
	otpdomain "github.com/tm65023/Story/internal/otp/domain"
	"github.com/tm65023/Story/internal/server/middleware"
	userdomain "github.com/tm65023/Story/internal/user/domain"
)

// Service is the auth engine as seen by the HTTP layer. *service.AuthService implements it.
type Service interface {
	RequestEnrollment(ctx context.Context, email string) error
	RequestReauthentication(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*service.VerifyResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, userID string) (*userdomain.User, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Handler serves the auth routes.
type Handler struct {
	svc          Service
	cookie       CookieConfig
	exposeErrors bool
	logger       *slog.Logger
}

// NewHandler returns an auth handler. exposeErrors adds the raw error to 5xx bodies (never in production).
func NewHandler(svc Service, cookie CookieConfig, exposeErrors bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cookie: cookie, exposeErrors: exposeErrors, logger: logger}
}

// Register mounts the auth routes on r. requireAuth guards the current-user routes.
func (h *Handler) Register(r gin.IRouter, requireAuth gin.HandlerFunc) {
	g := r.Group("/api/auth")
	g.POST("/signup", h.Signup)
	g.POST("/signup/request", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/login/request", h.Login)
	g.POST("/verify", h.Verify)
	g.POST("/signup/verify", h.Verify)
	g.POST("/login/verify", h.Verify)
	g.POST("/logout", h.Logout)
	g.GET("/me", requireAuth, h.Me)
	g.GET("/user", requireAuth, h.Me)
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	// OTP is accepted for older clients.
	OTP string `json:"otp"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Signup requests an enrollment code.
func (h *Handler) Signup(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.RequestEnrollment(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, "Failed to send verification code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent", "action": "verify"})
}

// Login requests a reauthentication code.
func (h *Handler) Login(c *gin.Context) {
	var req emailRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.RequestReauthentication(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found", "action": "signup"})
			return
		}
		h.fail(c, err, "Failed to send verification code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent", "action": "verify"})
}

// Verify consumes a code and sets the session cookie.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, &req) {
		return
	}
	code := req.Code
	if code == "" {
		code = req.OTP
	}
	res, err := h.svc.VerifyCode(c.Request.Context(), req.Email, code)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email"})
			return
		}
		h.fail(c, err, "Failed to verify code")
		return
	}
	h.setSessionCookie(c, res.Session.Token)
	message := "Login successful"
	if res.Purpose == otpdomain.PurposeEnrollment {
		message = "Signup completed successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"user":    userResponse{ID: res.User.ID, Email: res.User.Email},
	})
}

// Logout destroys the session and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.cookie.Name)
	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		h.fail(c, err, "Failed to logout")
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the signed-in user. Must run behind RequireAuth.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	u, err := h.svc.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.fail(c, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, userResponse{ID: u.ID, Email: u.Email})
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

// fail maps service errors to responses. Unknown errors are 500 with fallback as the message.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
	case errors.Is(err, service.ErrInvalidEmailFormat):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email format"})
	case errors.Is(err, service.ErrInvalidCodeFormat):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Code must be 6 characters"})
	case errors.Is(err, service.ErrAlreadyRegistered):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already registered", "action": "login"})
	case errors.Is(err, service.ErrNotVerified):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email not verified", "action": "signup"})
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired code"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	default:
		h.logger.Error(fallback, "path", c.FullPath(), "error", err)
		body := gin.H{"message": fallback}
		if h.exposeErrors {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.TTL/time.Second), "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
