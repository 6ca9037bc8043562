package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/session"
)

// SessionHandler exposes the session lifecycle and preference endpoints.
type SessionHandler struct {
	controller *session.Controller
	logger     *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(controller *session.Controller, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{controller: controller, logger: logger}
}

// Login handles POST /api/v1/session/login. The client performs the actual
// sign-in against Firebase and hands the resulting ID token to the engine;
// the session transition itself runs through the identity subscription.
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	ident, err := h.controller.SignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		h.logger.Warn("Sign-in failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session established", Data: ident})
}

// Logout handles POST /api/v1/session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.controller.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn("Sign-out failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to sign out", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Session ended"})
}

// GetSession handles GET /api/v1/session and returns the synchronous state
// snapshot.
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Snapshot())
}

// SetTheme handles PUT /api/v1/session/theme. The change is applied locally
// before persistence completes, so the response reflects the new value
// immediately.
func (h *SessionHandler) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	h.controller.SetTheme(req.Theme)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Theme updated"})
}

// SetLanguage handles PUT /api/v1/session/language.
func (h *SessionHandler) SetLanguage(c *gin.Context) {
	var req LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	h.controller.SetLanguage(req.Language)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Language updated"})
}

// RefreshSubscription handles POST /api/v1/session/refresh, typically called
// after a payment confirmation so the entitlement reflects the new record.
func (h *SessionHandler) RefreshSubscription(c *gin.Context) {
	ent, err := h.controller.RefreshSubscription(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "No active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to refresh subscription", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ent)
}

// SetVisibility handles POST /api/v1/presence/visibility.
func (h *SessionHandler) SetVisibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	h.controller.SetVisibility(c.Request.Context(), *req.Visible)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Visibility recorded"})
}

// SignalTeardown handles POST /api/v1/presence/teardown. The host calls this
// from its unload hooks; it always succeeds from the caller's perspective.
func (h *SessionHandler) SignalTeardown(c *gin.Context) {
	h.controller.SignalTeardown(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "Teardown signal accepted"})
}
