package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/bookmarks"
	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/internal/session"
)

// BookmarkHandler exposes the bookmark toggle and listing endpoints.
type BookmarkHandler struct {
	controller *session.Controller
	logger     *zap.Logger
}

// NewBookmarkHandler creates a new BookmarkHandler.
func NewBookmarkHandler(controller *session.Controller, logger *zap.Logger) *BookmarkHandler {
	return &BookmarkHandler{controller: controller, logger: logger}
}

// List handles GET /api/v1/bookmarks and returns the merged bookmarked-id
// set for the active session.
func (h *BookmarkHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bookmarkedIds": h.controller.Snapshot().BookmarkedIDs})
}

// Toggle handles POST /api/v1/bookmarks/toggle. The response carries the new
// membership as determined by the store; a failed toggle leaves the session
// state untouched and reports the error.
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	var req ToggleBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	bookmarked, err := h.controller.ToggleBookmark(c.Request.Context(), req.ContentID,
		models.BookmarkMeta{Title: req.Title, PosterURL: req.PosterURL}, req.IsSeries)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "No active session"})
		case errors.Is(err, bookmarks.ErrNotLoaded):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Bookmarks are not loaded yet"})
		default:
			h.logger.Warn("Bookmark toggle failed", zap.String("contentId", req.ContentID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to toggle bookmark", Details: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"contentId": req.ContentID, "bookmarked": bookmarked})
}
