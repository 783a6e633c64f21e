package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository"
	"go.uber.org/zap"
)

type MessageHandler struct {
	repo     repository.MessageRepository
	registry *registry.Registry
	logger   *zap.Logger
}

func NewMessageHandler(repo repository.MessageRepository, reg *registry.Registry, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{repo: repo, registry: reg, logger: logger}
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// List handles GET /v1/rooms/:id/messages?offset=0&limit=50
//
// Newest first; the first page is the most recent history, which is
// what a client replays on connect. Offset/limit paging with a fixed
// default page size, capped so nobody pulls a whole room in one query.
// Readable by room members and staff.
func (h *MessageHandler) List(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.registry.GetByID(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to get room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	if !middleware.IsStaff(c) {
		member, err := h.registry.IsMember(c.Request.Context(), room.ID, middleware.GetUserID(c))
		if err != nil {
			h.logger.Error("failed to check membership", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
			return
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		offset, err = strconv.Atoi(o)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'offset' parameter"})
			return
		}
	}

	limit := defaultPageSize
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	messages, err := h.repo.ListByRoom(c.Request.Context(), room.ID, offset, limit)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// Delete handles DELETE /v1/messages/:id. Staff-only (route is behind
// the StaffOnly middleware); messages have no other mutation path.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		h.logger.Error("failed to delete message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}

	c.Status(http.StatusNoContent)
}
