package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pwasik/parley/internal/hub"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository"
	"go.uber.org/zap"
)

// WSHandler upgrades authenticated requests into live room sessions.
type WSHandler struct {
	hub      *hub.Hub
	registry *registry.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(h *hub.Hub, reg *registry.Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      h,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the token, not the Origin header:
			// an upgrade without a valid JWT never reaches this handler.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /ws/:room.
//
// Membership is checked BEFORE the group join: an existing room admits
// only its members; a brand-new room name is created on first access
// with the connecting user as member and admin. Authorization failures
// are answered over plain HTTP; the socket is only upgraded once the
// user is allowed into the group, so unauthorized clients never see a
// single broadcast frame.
func (h *WSHandler) Connect(c *gin.Context) {
	roomName := c.Param("room")
	userID := middleware.GetUserID(c)

	room, err := h.registry.EnsureAccess(c.Request.Context(), roomName, userID)
	if err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "you do not have access to this room"})
			return
		}
		h.logger.Error("failed to resolve room", zap.String("room", roomName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewClient(h.hub, conn, room.ID, room.Name, userID, middleware.GetUsername(c))
	if err := client.Start(c.Request.Context()); err != nil {
		h.logger.Error("failed to start session", zap.String("room", roomName), zap.Error(err))
		conn.Close()
		return
	}
}
