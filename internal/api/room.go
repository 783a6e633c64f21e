package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository"
	"go.uber.org/zap"
)

// RoomHandler exposes the Room Registry over HTTP. The registry itself
// performs no authorization; this handler runs the capability checks
// (staff-or-room-admin) before any mutation.
type RoomHandler struct {
	registry *registry.Registry
	logger   *zap.Logger
}

func NewRoomHandler(reg *registry.Registry, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{registry: reg, logger: logger}
}

// createRoomRequest deliberately exposes only the name: id, active,
// creator, and timestamps are server-owned.
type createRoomRequest struct {
	Name string `json:"name" binding:"required,max=50"`
}

// Create handles POST /v1/rooms
func (h *RoomHandler) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.registry.Create(c.Request.Context(), req.Name, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			c.JSON(http.StatusConflict, gin.H{"error": "room name already taken"})
			return
		}
		h.logger.Error("failed to create room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// List handles GET /v1/rooms: the general listing. Staff sees every
// room; everyone else sees the rooms they are a member of.
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.registry.ListForMember(c.Request.Context(), middleware.GetUserID(c), middleware.IsStaff(c))
	if err != nil {
		h.logger.Error("failed to list rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// ListManaged handles GET /v1/rooms/manage: the management listing.
// Staff sees every room; everyone else sees the rooms they administer.
// A distinct contract from List, never merged.
func (h *RoomHandler) ListManaged(c *gin.Context) {
	rooms, err := h.registry.ListForAdmin(c.Request.Context(), middleware.GetUserID(c), middleware.IsStaff(c))
	if err != nil {
		h.logger.Error("failed to list managed rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}

	c.JSON(http.StatusOK, rooms)
}

type updateRoomRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// Update handles PATCH /v1/rooms/:id: soft-deactivation (and
// reactivation), the intended removal path. Capability: staff or admin
// of this room.
func (h *RoomHandler) Update(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireManage(c, roomID) {
		return
	}

	if *req.Active {
		err = h.registry.Activate(c.Request.Context(), roomID)
	} else {
		err = h.registry.Deactivate(c.Request.Context(), roomID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		h.logger.Error("failed to update room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update room"})
		return
	}

	c.Status(http.StatusNoContent)
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// AddMember handles POST /v1/rooms/:id/members. Capability: staff or
// room admin. Idempotent; re-adding an existing member succeeds.
func (h *RoomHandler) AddMember(c *gin.Context) {
	h.mutateSet(c, h.registry.AddMember)
}

// RemoveMember handles DELETE /v1/rooms/:id/members.
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	h.mutateSet(c, h.registry.RemoveMember)
}

// AddAdmin handles POST /v1/rooms/:id/admins.
func (h *RoomHandler) AddAdmin(c *gin.Context) {
	h.mutateSet(c, h.registry.AddAdmin)
}

// RemoveAdmin handles DELETE /v1/rooms/:id/admins. Removing the last
// admin is allowed; the room then belongs to staff alone.
func (h *RoomHandler) RemoveAdmin(c *gin.Context) {
	h.mutateSet(c, h.registry.RemoveAdmin)
}

func (h *RoomHandler) mutateSet(c *gin.Context, op func(ctx context.Context, roomID int64, userID uuid.UUID) error) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireManage(c, roomID) {
		return
	}

	if err := op(c.Request.Context(), roomID, req.UserID); err != nil {
		h.logger.Error("failed to update room membership", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update membership"})
		return
	}

	c.Status(http.StatusNoContent)
}

// requireManage enforces the staff-or-room-admin capability. Writes the
// 403 itself and reports whether the handler may proceed.
func (h *RoomHandler) requireManage(c *gin.Context, roomID int64) bool {
	ok, err := h.registry.CanManage(c.Request.Context(), roomID, middleware.GetUserID(c), middleware.IsStaff(c))
	if err != nil {
		h.logger.Error("failed to check room capability", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check permissions"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "room admin or staff capability required"})
		return false
	}
	return true
}
