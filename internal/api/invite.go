package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/invite"
	"github.com/pwasik/parley/internal/middleware"
	"github.com/pwasik/parley/internal/registry"
	"github.com/pwasik/parley/internal/repository"
	"go.uber.org/zap"
)

// InviteHandler exposes the invite key engine. Issuance is gated on the
// staff-or-room-admin capability; redemption is open to any
// authenticated user holding a token.
type InviteHandler struct {
	engine   *invite.Engine
	registry *registry.Registry
	logger   *zap.Logger
}

func NewInviteHandler(engine *invite.Engine, reg *registry.Registry, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{engine: engine, registry: reg, logger: logger}
}

type issueInviteRequest struct {
	RoomID          int64      `json:"room_id" binding:"required"`
	OnlyForThisUser *uuid.UUID `json:"only_for_this_user"`
	GiveAdmin       bool       `json:"give_admin"`
}

// Issue handles POST /v1/invites.
func (h *InviteHandler) Issue(c *gin.Context) {
	var req issueInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	ok, err := h.registry.CanManage(c.Request.Context(), req.RoomID, userID, middleware.IsStaff(c))
	if err != nil {
		h.logger.Error("failed to check room capability", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invite key"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "room admin or staff capability required"})
		return
	}

	key, err := h.engine.Issue(c.Request.Context(), req.RoomID, userID, req.OnlyForThisUser, req.GiveAdmin, time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to issue invite key", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create invite key"})
		return
	}

	c.JSON(http.StatusCreated, key)
}

// Redeem handles POST /v1/invites/:key/redeem.
//
// The two failure modes stay distinguishable on the wire (403 for a
// key scoped to someone else, 400 for invalid/expired/consumed) because
// that is the contract existing clients depend on. The 400 body stays
// vague on purpose: it never confirms whether the token ever existed.
func (h *InviteHandler) Redeem(c *gin.Context) {
	token := c.Param("key")

	result, err := h.engine.Redeem(c.Request.Context(), token, middleware.GetUserID(c), time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWrongUser):
			c.JSON(http.StatusForbidden, gin.H{"msg": "Invite key is valid for another user, not for you."})
		case errors.Is(err, repository.ErrInvalidOrExpiredKey):
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Something went wrong..."})
		default:
			h.logger.Error("failed to redeem invite key", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "Something went wrong..."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": result.RoomID})
}

// List handles GET /v1/invites. Staff sees all keys; everyone else sees
// keys they created plus keys for rooms they administer.
func (h *InviteHandler) List(c *gin.Context) {
	keys, err := h.engine.List(c.Request.Context(), middleware.GetUserID(c), middleware.IsStaff(c))
	if err != nil {
		h.logger.Error("failed to list invite keys", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invite keys"})
		return
	}

	c.JSON(http.StatusOK, keys)
}

// Delete handles DELETE /v1/invites/:id: staff-only explicit removal,
// the one deletion path that is NOT a redemption.
func (h *InviteHandler) Delete(c *gin.Context) {
	keyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite key id"})
		return
	}

	if err := h.engine.Delete(c.Request.Context(), keyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invite key not found"})
			return
		}
		h.logger.Error("failed to delete invite key", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete invite key"})
		return
	}

	c.Status(http.StatusNoContent)
}
