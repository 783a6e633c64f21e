// Package registry is the room membership core: it owns room lifecycle,
// the member/admin sets, and the visibility rules for room listings.
// Authorization is a capability check the boundary runs before calling
// the mutating operations; the registry itself never inspects tokens.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
)

type Registry struct {
	rooms   repository.RoomRepository
	members repository.MembershipRepository
}

func New(rooms repository.RoomRepository, members repository.MembershipRepository) *Registry {
	return &Registry{rooms: rooms, members: members}
}

// MaxRoomNameLen mirrors the varchar(50) column. Checked here so callers
// get a clean error instead of a driver truncation failure.
const MaxRoomNameLen = 50

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("room name must not be empty")
	}
	if len(name) > MaxRoomNameLen {
		return fmt.Errorf("room name exceeds %d characters", MaxRoomNameLen)
	}
	return nil
}

// GetOrCreate resolves a room name, creating the room on first access.
// A room created this way has no creator and empty member/admin sets;
// first-access creation happens on the realtime path where the connecting
// user is enrolled separately.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (*models.Room, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return r.rooms.GetOrCreate(ctx, name)
}

// Create makes a room explicitly. The creator becomes both member and
// admin. Returns repository.ErrDuplicateName when the name is taken.
func (r *Registry) Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Room, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	room, err := r.rooms.Create(ctx, name, creatorID)
	if err != nil {
		return nil, err
	}
	if err := r.members.AddMember(ctx, room.ID, creatorID); err != nil {
		return nil, err
	}
	if err := r.members.AddAdmin(ctx, room.ID, creatorID); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *Registry) GetByName(ctx context.Context, name string) (*models.Room, error) {
	return r.rooms.GetByName(ctx, name)
}

func (r *Registry) GetByID(ctx context.Context, roomID int64) (*models.Room, error) {
	return r.rooms.GetByID(ctx, roomID)
}

// Deactivate is the intended removal path: the room stops accepting new
// joins but its history and membership stay intact.
func (r *Registry) Deactivate(ctx context.Context, roomID int64) error {
	return r.rooms.SetActive(ctx, roomID, false)
}

func (r *Registry) Activate(ctx context.Context, roomID int64) error {
	return r.rooms.SetActive(ctx, roomID, true)
}

// Set operations are idempotent pass-throughs; the join tables absorb
// duplicate adds and missing removes.

func (r *Registry) AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return r.members.AddMember(ctx, roomID, userID)
}

func (r *Registry) RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return r.members.RemoveMember(ctx, roomID, userID)
}

func (r *Registry) AddAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return r.members.AddAdmin(ctx, roomID, userID)
}

// RemoveAdmin can leave a room with zero admins. That room is still
// usable; only staff can then manage it or mint new invite keys.
func (r *Registry) RemoveAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return r.members.RemoveAdmin(ctx, roomID, userID)
}

func (r *Registry) IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return r.members.IsMember(ctx, roomID, userID)
}

func (r *Registry) IsAdmin(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return r.members.IsAdmin(ctx, roomID, userID)
}

// ListForMember is the general listing contract: staff sees every room,
// everyone else sees the rooms they are a member of.
func (r *Registry) ListForMember(ctx context.Context, userID uuid.UUID, staff bool) ([]models.Room, error) {
	if staff {
		return r.rooms.ListAll(ctx)
	}
	return r.rooms.ListForMember(ctx, userID)
}

// ListForAdmin is the management listing contract: staff sees every
// room, everyone else sees the rooms they administer. Kept separate from
// ListForMember on purpose; the two visibility rules serve different
// screens and must not be merged.
func (r *Registry) ListForAdmin(ctx context.Context, userID uuid.UUID, staff bool) ([]models.Room, error) {
	if staff {
		return r.rooms.ListAll(ctx)
	}
	return r.rooms.ListForAdmin(ctx, userID)
}

// EnsureAccess is the realtime connect rule: an existing room admits
// only its members; a room name nobody has used yet is created on first
// access with the accessing user as member and admin.
//
// Returns repository.ErrForbidden for a non-member of an existing room;
// the hub checks membership before a connection joins a broadcast group.
func (r *Registry) EnsureAccess(ctx context.Context, name string, userID uuid.UUID) (*models.Room, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	room, err := r.rooms.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if room == nil {
		room, err = r.Create(ctx, name, userID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, repository.ErrDuplicateName) {
			return nil, err
		}
		// Lost a creation race; fall through to the winner's room and
		// the ordinary membership check.
		room, err = r.rooms.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, repository.ErrNotFound
		}
	}

	member, err := r.members.IsMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, repository.ErrForbidden
	}
	return room, nil
}

// CanManage is the static capability rule for room mutations and invite
// issuance: staff, or admin of the room in question. Handlers evaluate
// it before calling into the core; nothing below this line checks again.
func (r *Registry) CanManage(ctx context.Context, roomID int64, userID uuid.UUID, staff bool) (bool, error) {
	if staff {
		return true, nil
	}
	return r.members.IsAdmin(ctx, roomID, userID)
}
