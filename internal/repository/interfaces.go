package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/models"
)

// Why context.Context as the first parameter on every method?
//
//   - It's idiomatic Go for anything that does I/O (DB, Redis, HTTP).
//   - It carries deadlines: if the HTTP request is cancelled (client
//     disconnected), the DB query gets cancelled too. No wasted work.
//   - Rule of thumb: if a function touches the network, it takes ctx.
//
// Why the acting user and the clock appear as explicit arguments instead of
// being read from some ambient request context?
//
//   - Every operation that depends on "who" or "when" takes them as
//     parameters. That makes the invite expiry rules and the capability
//     checks testable with a fixed clock and without an HTTP request.

// RoomRepository owns Room rows and the uniqueness of room names.
type RoomRepository interface {
	// GetOrCreate looks a room up by name, creating it (active, no
	// creator) if absent. Safe under concurrent creators of the same
	// name: the unique constraint guarantees at most one row, and losing
	// racers resolve to a lookup of the winner's row.
	GetOrCreate(ctx context.Context, name string) (*models.Room, error)

	// Create inserts a room with a creator. Returns ErrDuplicateName if
	// the name is taken. Does NOT touch the membership tables; the
	// registry layers the creator's member+admin rows on top.
	Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Room, error)

	// GetByName returns nil, nil if not found.
	GetByName(ctx context.Context, name string) (*models.Room, error)

	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, roomID int64) (*models.Room, error)

	// SetActive flips the soft-deactivation flag. Returns ErrNotFound if
	// the room does not exist.
	SetActive(ctx context.Context, roomID int64, active bool) error

	// ListAll returns every room, newest first. Staff-only listings.
	ListAll(ctx context.Context) ([]models.Room, error)

	// ListForMember returns rooms where the user is in the member set.
	ListForMember(ctx context.Context, userID uuid.UUID) ([]models.Room, error)

	// ListForAdmin returns rooms where the user is in the admin set.
	ListForAdmin(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
}

// MembershipRepository handles the two room↔user join tables. All writes
// are idempotent: adding an existing row or removing a missing one is a
// no-op, not an error.
type MembershipRepository interface {
	AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error
	RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error
	AddAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error
	RemoveAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error

	// IsMember is a hot-path check; called before every WS connect.
	IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error)
	IsAdmin(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error)

	ListMembers(ctx context.Context, roomID int64) ([]models.RoomMember, error)
}

// MessageRepository is the append-only per-room message log.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt
	// populated. authorID may be nil (system message).
	Create(ctx context.Context, roomID int64, authorID *uuid.UUID, body string) (*models.Message, error)

	// ListByRoom returns messages newest first with offset/limit paging.
	// Returns empty slice (not nil) so JSON serializes to [] not null.
	ListByRoom(ctx context.Context, roomID int64, offset, limit int) ([]models.Message, error)

	// Delete removes one message. Staff-only, enforced at the boundary.
	// Returns ErrNotFound when the row does not exist.
	Delete(ctx context.Context, messageID int64) error
}

// InviteKeyRepository persists invite keys. The redemption state machine
// lives in the invite package; this is just storage.
type InviteKeyRepository interface {
	// Create inserts a key. A duplicate token violates the unique
	// constraint and returns ErrTokenCollision; the engine retries with
	// a fresh token.
	Create(ctx context.Context, key *models.InviteKey) (*models.InviteKey, error)

	// GetValid returns the key with this token whose expiry has not
	// passed (valid_due >= now) and whose room is still active.
	// Returns nil, nil when no such row.
	GetValid(ctx context.Context, token string, now time.Time) (*models.InviteKey, error)

	// Delete removes a key if it still exists. Zero rows deleted is not
	// an error; two racing admin-grant redeemers must both succeed.
	Delete(ctx context.Context, keyID int64) error

	// DeleteByID removes a key and reports ErrNotFound when absent.
	// Used by the staff delete endpoint, where "already gone" matters.
	DeleteByID(ctx context.Context, keyID int64) error

	// ListAll returns every key, staff listings.
	ListAll(ctx context.Context) ([]models.InviteKey, error)

	// ListVisibleTo returns keys the user created plus keys for rooms
	// the user administers.
	ListVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.InviteKey, error)
}

// UserRepository handles user data. Owned by the auth boundary; the chat
// core only reads it.
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListAll(ctx context.Context) ([]models.User, error)
}
