package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity issued by the auth layer. The chat core references
// users but never mutates them; the only writer is the login/signup path.
//
// Why uuid.UUID and not string?
//   - Type safety. You can't accidentally pass a token where a user ID
//     is expected, and uuid.Nil is an unambiguous "no user".
//   - time.Time is what pgx naturally scans into from timestamptz, and it
//     JSON-marshals to RFC3339 which frontends universally understand.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	IsStaff      bool      `json:"is_staff"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Room is a named chat channel with separate member and admin sets.
//
// Why int64 for ID (not UUID)?
//   - Rooms are addressed by a unique human-chosen name; the numeric ID
//     only exists for foreign keys and the redemption wire contract,
//     which returns it as a plain integer.
//
// Active gates new joins: a deactivated room is the soft-delete path;
// rooms are never hard-deleted in normal flow.
//
// CreatorID is a weak reference: deleting the user nulls it out, the room
// survives. At creation the creator lands in both the member and admin sets.
type Room struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	CreatorID *uuid.UUID `json:"creator_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RoomMember is one row of a membership join table. The same shape backs
// both room_members and room_admins, and which table a row lives in is what
// distinguishes a member from an admin, not a role column.
type RoomMember struct {
	RoomID int64     `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

// Message is a single chat message in a room.
//
// Messages are the highest-volume table, so they use bigserial:
// smaller than a UUID, naturally ordered (higher ID = newer), and
// B-tree friendly. Messages only ever enter through this service, so a
// single sequence is fine.
//
// AuthorID is nullable: deleting a user keeps their messages with the
// author nulled out. Body may be the empty string but never absent.
// Messages are immutable once created; only staff may delete them.
type Message struct {
	ID        int64      `json:"id"`
	RoomID    int64      `json:"room_id"`
	AuthorID  *uuid.UUID `json:"author_id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

// InviteKey grants room membership (and optionally admin rights) to
// whoever redeems it before it expires.
//
// Key is a random 20-character alphanumeric token, globally unique.
// OnlyForUserID, when set, restricts redemption to that single user.
// GiveAdmin additionally adds the redeemer to the room's admin set.
//
// Consumption policy (intentional, preserved from the deployed system):
// a user-scoped key is always single-use; an open key that grants admin
// is single-use; an open key with no admin grant stays redeemable by
// anyone until ValidDue passes. Expired keys are not purged, just
// rejected at validation time.
type InviteKey struct {
	ID            int64      `json:"id"`
	Key           string     `json:"key"`
	CreatorID     *uuid.UUID `json:"creator_id"`
	RoomID        int64      `json:"room_id"`
	OnlyForUserID *uuid.UUID `json:"only_for_this_user,omitempty"`
	ValidDue      time.Time  `json:"valid_due"`
	GiveAdmin     bool       `json:"give_admin"`
}
