// Package invite implements the invite key lifecycle: issuing random
// time-limited tokens and redeeming them for room membership and,
// optionally, admin rights.
package invite

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
)

const (
	// Tokens are 20 alphanumeric characters. They only need to be
	// unguessable enough to not collide and not be enumerated within the
	// two-hour window; not cryptographic key material.
	tokenLength  = 20
	tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// KeyTTL is how long an issued key stays redeemable.
	KeyTTL = 2 * time.Hour

	// maxIssueRetries bounds the retry loop on token collisions. With a
	// 62^20 token space a single collision is already astronomically
	// unlikely; three retries is plenty.
	maxIssueRetries = 3
)

func newToken() string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenCharset[rand.IntN(len(tokenCharset))]
	}
	return string(b)
}

type Engine struct {
	keys    repository.InviteKeyRepository
	members repository.MembershipRepository
}

func NewEngine(keys repository.InviteKeyRepository, members repository.MembershipRepository) *Engine {
	return &Engine{keys: keys, members: members}
}

// Issue mints a key for a room. The caller must already hold the
// staff-or-room-admin capability; the engine does not re-check it.
// onlyFor, when non-nil, scopes the key to a single redeemer; giveAdmin
// additionally grants the admin role on redemption.
func (e *Engine) Issue(ctx context.Context, roomID int64, creatorID uuid.UUID, onlyFor *uuid.UUID, giveAdmin bool, now time.Time) (*models.InviteKey, error) {
	key := &models.InviteKey{
		CreatorID:     &creatorID,
		RoomID:        roomID,
		OnlyForUserID: onlyFor,
		ValidDue:      now.Add(KeyTTL),
		GiveAdmin:     giveAdmin,
	}

	for attempt := 0; attempt < maxIssueRetries; attempt++ {
		key.Key = newToken()
		created, err := e.keys.Create(ctx, key)
		if err == nil {
			return created, nil
		}
		if errors.Is(err, repository.ErrTokenCollision) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("issue invite key: token collisions on %d attempts", maxIssueRetries)
}

// Redemption is the ordered rule set for consuming a key. Consumption is
// asymmetric on purpose; this matches the behavior users of the
// deployed system rely on, so do not "fix" it to always-single-use:
//
//   - user-scoped key: single use, consumed by the scoped user.
//   - open key that grants admin: single use, consumed by first redeemer.
//   - open key, no admin grant: multi-use until expiry.

// Result reports what a successful redemption did.
type Result struct {
	RoomID       int64
	GrantedAdmin bool
	KeyConsumed  bool
}

// Redeem validates the token and applies the membership mutations.
//
// Failure modes: repository.ErrInvalidOrExpiredKey when the token is
// unknown or past expiry (callers cannot tell which), and
// repository.ErrWrongUser when a user-scoped key is presented by someone
// else; in that case the key is left completely untouched.
//
// Mutations are applied before the key is deleted, so a crash between
// the two leaves an extra usable key rather than a lost membership. The
// final delete is delete-if-exists: two redeemers racing an
// admin-granting key both succeed, one of them deleting zero rows.
func (e *Engine) Redeem(ctx context.Context, token string, userID uuid.UUID, now time.Time) (*Result, error) {
	key, err := e.keys.GetValid(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, repository.ErrInvalidOrExpiredKey
	}

	consume := false

	if key.OnlyForUserID != nil {
		if *key.OnlyForUserID != userID {
			return nil, repository.ErrWrongUser
		}
		// Scoped to us: membership plus consumption.
		consume = true
	}

	if err := e.members.AddMember(ctx, key.RoomID, userID); err != nil {
		return nil, err
	}

	if key.GiveAdmin {
		if err := e.members.AddAdmin(ctx, key.RoomID, userID); err != nil {
			return nil, err
		}
		consume = true
	}

	if consume {
		if err := e.keys.Delete(ctx, key.ID); err != nil {
			return nil, err
		}
	}

	return &Result{
		RoomID:       key.RoomID,
		GrantedAdmin: key.GiveAdmin,
		KeyConsumed:  consume,
	}, nil
}

// List applies the visibility rule for key listings: staff sees all keys,
// everyone else sees keys they created or keys for rooms they administer.
func (e *Engine) List(ctx context.Context, userID uuid.UUID, staff bool) ([]models.InviteKey, error) {
	if staff {
		return e.keys.ListAll(ctx)
	}
	return e.keys.ListVisibleTo(ctx, userID)
}

// Delete removes a key outright. Staff capability, checked at the
// boundary. Returns repository.ErrNotFound for an unknown ID.
func (e *Engine) Delete(ctx context.Context, keyID int64) error {
	return e.keys.DeleteByID(ctx, keyID)
}
