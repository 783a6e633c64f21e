package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pwasik/parley/internal/models"
)

// MembershipStore manages the room_members and room_admins join tables.
// Member and admin are independent sets with identical row shape, so one
// store drives both through a table-name switch on private helpers.
type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

// ON CONFLICT DO NOTHING: adding an existing member is a no-op, not an
// error. Redeeming a multi-use invite key twice, or two racing redeemers
// of the same key, must both succeed; idempotent membership add is what
// makes that safe without application-level locking.
func (s *MembershipStore) add(ctx context.Context, table string, roomID int64, userID uuid.UUID) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`, table)

	_, err := s.pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("add to %s: %w", table, err)
	}
	return nil
}

// DELETE is naturally idempotent: zero rows removed is not an error.
func (s *MembershipStore) remove(ctx context.Context, table string, roomID int64, userID uuid.UUID) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE room_id = $1 AND user_id = $2`, table)

	_, err := s.pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", table, err)
	}
	return nil
}

// SELECT EXISTS stops at the first matching row, the right shape for a
// hot-path check that runs before every WS connect and message send.
func (s *MembershipStore) exists(ctx context.Context, table string, roomID int64, userID uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE room_id = $1 AND user_id = $2
		)`, table)

	var exists bool
	err := s.pool.QueryRow(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return exists, nil
}

func (s *MembershipStore) AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.add(ctx, "room_members", roomID, userID)
}

func (s *MembershipStore) RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.remove(ctx, "room_members", roomID, userID)
}

func (s *MembershipStore) AddAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.add(ctx, "room_admins", roomID, userID)
}

func (s *MembershipStore) RemoveAdmin(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.remove(ctx, "room_admins", roomID, userID)
}

func (s *MembershipStore) IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return s.exists(ctx, "room_members", roomID, userID)
}

func (s *MembershipStore) IsAdmin(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return s.exists(ctx, "room_admins", roomID, userID)
}

func (s *MembershipStore) ListMembers(ctx context.Context, roomID int64) ([]models.RoomMember, error) {
	query := `
		SELECT room_id, user_id
		FROM room_members
		WHERE room_id = $1`

	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.RoomMember, 0)
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}
