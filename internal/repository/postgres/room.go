package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
// Both the room name and the invite key token rely on it.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

const roomColumns = `id, name, active, creator_id, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.Name, &r.Active, &r.CreatorID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOrCreate resolves a room name to a row, creating the row if absent.
//
// Concurrency: INSERT ... ON CONFLICT (name) DO NOTHING means k racing
// callers produce exactly one row. Losers insert nothing (RETURNING
// yields no row) and fall through to the SELECT, observing the winner's
// room. No advisory locks, no retry loop; the unique constraint is the
// whole synchronization story.
func (s *RoomStore) GetOrCreate(ctx context.Context, name string) (*models.Room, error) {
	query := `
		INSERT INTO rooms (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING ` + roomColumns

	room, err := scanRoom(s.pool.QueryRow(ctx, query, name))
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	// Conflict path: the row already exists, read it.
	room, err = s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if room == nil {
		// Created-then-deleted between our statements. Vanishingly rare;
		// surface as not found and let the caller retry.
		return nil, repository.ErrNotFound
	}
	return room, nil
}

func (s *RoomStore) Create(ctx context.Context, name string, creatorID uuid.UUID) (*models.Room, error) {
	query := `
		INSERT INTO rooms (name, creator_id)
		VALUES ($1, $2)
		RETURNING ` + roomColumns

	room, err := scanRoom(s.pool.QueryRow(ctx, query, name, creatorID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateName
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}

func (s *RoomStore) GetByName(ctx context.Context, name string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE name = $1`

	room, err := scanRoom(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (s *RoomStore) GetByID(ctx context.Context, roomID int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(s.pool.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// SetActive is the soft-deactivation path: rooms are never hard-deleted
// in normal operation, active=false just closes them to new joins.
func (s *RoomStore) SetActive(ctx context.Context, roomID int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET active = $2 WHERE id = $1`, roomID, active)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *RoomStore) ListAll(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY created_at DESC`
	return s.listRooms(ctx, query)
}

// ListForMember backs the general room listing: non-staff users see the
// rooms they belong to.
func (s *RoomStore) ListForMember(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	query := `
		SELECT r.id, r.name, r.active, r.creator_id, r.created_at
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC`
	return s.listRooms(ctx, query, userID)
}

// ListForAdmin backs the management listing: rooms the user administers.
// Kept as a separate query contract from ListForMember on purpose.
func (s *RoomStore) ListForAdmin(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	query := `
		SELECT r.id, r.name, r.active, r.creator_id, r.created_at
		FROM rooms r
		JOIN room_admins a ON a.room_id = r.id
		WHERE a.user_id = $1
		ORDER BY r.created_at DESC`
	return s.listRooms(ctx, query, userID)
}

func (s *RoomStore) listRooms(ctx context.Context, query string, args ...any) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		var r models.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Active, &r.CreatorID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return rooms, nil
}
