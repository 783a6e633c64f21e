package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
)

type InviteKeyStore struct {
	pool *pgxpool.Pool
}

func NewInviteKeyStore(pool *pgxpool.Pool) *InviteKeyStore {
	return &InviteKeyStore{pool: pool}
}

const inviteKeyColumns = `id, key, creator_id, room_id, only_for_user_id, valid_due, give_admin`

func scanInviteKey(row pgx.Row) (*models.InviteKey, error) {
	var k models.InviteKey
	err := row.Scan(&k.ID, &k.Key, &k.CreatorID, &k.RoomID, &k.OnlyForUserID, &k.ValidDue, &k.GiveAdmin)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *InviteKeyStore) Create(ctx context.Context, key *models.InviteKey) (*models.InviteKey, error) {
	query := `
		INSERT INTO invite_keys (key, creator_id, room_id, only_for_user_id, valid_due, give_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + inviteKeyColumns

	created, err := scanInviteKey(s.pool.QueryRow(ctx, query,
		key.Key, key.CreatorID, key.RoomID, key.OnlyForUserID, key.ValidDue, key.GiveAdmin))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrTokenCollision
		}
		return nil, fmt.Errorf("insert invite key: %w", err)
	}
	return created, nil
}

// GetValid is the validity gate: the WHERE clause folds "exists", "not
// expired" and "room still accepts joins" into one lookup, so an expired
// key, a missing key and a key for a deactivated room are all
// indistinguishable at this layer. Expired rows are left in place, inert.
func (s *InviteKeyStore) GetValid(ctx context.Context, token string, now time.Time) (*models.InviteKey, error) {
	query := `
		SELECT k.id, k.key, k.creator_id, k.room_id, k.only_for_user_id, k.valid_due, k.give_admin
		FROM invite_keys k
		JOIN rooms r ON r.id = k.room_id
		WHERE k.key = $1 AND k.valid_due >= $2 AND r.active`

	key, err := scanInviteKey(s.pool.QueryRow(ctx, query, token, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite key: %w", err)
	}
	return key, nil
}

// Delete is delete-if-exists: two redeemers racing to consume the same
// admin-granting key must both come away without error, so zero rows
// affected is success here.
func (s *InviteKeyStore) Delete(ctx context.Context, keyID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM invite_keys WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("delete invite key: %w", err)
	}
	return nil
}

// DeleteByID is the strict variant for the staff endpoint, where deleting
// an absent key should surface as 404.
func (s *InviteKeyStore) DeleteByID(ctx context.Context, keyID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invite_keys WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("delete invite key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *InviteKeyStore) ListAll(ctx context.Context) ([]models.InviteKey, error) {
	query := `SELECT ` + inviteKeyColumns + ` FROM invite_keys ORDER BY id DESC`
	return s.listKeys(ctx, query)
}

// ListVisibleTo implements the non-staff listing rule: keys the user
// created, plus keys for rooms the user administers.
func (s *InviteKeyStore) ListVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.InviteKey, error) {
	query := `
		SELECT DISTINCT k.id, k.key, k.creator_id, k.room_id, k.only_for_user_id, k.valid_due, k.give_admin
		FROM invite_keys k
		LEFT JOIN room_admins a ON a.room_id = k.room_id AND a.user_id = $1
		WHERE k.creator_id = $1 OR a.user_id IS NOT NULL
		ORDER BY k.id DESC`
	return s.listKeys(ctx, query, userID)
}

func (s *InviteKeyStore) listKeys(ctx context.Context, query string, args ...any) ([]models.InviteKey, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invite keys: %w", err)
	}
	defer rows.Close()

	keys := make([]models.InviteKey, 0)
	for rows.Next() {
		var k models.InviteKey
		if err := rows.Scan(&k.ID, &k.Key, &k.CreatorID, &k.RoomID, &k.OnlyForUserID, &k.ValidDue, &k.GiveAdmin); err != nil {
			return nil, fmt.Errorf("scan invite key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invite keys: %w", err)
	}

	return keys, nil
}
