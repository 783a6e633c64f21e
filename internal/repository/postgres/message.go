package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pwasik/parley/internal/models"
	"github.com/pwasik/parley/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create appends one message to the room's log. authorID may be nil;
// the author column is a weak reference that survives user deletion and
// allows system messages.
func (s *MessageStore) Create(ctx context.Context, roomID int64, authorID *uuid.UUID, body string) (*models.Message, error) {
	// Messages use bigserial, so Postgres assigns the ID; RETURNING
	// gives it back along with the server-side timestamp.
	query := `
		INSERT INTO messages (room_id, author_id, body, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, room_id, author_id, body, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, roomID, authorID, body).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.AuthorID,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListByRoom returns messages newest first with offset/limit paging.
//
// Why ORDER BY id DESC instead of created_at DESC?
//   - id (bigserial) is monotonically increasing, same order as the
//     append order the hub observed, but an integer sort, and it breaks
//     ties that same-millisecond timestamps cannot.
func (s *MessageStore) ListByRoom(ctx context.Context, roomID int64, offset, limit int) ([]models.Message, error) {
	query := `
		SELECT id, room_id, author_id, body, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY id DESC
		OFFSET $2
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, roomID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Delete removes one message. There is no update path; messages are
// immutable; staff deletion is the only mutation after append.
func (s *MessageStore) Delete(ctx context.Context, messageID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
