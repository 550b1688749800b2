package postgres

import (
	"context"
	"database/sql"

	"syncroom/internal/core/domain"

	"github.com/google/uuid"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Save(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		return domain.ErrInvalidMessage
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (
			id, room_id, author_id, author_name, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		msg.ID,
		msg.RoomID,
		msg.AuthorID,
		msg.AuthorName,
		msg.Body,
		msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, room_id, author_id, author_name, body, created_at
		FROM (
			SELECT id, room_id, author_id, author_name, body, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.AuthorID,
			&m.AuthorName,
			&m.Body,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
