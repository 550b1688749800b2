package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"syncroom/internal/core/domain"
)

type WhiteboardRepo struct {
	db *sql.DB
}

func NewWhiteboardRepo(db *sql.DB) *WhiteboardRepo {
	return &WhiteboardRepo{db: db}
}

func (r *WhiteboardRepo) Get(ctx context.Context, roomID string) (json.RawMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	exec := GetExecutor(ctx, r.db)
	var elements []byte
	err := exec.QueryRowContext(ctx, `
		SELECT elements
		FROM whiteboards
		WHERE room_id = $1
	`, roomID).Scan(&elements)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return elements, nil
}

func (r *WhiteboardRepo) Put(ctx context.Context, roomID string, elements json.RawMessage) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO whiteboards (room_id, elements, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (room_id)
		DO UPDATE SET elements = EXCLUDED.elements, updated_at = now()
	`, roomID, []byte(elements))
	return err
}
