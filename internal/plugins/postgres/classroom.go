package postgres

import (
	"context"
	"database/sql"

	"syncroom/internal/core/domain"
)

// ClassroomRepo reads the membership table maintained by the classroom
// service. The broker only asks yes/no questions of it.
type ClassroomRepo struct {
	db *sql.DB
}

func NewClassroomRepo(db *sql.DB) *ClassroomRepo {
	return &ClassroomRepo{db: db}
}

func (r *ClassroomRepo) CanJoin(ctx context.Context, userID, roomID string) (bool, error) {
	if roomID == "" {
		return false, domain.ErrInvalidRoomID
	}
	exec := GetExecutor(ctx, r.db)
	var ok bool
	err := exec.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM classroom_members
			WHERE classroom_id = $1 AND user_id = $2
		)
	`, roomID, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}
