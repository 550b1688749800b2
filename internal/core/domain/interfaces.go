package domain

import (
	"context"
	"encoding/json"
)

// MessageRepository persists chat messages. The broker relays live traffic
// regardless of store health; durability is best-effort.
type MessageRepository interface {
	Save(ctx context.Context, msg *Message) error
	// ListByRoom returns the most recent messages in ascending creation
	// order, capped at limit.
	ListByRoom(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// WhiteboardRepository is the durable side of the whiteboard store. Only
// late joiners and crash recovery read from it; connected clients are
// served from memory.
type WhiteboardRepository interface {
	Get(ctx context.Context, roomID string) (json.RawMessage, error)
	Put(ctx context.Context, roomID string, elements json.RawMessage) error
}

// ClassroomRepository answers whether a user may join a given room. Room
// lifecycle itself is owned by the external classroom service.
type ClassroomRepository interface {
	CanJoin(ctx context.Context, userID, roomID string) (bool, error)
}
