package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Member is one participant of a room as seen by other participants.
// ConnectionID is the routing address for point-to-point signaling.
type Member struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// Message is a persisted chat entry. The broker never mutates a message
// after it is stored.
type Message struct {
	ID         uuid.UUID
	RoomID     string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// PendingMessage travels through the room stream between ingest and the
// worker that persists and relays it.
type PendingMessage struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot is the full whiteboard state of a room. The element payload is
// opaque to the broker; it is moved, never interpreted.
type Snapshot struct {
	RoomID    string
	Elements  json.RawMessage
	UpdatedAt time.Time
}

// SignalPhase tracks how far a peer negotiation has progressed.
type SignalPhase int

const (
	PhaseIdle SignalPhase = iota
	PhaseOfferSent
	PhaseAnswerSent
)

func (p SignalPhase) String() string {
	switch p {
	case PhaseOfferSent:
		return "offer_sent"
	case PhaseAnswerSent:
		return "answer_sent"
	default:
		return "idle"
	}
}
