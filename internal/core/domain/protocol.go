package domain

import (
	"encoding/json"
	"time"
)

// Event names carried on the wire. Client→broker and broker→client share
// the same envelope: {"event": ..., "data": ...}.
const (
	EventHandshake        = "handshake"
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventExistingUsers    = "existing-users"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventSendMessage      = "send-message"
	EventChatMessage      = "chat-message"
	EventWhiteboardUpdate = "whiteboard-update"
	EventWhiteboardState  = "whiteboard-state"
	EventOffer            = "webrtc-offer"
	EventAnswer           = "webrtc-answer"
	EventCandidate        = "webrtc-candidate"
	EventPeerLeft         = "peer-left"
	EventError            = "error"
)

// Error codes surfaced to clients via the error event.
const (
	CodeAuthorization = "authorization_error"
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a ready-to-send frame.
func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Handshake is sent once, immediately after the transport is registered,
// so the client learns its own connection id.
type Handshake struct {
	ConnectionID string `json:"connectionId"`
}

type JoinRoomRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

type ExistingUsers struct {
	Members []Member `json:"members"`
}

type UserLeft struct {
	ConnectionID string `json:"connectionId"`
}

type SendMessageRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type ChatMessagePayload struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type WhiteboardUpdateRequest struct {
	RoomID   string          `json:"roomId"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type WhiteboardStatePayload struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

// SignalMessage is the point-to-point envelope for offer, answer and
// candidate relay. Payload is forwarded unchanged.
type SignalMessage struct {
	RoomID  string          `json:"roomId"`
	To      string          `json:"to"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type PeerLeft struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
