package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var wbTracer = otel.Tracer("whiteboard-service")

var emptyBoard = json.RawMessage("[]")

// board holds one room's authoritative whiteboard state. Replacement is
// done under the board mutex so a reader never observes a torn snapshot.
type board struct {
	mu       sync.RWMutex
	elements json.RawMessage
	dirty    bool
	updated  time.Time
}

// WhiteboardService is the in-memory authoritative store with
// last-writer-wins replacement. Durable writes happen off the hot path
// via the snapshot flusher.
type WhiteboardService struct {
	mu     sync.Mutex
	boards map[string]*board
	repo   domain.WhiteboardRepository
	relay  contracts.Relay
	log    *slog.Logger
}

func NewWhiteboardService(log *slog.Logger, repo domain.WhiteboardRepository, relay contracts.Relay) *WhiteboardService {
	return &WhiteboardService{
		boards: make(map[string]*board),
		repo:   repo,
		relay:  relay,
		log:    log,
	}
}

// Initialize creates an empty board if the room has none. A second
// client's late initialize call must not clobber an in-progress board.
func (s *WhiteboardService) Initialize(ctx context.Context, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	s.mu.Lock()
	if _, ok := s.boards[roomID]; ok {
		s.mu.Unlock()
		return nil
	}
	b := &board{elements: emptyBoard}
	// The board enters the map write-locked and stays locked across the
	// durable read, so a concurrent Snapshot blocks until recovery is
	// done and never observes the empty placeholder.
	b.mu.Lock()
	s.boards[roomID] = b
	s.mu.Unlock()
	// A durable snapshot from a previous run wins over the empty board.
	if stored, err := s.repo.Get(ctx, roomID); err == nil && len(stored) > 0 {
		b.elements = stored
	}
	b.mu.Unlock()
	s.log.InfoContext(ctx, "whiteboard - initialize - board ready", "room_id", roomID)
	return nil
}

// Snapshot returns the current state. Rooms never seen before come back
// as the empty board.
func (s *WhiteboardService) Snapshot(ctx context.Context, roomID string) (json.RawMessage, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	if err := s.Initialize(ctx, roomID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	b := s.boards[roomID]
	s.mu.Unlock()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.elements, nil
}

// ApplyUpdate replaces the stored snapshot wholesale, then relays the
// update to everyone in the room except the source. No version vector, no
// merge: a later update always fully overwrites an earlier one.
func (s *WhiteboardService) ApplyUpdate(ctx context.Context, roomID string, snapshot json.RawMessage, sourceConnID string) error {
	ctx, span := wbTracer.Start(ctx, "WhiteboardService.ApplyUpdate", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.Int("snapshot_size", len(snapshot)),
	))
	defer span.End()
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	if len(snapshot) == 0 {
		return domain.ErrEmptySnapshot
	}
	b := s.boardFor(roomID)
	b.mu.Lock()
	b.elements = snapshot
	b.dirty = true
	b.updated = time.Now()
	b.mu.Unlock()

	frame, err := domain.NewEnvelope(domain.EventWhiteboardUpdate, domain.WhiteboardStatePayload{Snapshot: snapshot})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.relay.Publish(ctx, roomID, frame, sourceConnID)
	s.log.InfoContext(ctx, "whiteboard - apply update - snapshot replaced", "room_id", roomID, "source", sourceConnID)
	return nil
}

// CollectDirty returns the rooms with unflushed changes and marks them
// clean. A failed flush re-marks the room via MarkDirty.
func (s *WhiteboardService) CollectDirty() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]json.RawMessage)
	for roomID, b := range s.boards {
		b.mu.Lock()
		if b.dirty {
			out[roomID] = b.elements
			b.dirty = false
		}
		b.mu.Unlock()
	}
	return out
}

func (s *WhiteboardService) MarkDirty(roomID string) {
	s.mu.Lock()
	b := s.boards[roomID]
	s.mu.Unlock()
	if b == nil {
		return
	}
	b.mu.Lock()
	b.dirty = true
	b.mu.Unlock()
}

func (s *WhiteboardService) boardFor(roomID string) *board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[roomID]; ok {
		return b
	}
	b := &board{elements: emptyBoard}
	s.boards[roomID] = b
	return b
}
