package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var chatTracer = otel.Tracer("chat-service")

// ChatService moves chat traffic: ingest publishes to the room stream,
// the room worker persists and relays. The broker never assigns message
// ids inline; they come out of the store path.
type ChatService struct {
	queue     contracts.MessageQueue
	relay     contracts.Relay
	repo      domain.MessageRepository
	txManager contracts.Transactor
	log       *slog.Logger
}

func NewChatService(
	log *slog.Logger,
	queue contracts.MessageQueue,
	relay contracts.Relay,
	repo domain.MessageRepository,
	txManager contracts.Transactor,
) *ChatService {
	return &ChatService{
		log:       log,
		queue:     queue,
		relay:     relay,
		repo:      repo,
		txManager: txManager,
	}
}

// AcceptMessage enqueues a message for the room worker. Live delivery and
// persistence both happen downstream so a store outage cannot stall the
// sender's read loop.
func (s *ChatService) AcceptMessage(ctx context.Context, connID, userID, displayName, roomID, text string) error {
	ctx, span := chatTracer.Start(ctx, "ChatService.AcceptMessage", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("conn_id", connID),
	))
	defer span.End()
	pending := domain.PendingMessage{
		RoomID:       roomID,
		ConnectionID: connID,
		AuthorID:     userID,
		AuthorName:   displayName,
		Body:         text,
		CreatedAt:    time.Now(),
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.queue.PublishToStream(ctx, roomID, raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish to stream failed")
		s.log.ErrorContext(ctx, "chat - accept message - publish to stream failed", "room_id", roomID, "err", err)
		return err
	}
	return nil
}

// SaveAndBroadcast persists the message and relays it to every room
// member except the author's connection. A persistence failure degrades
// durability only: the message is still relayed live.
func (s *ChatService) SaveAndBroadcast(ctx context.Context, pending *domain.PendingMessage) error {
	ctx, span := chatTracer.Start(ctx, "ChatService.SaveAndBroadcast", trace.WithAttributes(
		attribute.String("room_id", pending.RoomID),
	))
	defer span.End()
	msg := &domain.Message{
		ID:         uuid.New(),
		RoomID:     pending.RoomID,
		AuthorID:   pending.AuthorID,
		AuthorName: pending.AuthorName,
		Body:       pending.Body,
		CreatedAt:  pending.CreatedAt,
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.Save(txCtx, msg)
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "chat - save and broadcast - save failed", "room_id", msg.RoomID, "err", err)
		// fall through: live relay is not gated on durability
	}
	out := domain.ChatMessagePayload{
		ID:         msg.ID.String(),
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Text:       msg.Body,
		Timestamp:  msg.CreatedAt,
	}
	frame, err := domain.NewEnvelope(domain.EventChatMessage, out)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.relay.Publish(ctx, msg.RoomID, frame, pending.ConnectionID)
	s.log.InfoContext(ctx, "chat - save and broadcast - relayed", "room_id", msg.RoomID, "message_id", msg.ID.String())
	return nil
}

// History returns persisted messages for the room in ascending order.
func (s *ChatService) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.History", trace.WithAttributes(
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	msgs, err := s.repo.ListByRoom(ctx, roomID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		s.log.ErrorContext(ctx, "chat - history - list failed", "room_id", roomID, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}
