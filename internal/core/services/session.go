package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("session-service")

// SessionService orchestrates the lifecycle of a connection across rooms:
// authorized joins, presence announcements, resync, heartbeat and the
// cleanup cascade on leave or disconnect.
type SessionService struct {
	registry   contracts.Registry
	relay      contracts.Relay
	presence   contracts.PresenceStore
	classrooms domain.ClassroomRepository
	whiteboard *WhiteboardService
	signaling  *SignalingService
	heartbeat  time.Duration
	liveness   time.Duration
	log        *slog.Logger
}

func NewSessionService(
	log *slog.Logger,
	registry contracts.Registry,
	relay contracts.Relay,
	presence contracts.PresenceStore,
	classrooms domain.ClassroomRepository,
	whiteboard *WhiteboardService,
	signaling *SignalingService,
	heartbeat, liveness time.Duration,
) *SessionService {
	return &SessionService{
		log:        log,
		registry:   registry,
		relay:      relay,
		presence:   presence,
		classrooms: classrooms,
		whiteboard: whiteboard,
		signaling:  signaling,
		heartbeat:  heartbeat,
		liveness:   liveness,
	}
}

// HandleJoin runs the full join sequence: authorization, membership,
// existing-users to the joiner, user-joined to everyone else, then the
// whiteboard resync so the joiner has authoritative state before any live
// update reaches it.
func (s *SessionService) HandleJoin(ctx context.Context, connID, userID, roomID, displayName string) error {
	ctx, span := tracer.Start(ctx, "SessionService.HandleJoin", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("conn_id", connID),
	))
	defer span.End()
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	allowed, err := s.classrooms.CanJoin(ctx, userID, roomID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization check failed")
		s.log.ErrorContext(ctx, "session - handle join - authorization check failed", "room_id", roomID, "user_id", userID, "err", err)
		return err
	}
	if !allowed {
		s.log.WarnContext(ctx, "session - handle join - join refused", "room_id", roomID, "user_id", userID)
		return domain.ErrAuthorization
	}

	existing, joined, err := s.registry.Join(roomID, connID, displayName)
	if err != nil {
		span.RecordError(err)
		return err
	}

	frame, err := domain.NewEnvelope(domain.EventExistingUsers, domain.ExistingUsers{Members: existing})
	if err != nil {
		return err
	}
	if err := s.relay.PublishDirect(ctx, connID, frame); err != nil {
		return err
	}

	// A duplicate join re-sends the member list but does not announce
	// the connection a second time.
	if joined {
		announce, err := domain.NewEnvelope(domain.EventUserJoined, domain.Member{ConnectionID: connID, DisplayName: displayName})
		if err != nil {
			return err
		}
		s.relay.Publish(ctx, roomID, announce, connID)
	}

	// Resync before live updates: the joiner gets the authoritative board
	// so a stale local cache cannot race fresh broadcasts.
	snapshot, err := s.whiteboard.Snapshot(ctx, roomID)
	if err == nil {
		if state, mErr := domain.NewEnvelope(domain.EventWhiteboardState, domain.WhiteboardStatePayload{Snapshot: snapshot}); mErr == nil {
			_ = s.relay.PublishDirect(ctx, connID, state)
		}
	}

	if err := s.presence.UpdateOnlineStatus(ctx, roomID, connID, s.liveness); err != nil {
		s.log.WarnContext(ctx, "session - handle join - presence update failed", "room_id", roomID, "conn_id", connID, "err", err)
	}
	span.SetStatus(codes.Ok, "joined")
	s.log.InfoContext(ctx, "session - handle join - joined", "room_id", roomID, "conn_id", connID, "peers", len(existing))
	return nil
}

// HandleLeave removes one membership. Leaving a room the connection is
// not in is a no-op.
func (s *SessionService) HandleLeave(ctx context.Context, connID, roomID string) error {
	ctx, span := tracer.Start(ctx, "SessionService.HandleLeave", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("conn_id", connID),
	))
	defer span.End()
	if !s.registry.Leave(roomID, connID) {
		return nil
	}
	s.teardown(ctx, roomID, connID)
	s.log.InfoContext(ctx, "session - handle leave - left", "room_id", roomID, "conn_id", connID)
	return nil
}

// HandleDisconnect runs the same cleanup as an explicit leave for every
// room the connection was in. Idempotent: a second call finds nothing to
// clean up.
func (s *SessionService) HandleDisconnect(ctx context.Context, connID string) {
	ctx, span := tracer.Start(ctx, "SessionService.HandleDisconnect", trace.WithAttributes(
		attribute.String("conn_id", connID),
	))
	defer span.End()
	rooms := s.registry.Deregister(connID)
	for _, roomID := range rooms {
		s.teardown(ctx, roomID, connID)
	}
	s.log.InfoContext(ctx, "session - handle disconnect - deregistered", "conn_id", connID, "rooms", len(rooms))
}

// HandleHeartbeat refreshes the connection's presence entries until ctx
// is cancelled.
func (s *SessionService) HandleHeartbeat(ctx context.Context, connID string) error {
	if connID == "" {
		return errors.New("invalid heartbeat parameters")
	}
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session - handle heartbeat - stopped", "conn_id", connID)
			return nil
		case <-ticker.C:
			for _, roomID := range s.registry.RoomsOf(connID) {
				_, span := tracer.Start(ctx, "Heartbeat.UpdateOnlineStatus")
				if err := s.presence.UpdateOnlineStatus(ctx, roomID, connID, s.liveness); err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "redis update failed")
					s.log.ErrorContext(ctx, "session - handle heartbeat - presence update failed", "room_id", roomID, "conn_id", connID, "err", err)
				}
				span.End()
			}
		}
	}
}

// teardown is the shared leave path: discard signaling exchanges, notify
// the remaining members, release presence.
func (s *SessionService) teardown(ctx context.Context, roomID, connID string) {
	s.signaling.DropPeer(ctx, roomID, connID)
	if frame, err := domain.NewEnvelope(domain.EventUserLeft, domain.UserLeft{ConnectionID: connID}); err == nil {
		s.relay.Publish(ctx, roomID, frame, connID)
	}
	if members, err := s.presence.GetOnlineMembers(ctx, roomID); err == nil && len(members) <= 1 {
		if err := s.presence.ClearRoom(ctx, roomID); err != nil {
			s.log.WarnContext(ctx, "session - teardown - clear room failed", "room_id", roomID, "err", err)
		}
	}
}
