package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"syncroom/internal/app/registry"
	"syncroom/internal/app/server/ws"
	"syncroom/internal/core/domain"
	"syncroom/internal/core/services"
	"syncroom/pkg/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	hub        *registry.Registry
	session    *services.SessionService
	chat       *services.ChatService
	whiteboard *services.WhiteboardService
	signaling  *services.SignalingService
	liveness   time.Duration
}

func NewWSHandler(
	hub *registry.Registry,
	session *services.SessionService,
	chat *services.ChatService,
	whiteboard *services.WhiteboardService,
	signaling *services.SignalingService,
	liveness time.Duration,
) *WSHandler {
	return &WSHandler{
		hub:        hub,
		session:    session,
		chat:       chat,
		whiteboard: whiteboard,
		signaling:  signaling,
		liveness:   liveness,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = slog.Default()
	}
	span := trace.SpanFromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	// The read loop exiting on an abrupt disconnect must also stop the
	// heartbeat goroutine, not just an orderly close frame.
	defer cancel()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetCloseHandler(func(code int, text string) error {
		cancel()
		return nil
	})
	websocket := ws.NewWebSocket(ctx, conn, s.liveness)

	connID := uuid.NewString()
	client := ws.NewClient(ctx, websocket, connID, userID)
	s.hub.Register(client)
	defer s.session.HandleDisconnect(context.WithoutCancel(ctx), connID)

	if frame, err := domain.NewEnvelope(domain.EventHandshake, domain.Handshake{ConnectionID: connID}); err == nil {
		_ = client.Send(ctx, frame)
	}
	span.SetAttributes(attribute.String("conn.id", connID))
	log.InfoContext(r.Context(), "ws handler - connection established", "conn_id", connID, "user_id", userID)

	go s.session.HandleHeartbeat(ctx, connID)

	// displayNames is touched only by this read loop; events from one
	// connection are processed strictly in arrival order.
	displayNames := make(map[string]string)
	websocket.ReadLoop(func(data []byte) {
		s.dispatch(ctx, log, client, displayNames, data)
	})
}

func (s *WSHandler) dispatch(
	ctx context.Context,
	log *slog.Logger,
	client *ws.RuntimeClient,
	displayNames map[string]string,
	data []byte,
) {
	connID := client.ConnectionID()
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.reject(ctx, client, domain.CodeBadRequest, "malformed envelope")
		return
	}
	switch env.Event {
	case domain.EventJoinRoom:
		var req domain.JoinRoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" {
			s.reject(ctx, client, domain.CodeBadRequest, "invalid join-room payload")
			return
		}
		if err := s.session.HandleJoin(ctx, connID, client.UserID(), req.RoomID, req.DisplayName); err != nil {
			if errors.Is(err, domain.ErrAuthorization) {
				// Join refused; the connection stays open for other rooms.
				s.reject(ctx, client, domain.CodeAuthorization, "not permitted in this room")
				return
			}
			s.reject(ctx, client, domain.CodeBadRequest, "join failed")
			return
		}
		displayNames[req.RoomID] = req.DisplayName

	case domain.EventLeaveRoom:
		var req domain.LeaveRoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" {
			s.reject(ctx, client, domain.CodeBadRequest, "invalid leave-room payload")
			return
		}
		_ = s.session.HandleLeave(ctx, connID, req.RoomID)
		delete(displayNames, req.RoomID)

	case domain.EventSendMessage:
		var req domain.SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" || req.Text == "" {
			s.reject(ctx, client, domain.CodeBadRequest, "invalid send-message payload")
			return
		}
		name, joined := displayNames[req.RoomID]
		if !joined {
			log.InfoContext(ctx, "ws handler - dispatch - message for unjoined room dropped", "room_id", req.RoomID, "conn_id", connID)
			return
		}
		_ = s.chat.AcceptMessage(ctx, connID, client.UserID(), name, req.RoomID, req.Text)

	case domain.EventWhiteboardUpdate:
		var req domain.WhiteboardUpdateRequest
		if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" {
			s.reject(ctx, client, domain.CodeBadRequest, "invalid whiteboard-update payload")
			return
		}
		if _, joined := displayNames[req.RoomID]; !joined {
			log.InfoContext(ctx, "ws handler - dispatch - update for unjoined room dropped", "room_id", req.RoomID, "conn_id", connID)
			return
		}
		_ = s.whiteboard.ApplyUpdate(ctx, req.RoomID, req.Snapshot, connID)

	case domain.EventOffer, domain.EventAnswer, domain.EventCandidate:
		var msg domain.SignalMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.RoomID == "" || msg.To == "" {
			s.reject(ctx, client, domain.CodeBadRequest, "invalid signaling payload")
			return
		}
		if _, joined := displayNames[msg.RoomID]; !joined {
			log.InfoContext(ctx, "ws handler - dispatch - signal for unjoined room dropped", "room_id", msg.RoomID, "conn_id", connID)
			return
		}
		switch env.Event {
		case domain.EventOffer:
			_ = s.signaling.HandleOffer(ctx, connID, msg)
		case domain.EventAnswer:
			_ = s.signaling.HandleAnswer(ctx, connID, msg)
		case domain.EventCandidate:
			_ = s.signaling.HandleCandidate(ctx, connID, msg)
		}

	default:
		log.InfoContext(ctx, "ws handler - dispatch - unknown event dropped", "event", env.Event, "conn_id", connID)
	}
}

func (s *WSHandler) reject(ctx context.Context, client *ws.RuntimeClient, code, message string) {
	if frame, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{Code: code, Message: message}); err == nil {
		_ = client.Send(ctx, frame)
	}
}
