package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"
	"syncroom/internal/core/services"
)

// RoomWorker drains one room's message stream: persist, relay, ack,
// delete. One worker runs per room with live members; the registry starts
// and stops it with room lifecycle.
type RoomWorker struct {
	log   *slog.Logger
	queue contracts.MessageQueue
	chat  *services.ChatService
	group string
}

func NewRoomWorker(
	log *slog.Logger,
	queue contracts.MessageQueue,
	chat *services.ChatService,
	group string,
) *RoomWorker {
	return &RoomWorker{
		log:   log,
		queue: queue,
		chat:  chat,
		group: group,
	}
}

func (w *RoomWorker) Run(ctx context.Context, roomID string) error {
	w.log.InfoContext(ctx, "worker - run - consuming room stream", "room_id", roomID, "group", w.group)
	return w.queue.SubscribeToStream(ctx, roomID, w.group, w.ProcessMessage)
}

func (w *RoomWorker) ProcessMessage(ctx context.Context, msgID string, raw []byte) error {
	var pending domain.PendingMessage
	if err := json.Unmarshal(raw, &pending); err != nil {
		w.log.Error("worker - process message - wrong payload", "message_id", msgID)
		return err
	}
	if err := w.chat.SaveAndBroadcast(ctx, &pending); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - save and broadcast failed", "message_id", msgID, "err", err)
		return err
	}
	// The DB save is confirmed; drop the entry from the pending list and
	// keep the stream memory-bounded.
	if err := w.queue.AcknowledgeMessage(ctx, pending.RoomID, w.group, msgID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - acknowledge failed", "message_id", msgID, "err", err)
		return err
	}
	if err := w.queue.DeleteMessage(ctx, pending.RoomID, msgID); err != nil {
		// already processed and acked
		w.log.ErrorContext(ctx, "worker - process message - delete failed", "message_id", msgID, "err", err)
	}
	return nil
}
