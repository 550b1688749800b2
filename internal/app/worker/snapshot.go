package worker

import (
	"context"
	"log/slog"
	"time"

	"syncroom/internal/core/domain"
	"syncroom/internal/core/services"
)

// SnapshotFlusher writes dirty whiteboards to the durable store on a
// debounced interval. The in-memory store stays authoritative for
// connected clients; a flush failure re-marks the board and the next tick
// retries, so a persistence outage degrades durability only.
type SnapshotFlusher struct {
	log        *slog.Logger
	whiteboard *services.WhiteboardService
	repo       domain.WhiteboardRepository
	interval   time.Duration
	retries    int
}

func NewSnapshotFlusher(
	log *slog.Logger,
	whiteboard *services.WhiteboardService,
	repo domain.WhiteboardRepository,
	interval time.Duration,
	retries int,
) *SnapshotFlusher {
	return &SnapshotFlusher{
		log:        log,
		whiteboard: whiteboard,
		repo:       repo,
		interval:   interval,
		retries:    retries,
	}
}

func (f *SnapshotFlusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.Flush(context.WithoutCancel(ctx))
			f.log.Info("worker - snapshot flusher - stopped")
			return
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush writes every dirty board once, with bounded backoff per board.
func (f *SnapshotFlusher) Flush(ctx context.Context) {
	for roomID, elements := range f.whiteboard.CollectDirty() {
		if err := f.putWithBackoff(ctx, roomID, elements); err != nil {
			f.whiteboard.MarkDirty(roomID)
			f.log.ErrorContext(ctx, "worker - snapshot flusher - flush failed", "room_id", roomID, "err", err)
			continue
		}
		f.log.InfoContext(ctx, "worker - snapshot flusher - flushed", "room_id", roomID, "size", len(elements))
	}
}

func (f *SnapshotFlusher) putWithBackoff(ctx context.Context, roomID string, elements []byte) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < f.retries; attempt++ {
		if err = f.repo.Put(ctx, roomID, elements); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
