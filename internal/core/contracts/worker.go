package contracts

import "context"

// AsyncWorker consumes a room's message stream: persist, relay, ack.
type AsyncWorker interface {
	// Run starts the consumer loop for one room. Returns when ctx is
	// cancelled.
	Run(ctx context.Context, roomID string) error
	ProcessMessage(ctx context.Context, msgID string, raw []byte) error
}
