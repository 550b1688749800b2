package contracts

import "context"

// MessageQueue decouples chat ingest from persistence. Backed by a Redis
// stream per room with one consumer group.
type MessageQueue interface {
	PublishToStream(ctx context.Context, topic string, payload []byte) error
	// SubscribeToStream reads the stream with a consumer group and hands
	// each entry to handler. Blocks until ctx is cancelled.
	SubscribeToStream(ctx context.Context, topic string, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	AcknowledgeMessage(ctx context.Context, topic, group, msgID string) error
	DeleteMessage(ctx context.Context, topic, msgID string) error
	DeleteStream(ctx context.Context, topic string) error
}
