package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisMessageQueue is one stream per room consumed through a consumer
// group, so an ingest burst never blocks on the persistence path.
type RedisMessageQueue struct {
	rdb *redis.Client
}

func NewRedisMessageQueue(rdb *redis.Client) *RedisMessageQueue {
	return &RedisMessageQueue{rdb: rdb}
}

func (q *RedisMessageQueue) streamKey(roomID string) string {
	return "stream:" + roomID
}

func (q *RedisMessageQueue) PublishToStream(ctx context.Context, roomID string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(roomID),
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisMessageQueue) SubscribeToStream(
	ctx context.Context,
	roomID string,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	topic := q.streamKey(roomID)
	err := q.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumerName,
				Streams:  []string{topic, ">"},
				Count:    10,
				Block:    2 * time.Second,
			}).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					slog.Warn("stream read error", "topic", topic, "err", err)
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					raw, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
						slog.Warn("stream handler error", "message_id", msg.ID, "err", err)
					}
				}
			}
		}
	}
}

func (q *RedisMessageQueue) AcknowledgeMessage(ctx context.Context, roomID, group, msgID string) error {
	return q.rdb.XAck(ctx, q.streamKey(roomID), group, msgID).Err()
}

func (q *RedisMessageQueue) DeleteMessage(ctx context.Context, roomID, msgID string) error {
	return q.rdb.XDel(ctx, q.streamKey(roomID), msgID).Err()
}

func (q *RedisMessageQueue) DeleteStream(ctx context.Context, roomID string) error {
	return q.rdb.Del(ctx, q.streamKey(roomID)).Err()
}
