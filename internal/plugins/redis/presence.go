package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps one ZSET per room scored by last check-in
// time. Members whose score falls outside the liveness window are treated
// as gone and pruned on read.
type RedisPresenceStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, window time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, window: window}
}

func (p *RedisPresenceStore) UpdateOnlineStatus(
	ctx context.Context,
	roomID string,
	connID string,
	ttl time.Duration,
) error {
	key := "presence:" + roomID
	now := time.Now().Unix()
	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: connID,
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole set so an abandoned room does not leak memory.
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

func (p *RedisPresenceStore) GetOnlineMembers(
	ctx context.Context,
	roomID string,
) ([]string, error) {
	key := "presence:" + roomID
	threshold := time.Now().Add(-p.window).Unix()
	// Prune stale members first
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

func (p *RedisPresenceStore) ClearRoom(ctx context.Context, roomID string) error {
	return p.rdb.Del(ctx, "presence:"+roomID).Err()
}
