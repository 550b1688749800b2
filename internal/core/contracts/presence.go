package contracts

import (
	"context"
	"time"
)

// PresenceStore keeps a TTL-scored record of who is alive in which room.
// Backed by a Redis ZSET per room.
type PresenceStore interface {
	// UpdateOnlineStatus refreshes the member's liveness score.
	UpdateOnlineStatus(ctx context.Context, roomID string, connID string, ttl time.Duration) error
	// GetOnlineMembers returns connection ids seen within the liveness
	// window.
	GetOnlineMembers(ctx context.Context, roomID string) ([]string, error)
	// ClearRoom drops the room's presence set.
	ClearRoom(ctx context.Context, roomID string) error
}
