package contracts

import (
	"context"

	"syncroom/internal/core/domain"
)

// Registry tracks live connections and room membership on this node.
type Registry interface {
	// Register records a freshly authenticated connection.
	Register(c Client)
	// Deregister removes the connection and every room membership it
	// holds. Idempotent. Returns the rooms the connection was in so the
	// caller can run per-room teardown.
	Deregister(connID string) []string
	// Lookup resolves a connection id to its user identity.
	Lookup(connID string) (string, error)
	// Join adds the connection to a room. Idempotent: a duplicate join
	// returns the same member list as the first with joined=false. The
	// returned list excludes the joining connection.
	Join(roomID, connID, displayName string) (members []domain.Member, joined bool, err error)
	// Leave removes the connection from the room; no-op when absent.
	Leave(roomID, connID string) bool
	// MembersOf returns the current member list of a room.
	MembersOf(roomID string) []domain.Member
	// RoomsOf returns the rooms the connection currently belongs to.
	RoomsOf(connID string) []string
}

// Relay routes event frames to room audiences. Delivery to a recipient
// that is gone is dropped, never queued.
type Relay interface {
	// Publish delivers data to every member of the room except excludeID
	// (empty string excludes nobody).
	Publish(ctx context.Context, roomID string, data []byte, excludeID string)
	// PublishDirect delivers to exactly one connection.
	PublishDirect(ctx context.Context, connID string, data []byte) error
}
