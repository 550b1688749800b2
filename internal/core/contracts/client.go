package contracts

import "context"

// Client is the minimal surface the registry needs to talk to one
// WebSocket connection.
type Client interface {
	ConnectionID() string
	UserID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
