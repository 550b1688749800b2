package ws

import (
	"context"
	"sync"
	"time"

	"syncroom/internal/core/domain"
)

// RuntimeClient owns the write side of one connection. All sends go
// through a buffered channel drained by a single write pump, so frames
// from one publisher reach the wire in publish order.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	connID string
	userID string
	out    chan []byte
	once   sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	connID, userID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		connID: connID,
		userID: userID,
		out:    make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ConnectionID() string { return c.connID }
func (c *RuntimeClient) UserID() string       { return c.userID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return domain.ErrConnectionClosed
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return domain.ErrConnectionClosed
	default:
		// A recipient whose buffer is full is treated as unreachable;
		// collaboration state is ephemeral and resynced on reconnect.
		return domain.ErrConnectionClosed
	}
}

// Close is safe to call concurrently with Send from publisher
// goroutines. The out channel is never closed; the write pump exits on
// context cancellation and the buffer is left for the collector.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	ticker := time.NewTicker(c.ws.liveness / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				return
			}
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
