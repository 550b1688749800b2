package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocket struct {
	*websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	liveness time.Duration
}

func NewWebSocket(parent context.Context, conn *websocket.Conn, liveness time.Duration) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, liveness: liveness}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	w.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.Conn.WriteMessage(websocket.PingMessage, nil)
}

// ReadLoop delivers inbound frames to onMsg in arrival order. A
// connection that stops answering pings within the liveness window fails
// its read deadline and falls out of the loop, which runs the same
// cleanup as an explicit disconnect.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer func() {
		w.Close()
	}()

	w.Conn.SetReadLimit(512 * 1024) // 512KB max message size
	w.Conn.SetReadDeadline(time.Now().Add(w.liveness))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.liveness))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected close error", "err", err)
			}
			break
		}
		w.Conn.SetReadDeadline(time.Now().Add(w.liveness))
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
