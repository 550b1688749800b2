package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"syncroom/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestSocket stands up a draining peer and returns the client side
// wrapped for the write pump.
func dialTestSocket(t *testing.T) *WebSocket {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewWebSocket(context.Background(), conn, time.Minute)
}

func TestSendAfterCloseReturnsClosedError(t *testing.T) {
	sock := dialTestSocket(t)
	client := NewClient(context.Background(), sock, "conn-a", "user-a")

	require.NoError(t, client.Send(context.Background(), []byte(`{"event":"handshake"}`)))
	client.Close()

	// A publisher that races the close must get an error, never a panic.
	for i := 0; i < 200; i++ {
		err := client.Send(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, domain.ErrConnectionClosed)
	}
}

func TestConcurrentSendersSurviveClose(t *testing.T) {
	sock := dialTestSocket(t)
	client := NewClient(context.Background(), sock, "conn-a", "user-a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = client.Send(context.Background(), []byte("x"))
			}
		}()
	}
	client.Close()
	client.Close() // idempotent
	wg.Wait()
}
