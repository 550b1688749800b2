package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"syncroom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChat(t *testing.T) (*ChatService, *fakeQueue, *fakeRelay, *fakeMessageRepo) {
	t.Helper()
	queue := newFakeQueue()
	relay := newFakeRelay()
	repo := &fakeMessageRepo{}
	return NewChatService(slog.Default(), queue, relay, repo, fakeTx{}), queue, relay, repo
}

func TestAcceptMessageEnqueuesToRoomStream(t *testing.T) {
	svc, queue, relay, repo := newChat(t)

	require.NoError(t, svc.AcceptMessage(context.Background(), "conn-a", "user-a", "Alice", "r1", "hi all"))

	queue.mu.Lock()
	entries := queue.entries["r1"]
	queue.mu.Unlock()
	require.Len(t, entries, 1)
	var pending domain.PendingMessage
	require.NoError(t, json.Unmarshal(entries[0], &pending))
	assert.Equal(t, "user-a", pending.AuthorID)
	assert.Equal(t, "Alice", pending.AuthorName)
	assert.Equal(t, "hi all", pending.Body)

	// Nothing reaches the store or the room until the worker runs.
	assert.Empty(t, repo.saved)
	assert.Empty(t, relay.allPublished())
}

func TestSaveAndBroadcastPersistsAndRelays(t *testing.T) {
	svc, _, relay, repo := newChat(t)
	pending := &domain.PendingMessage{
		RoomID:       "r1",
		ConnectionID: "conn-a",
		AuthorID:     "user-a",
		AuthorName:   "Alice",
		Body:         "hi all",
		CreatedAt:    time.Now(),
	}

	require.NoError(t, svc.SaveAndBroadcast(context.Background(), pending))

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Equal(t, "r1", saved.RoomID)
	assert.NotEqual(t, uuid.Nil, saved.ID)

	pubs := relay.allPublished()
	require.Len(t, pubs, 1)
	assert.Equal(t, "r1", pubs[0].roomID)
	// The author's own connection is excluded from the fan-out.
	assert.Equal(t, "conn-a", pubs[0].exclude)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(pubs[0].frame, &env))
	assert.Equal(t, domain.EventChatMessage, env.Event)
	var payload domain.ChatMessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, saved.ID.String(), payload.ID)
	assert.Equal(t, "hi all", payload.Text)
}

func TestSaveFailureStillRelaysLive(t *testing.T) {
	svc, _, relay, repo := newChat(t)
	repo.fail = true
	pending := &domain.PendingMessage{
		RoomID: "r1", ConnectionID: "conn-a",
		AuthorID: "user-a", AuthorName: "Alice",
		Body: "hi all", CreatedAt: time.Now(),
	}

	require.NoError(t, svc.SaveAndBroadcast(context.Background(), pending))

	assert.Empty(t, repo.saved)
	assert.Len(t, relay.allPublished(), 1)
}

func TestHistoryReturnsRoomMessages(t *testing.T) {
	svc, _, _, repo := newChat(t)
	ctx := context.Background()
	for _, room := range []string{"r1", "r2", "r1"} {
		require.NoError(t, repo.Save(ctx, &domain.Message{
			ID: uuid.New(), RoomID: room, AuthorID: "user-a",
			AuthorName: "Alice", Body: "m", CreatedAt: time.Now(),
		}))
	}

	msgs, err := svc.History(ctx, "r1", 50)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = svc.History(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = svc.History(ctx, "", 50)
	assert.ErrorIs(t, err, domain.ErrInvalidRoomID)
}
