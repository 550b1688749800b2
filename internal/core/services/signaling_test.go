package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"syncroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signalMsg(roomID, to string) domain.SignalMessage {
	return domain.SignalMessage{
		RoomID:  roomID,
		To:      to,
		Payload: json.RawMessage(`{"sdp":"..."}`),
	}
}

func TestOfferIsForwardedToResponder(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))

	envs := relay.directsTo("conn-b")
	require.Len(t, envs, 1)
	assert.Equal(t, domain.EventOffer, envs[0].Event)
	var fwd domain.SignalMessage
	require.NoError(t, json.Unmarshal(envs[0].Data, &fwd))
	assert.Equal(t, "conn-a", fwd.From)
	assert.Equal(t, domain.PhaseOfferSent, svc.PhaseOf("r1", "conn-a", "conn-b"))
}

func TestAnswerWithoutOfferIsDropped(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)

	err := svc.HandleAnswer(context.Background(), "conn-b", signalMsg("r1", "conn-a"))
	assert.ErrorIs(t, err, domain.ErrNoPendingOffer)
	// Zero deliveries: a stale answer never reaches the initiator.
	assert.Empty(t, relay.allDirects())
}

func TestOfferAnswerRoundTrip(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleAnswer(ctx, "conn-b", signalMsg("r1", "conn-a")))

	require.Len(t, relay.directsTo("conn-b"), 1)
	answers := relay.directsTo("conn-a")
	require.Len(t, answers, 1)
	assert.Equal(t, domain.EventAnswer, answers[0].Event)
	assert.Equal(t, domain.PhaseAnswerSent, svc.PhaseOf("r1", "conn-a", "conn-b"))

	// A duplicate answer finds no pending offer and is dropped.
	err := svc.HandleAnswer(ctx, "conn-b", signalMsg("r1", "conn-a"))
	assert.ErrorIs(t, err, domain.ErrNoPendingOffer)
}

func TestRepeatOfferRestartsNegotiation(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleAnswer(ctx, "conn-b", signalMsg("r1", "conn-a")))

	// Renegotiation: last offer wins, phase restarts.
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	assert.Equal(t, domain.PhaseOfferSent, svc.PhaseOf("r1", "conn-a", "conn-b"))
	require.NoError(t, svc.HandleAnswer(ctx, "conn-b", signalMsg("r1", "conn-a")))
	assert.Equal(t, domain.PhaseAnswerSent, svc.PhaseOf("r1", "conn-a", "conn-b"))
}

func TestGlareResolvedByConnectionIDOrder(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	// conn-a offers first, then conn-b offers back before answering.
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleOffer(ctx, "conn-b", signalMsg("r1", "conn-a")))

	// conn-a is lexicographically lower and keeps the initiator role;
	// conn-b's offer was dropped, not forwarded.
	assert.Equal(t, domain.PhaseOfferSent, svc.PhaseOf("r1", "conn-a", "conn-b"))
	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-b", "conn-a"))
	assert.Empty(t, relay.directsTo("conn-a"))
}

func TestGlareHigherIDOfferorLoses(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	// The higher id offers first; the lower id's counter-offer wins and
	// the original exchange is abandoned.
	require.NoError(t, svc.HandleOffer(ctx, "conn-b", signalMsg("r1", "conn-a")))
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))

	assert.Equal(t, domain.PhaseOfferSent, svc.PhaseOf("r1", "conn-a", "conn-b"))
	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-b", "conn-a"))
}

func TestCandidatesFlowBothWaysOnceOfferInFlight(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	// Before any offer, candidates are dropped.
	err := svc.HandleCandidate(ctx, "conn-a", signalMsg("r1", "conn-b"))
	assert.ErrorIs(t, err, domain.ErrNoPendingOffer)

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleCandidate(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleCandidate(ctx, "conn-b", signalMsg("r1", "conn-a")))

	assert.Len(t, relay.directsTo("conn-b"), 2) // offer + candidate
	assert.Len(t, relay.directsTo("conn-a"), 1) // candidate
}

func TestDropPeerDiscardsExchangesAndNotifiesCounterpart(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-c")))

	svc.DropPeer(ctx, "r1", "conn-a")

	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-a", "conn-b"))
	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-a", "conn-c"))
	for _, peer := range []string{"conn-b", "conn-c"} {
		envs := relay.directsTo(peer)
		var sawPeerLeft bool
		for _, env := range envs {
			if env.Event == domain.EventPeerLeft {
				var pl domain.PeerLeft
				require.NoError(t, json.Unmarshal(env.Data, &pl))
				assert.Equal(t, "conn-a", pl.ConnectionID)
				sawPeerLeft = true
			}
		}
		assert.True(t, sawPeerLeft, "peer %s missing peer-left", peer)
	}

	// Candidates for the discarded exchange are now dropped.
	err := svc.HandleCandidate(ctx, "conn-b", signalMsg("r1", "conn-a"))
	assert.ErrorIs(t, err, domain.ErrNoPendingOffer)
}

func TestDropPeerNotifiesCounterpartOnceForBothDirections(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	// Completed exchange one way, then a fresh offer the other way:
	// both directional records exist for the same pair.
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleAnswer(ctx, "conn-b", signalMsg("r1", "conn-a")))
	require.NoError(t, svc.HandleOffer(ctx, "conn-b", signalMsg("r1", "conn-a")))

	svc.DropPeer(ctx, "r1", "conn-a")

	var peerLefts int
	for _, env := range relay.directsTo("conn-b") {
		if env.Event == domain.EventPeerLeft {
			peerLefts++
		}
	}
	assert.Equal(t, 1, peerLefts)
	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-a", "conn-b"))
	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-b", "conn-a"))
}

func TestDropPeerScopedToRoom(t *testing.T) {
	relay := newFakeRelay()
	svc := NewSignalingService(slog.Default(), relay)
	ctx := context.Background()

	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r1", "conn-b")))
	require.NoError(t, svc.HandleOffer(ctx, "conn-a", signalMsg("r2", "conn-b")))

	svc.DropPeer(ctx, "r1", "conn-a")

	assert.Equal(t, domain.PhaseIdle, svc.PhaseOf("r1", "conn-a", "conn-b"))
	assert.Equal(t, domain.PhaseOfferSent, svc.PhaseOf("r2", "conn-a", "conn-b"))
}
