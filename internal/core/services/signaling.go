package services

import (
	"context"
	"log/slog"
	"sync"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"
)

type pairKey struct {
	roomID    string
	initiator string
	responder string
}

type exchange struct {
	phase domain.SignalPhase
}

// SignalingService relays WebRTC negotiation payloads between exactly two
// room members without interpreting them. One exchange record exists per
// ordered (initiator, responder) pair per room; it lives only while the
// peer connection is being established.
type SignalingService struct {
	mu        sync.Mutex
	exchanges map[pairKey]*exchange
	relay     contracts.Relay
	log       *slog.Logger
}

func NewSignalingService(log *slog.Logger, relay contracts.Relay) *SignalingService {
	return &SignalingService{
		exchanges: make(map[pairKey]*exchange),
		relay:     relay,
		log:       log,
	}
}

// HandleOffer starts or restarts a negotiation. A repeat offer for the
// same pair is renegotiation: the pending offer is overwritten and the
// phase restarts. Glare (both peers offering at once) is resolved by
// connection id order: the lexicographically lower id keeps the initiator
// role and the other side's offer is dropped.
func (s *SignalingService) HandleOffer(ctx context.Context, from string, msg domain.SignalMessage) error {
	s.mu.Lock()
	reverse := pairKey{roomID: msg.RoomID, initiator: msg.To, responder: from}
	if ex, ok := s.exchanges[reverse]; ok && ex.phase == domain.PhaseOfferSent {
		if msg.To < from {
			// The counterpart offered first and wins the tie-break.
			s.mu.Unlock()
			s.log.InfoContext(ctx, "signaling - handle offer - glare, offer dropped", "room_id", msg.RoomID, "from", from, "to", msg.To)
			return nil
		}
		// This side wins: the counterpart's pending offer is abandoned.
		delete(s.exchanges, reverse)
	}
	key := pairKey{roomID: msg.RoomID, initiator: from, responder: msg.To}
	s.exchanges[key] = &exchange{phase: domain.PhaseOfferSent}
	s.mu.Unlock()

	return s.forward(ctx, domain.EventOffer, from, msg)
}

// HandleAnswer completes the offer/answer round. An answer with no
// matching pending offer is dropped, not forwarded, so a stale answer
// cannot corrupt a fresh negotiation.
func (s *SignalingService) HandleAnswer(ctx context.Context, from string, msg domain.SignalMessage) error {
	key := pairKey{roomID: msg.RoomID, initiator: msg.To, responder: from}
	s.mu.Lock()
	ex, ok := s.exchanges[key]
	if !ok || ex.phase != domain.PhaseOfferSent {
		s.mu.Unlock()
		s.log.WarnContext(ctx, "signaling - handle answer - no pending offer, dropped", "room_id", msg.RoomID, "from", from, "to", msg.To)
		return domain.ErrNoPendingOffer
	}
	ex.phase = domain.PhaseAnswerSent
	s.mu.Unlock()

	return s.forward(ctx, domain.EventAnswer, from, msg)
}

// HandleCandidate forwards ICE candidates in either direction once an
// offer is in flight for the pair.
func (s *SignalingService) HandleCandidate(ctx context.Context, from string, msg domain.SignalMessage) error {
	s.mu.Lock()
	asInitiator := pairKey{roomID: msg.RoomID, initiator: from, responder: msg.To}
	asResponder := pairKey{roomID: msg.RoomID, initiator: msg.To, responder: from}
	_, ok := s.exchanges[asInitiator]
	if !ok {
		_, ok = s.exchanges[asResponder]
	}
	s.mu.Unlock()
	if !ok {
		s.log.WarnContext(ctx, "signaling - handle candidate - no exchange, dropped", "room_id", msg.RoomID, "from", from, "to", msg.To)
		return domain.ErrNoPendingOffer
	}
	return s.forward(ctx, domain.EventCandidate, from, msg)
}

// DropPeer discards every exchange the connection participates in within
// the room and tells each counterpart to tear down its peer object.
func (s *SignalingService) DropPeer(ctx context.Context, roomID, connID string) {
	s.mu.Lock()
	// A pair can hold one exchange in each direction; the counterpart
	// still gets exactly one peer-left.
	counterparts := make(map[string]struct{})
	for key := range s.exchanges {
		if key.roomID != roomID {
			continue
		}
		switch connID {
		case key.initiator:
			counterparts[key.responder] = struct{}{}
			delete(s.exchanges, key)
		case key.responder:
			counterparts[key.initiator] = struct{}{}
			delete(s.exchanges, key)
		}
	}
	s.mu.Unlock()

	for peer := range counterparts {
		frame, err := domain.NewEnvelope(domain.EventPeerLeft, domain.PeerLeft{ConnectionID: connID})
		if err != nil {
			continue
		}
		if err := s.relay.PublishDirect(ctx, peer, frame); err != nil {
			s.log.InfoContext(ctx, "signaling - drop peer - counterpart unreachable", "room_id", roomID, "peer", peer)
		}
	}
	if len(counterparts) > 0 {
		s.log.InfoContext(ctx, "signaling - drop peer - exchanges discarded", "room_id", roomID, "conn_id", connID, "count", len(counterparts))
	}
}

// PhaseOf reports the current phase for an ordered pair. Pairs with no
// exchange are Idle.
func (s *SignalingService) PhaseOf(roomID, initiator, responder string) domain.SignalPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex, ok := s.exchanges[pairKey{roomID: roomID, initiator: initiator, responder: responder}]; ok {
		return ex.phase
	}
	return domain.PhaseIdle
}

func (s *SignalingService) forward(ctx context.Context, event, from string, msg domain.SignalMessage) error {
	msg.From = from
	frame, err := domain.NewEnvelope(event, msg)
	if err != nil {
		return err
	}
	if err := s.relay.PublishDirect(ctx, msg.To, frame); err != nil {
		s.log.WarnContext(ctx, "signaling - forward - target unreachable", "event", event, "room_id", msg.RoomID, "to", msg.To)
		return err
	}
	return nil
}
