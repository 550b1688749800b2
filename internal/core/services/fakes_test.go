package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"syncroom/internal/core/domain"
)

type published struct {
	roomID  string
	frame   []byte
	exclude string
}

type direct struct {
	connID string
	frame  []byte
}

// fakeRelay records every fan-out and point-to-point delivery.
type fakeRelay struct {
	mu        sync.Mutex
	published []published
	directs   []direct
	// unreachable simulates recipients that are gone at publish time.
	unreachable map[string]bool
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{unreachable: make(map[string]bool)}
}

func (r *fakeRelay) Publish(_ context.Context, roomID string, data []byte, excludeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, published{roomID: roomID, frame: data, exclude: excludeID})
}

func (r *fakeRelay) PublishDirect(_ context.Context, connID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable[connID] {
		return domain.ErrConnectionNotFound
	}
	r.directs = append(r.directs, direct{connID: connID, frame: data})
	return nil
}

func (r *fakeRelay) allPublished() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.published...)
}

func (r *fakeRelay) allDirects() []direct {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]direct(nil), r.directs...)
}

func (r *fakeRelay) directsTo(connID string) []domain.Envelope {
	var out []domain.Envelope
	for _, d := range r.allDirects() {
		if d.connID != connID {
			continue
		}
		var env domain.Envelope
		if err := json.Unmarshal(d.frame, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

type fakeWhiteboardRepo struct {
	mu     sync.Mutex
	boards map[string]json.RawMessage
}

func newFakeWhiteboardRepo() *fakeWhiteboardRepo {
	return &fakeWhiteboardRepo{boards: make(map[string]json.RawMessage)}
}

func (r *fakeWhiteboardRepo) Get(_ context.Context, roomID string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boards[roomID], nil
}

func (r *fakeWhiteboardRepo) Put(_ context.Context, roomID string, elements json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[roomID] = elements
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	entries map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{entries: make(map[string][][]byte)}
}

func (q *fakeQueue) PublishToStream(_ context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[topic] = append(q.entries[topic], payload)
	return nil
}

func (q *fakeQueue) SubscribeToStream(ctx context.Context, topic, group string, handler func(ctx context.Context, messageID string, data []byte) error) error {
	<-ctx.Done()
	return nil
}

func (q *fakeQueue) AcknowledgeMessage(context.Context, string, string, string) error { return nil }
func (q *fakeQueue) DeleteMessage(context.Context, string, string) error              { return nil }
func (q *fakeQueue) DeleteStream(context.Context, string) error                       { return nil }

type fakeMessageRepo struct {
	mu    sync.Mutex
	saved []domain.Message
	fail  bool
}

func (r *fakeMessageRepo) Save(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.saved = append(r.saved, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByRoom(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.saved {
		if m.RoomID == roomID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeTx runs the unit of work without a real transaction.
type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePresence struct {
	mu    sync.Mutex
	seen  map[string]map[string]bool
	wiped []string
}

func newFakePresence() *fakePresence {
	return &fakePresence{seen: make(map[string]map[string]bool)}
}

func (p *fakePresence) UpdateOnlineStatus(_ context.Context, roomID, connID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[roomID] == nil {
		p.seen[roomID] = make(map[string]bool)
	}
	p.seen[roomID][connID] = true
	return nil
}

func (p *fakePresence) GetOnlineMembers(_ context.Context, roomID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for connID := range p.seen[roomID] {
		out = append(out, connID)
	}
	return out, nil
}

func (p *fakePresence) ClearRoom(_ context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, roomID)
	p.wiped = append(p.wiped, roomID)
	return nil
}

type fakeClassrooms struct {
	denied map[string]bool // userID → refused
}

func (c *fakeClassrooms) CanJoin(_ context.Context, userID, roomID string) (bool, error) {
	return !c.denied[userID], nil
}

// fakeClient satisfies contracts.Client for registry-backed session tests.
type fakeClient struct {
	mu     sync.Mutex
	connID string
	userID string
	frames [][]byte
}

func newFakeClient(connID, userID string) *fakeClient {
	return &fakeClient{connID: connID, userID: userID}
}

func (c *fakeClient) ConnectionID() string { return c.connID }
func (c *fakeClient) UserID() string       { return c.userID }
func (c *fakeClient) Close()               {}

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeClient) envelopes() []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Envelope
	for _, f := range c.frames {
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func eventsOf(envs []domain.Envelope) []string {
	var out []string
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}
