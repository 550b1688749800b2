package registry

import (
	"context"
	"sort"
	"sync"

	"syncroom/internal/core/contracts"
	"syncroom/internal/core/domain"
)

type member struct {
	client      contracts.Client
	displayName string
}

// Registry is the node-local connection and room table. It also acts as
// the event relay: frames are fanned out to member connections through
// their buffered write pumps, so delivery order per sender is the order
// Publish was called.
type Registry struct {
	mu         sync.RWMutex
	clients    map[string]contracts.Client          // connection id → client
	rooms      map[string]map[string]member         // room id → connection id → member
	roomsOf    map[string]map[string]struct{}       // connection id → room ids
	workers    map[string]context.CancelFunc        // room id → worker cancel
	run_worker func(ctx context.Context, roomID string) error
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		rooms:   make(map[string]map[string]member),
		roomsOf: make(map[string]map[string]struct{}),
		workers: make(map[string]context.CancelFunc),
	}
}

// RunWorker installs the per-room consumer started on first join.
func (h *Registry) RunWorker(run_worker func(ctx context.Context, roomID string) error) {
	h.run_worker = run_worker
}

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ConnectionID()] = c
}

func (h *Registry) Deregister(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var left []string
	for roomID := range h.roomsOf[connID] {
		h.removeLocked(roomID, connID)
		left = append(left, roomID)
	}
	delete(h.roomsOf, connID)
	delete(h.clients, connID)
	sort.Strings(left)
	return left
}

func (h *Registry) Lookup(connID string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return "", domain.ErrConnectionNotFound
	}
	return c.UserID(), nil
}

func (h *Registry) Join(roomID, connID, displayName string) ([]domain.Member, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return nil, false, domain.ErrConnectionNotFound
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]member)
		if h.run_worker != nil {
			ctx, cancel := context.WithCancel(context.Background())
			h.workers[roomID] = cancel
			go h.run_worker(ctx, roomID)
		}
	}
	// Duplicate joins are not additive: the second join sees the same
	// member list the first one did.
	if _, joined := h.rooms[roomID][connID]; joined {
		return h.membersLocked(roomID, connID), false, nil
	}
	h.rooms[roomID][connID] = member{client: c, displayName: displayName}
	if h.roomsOf[connID] == nil {
		h.roomsOf[connID] = make(map[string]struct{})
	}
	h.roomsOf[connID][roomID] = struct{}{}
	return h.membersLocked(roomID, connID), true, nil
}

func (h *Registry) Leave(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID][connID]; !ok {
		return false
	}
	h.removeLocked(roomID, connID)
	delete(h.roomsOf[connID], roomID)
	return true
}

func (h *Registry) RoomsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.roomsOf[connID]))
	for roomID := range h.roomsOf[connID] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Registry) MembersOf(roomID string) []domain.Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.membersLocked(roomID, "")
}

func (h *Registry) Publish(ctx context.Context, roomID string, data []byte, excludeID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, m := range h.rooms[roomID] {
		if connID == excludeID {
			continue
		}
		// A closed recipient is dropped; the sender cannot act on it.
		_ = m.client.Send(ctx, data)
	}
}

func (h *Registry) PublishDirect(ctx context.Context, connID string, data []byte) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrConnectionNotFound
	}
	return c.Send(ctx, data)
}

// removeLocked drops one membership and stops the room worker once the
// room is empty. Empty rooms stay joinable; the worker restarts on the
// next join.
func (h *Registry) removeLocked(roomID, connID string) {
	delete(h.rooms[roomID], connID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
		if cancel := h.workers[roomID]; cancel != nil {
			cancel()
			delete(h.workers, roomID)
		}
	}
}

func (h *Registry) membersLocked(roomID, excludeID string) []domain.Member {
	members := make([]domain.Member, 0, len(h.rooms[roomID]))
	for connID, m := range h.rooms[roomID] {
		if connID == excludeID {
			continue
		}
		members = append(members, domain.Member{ConnectionID: connID, DisplayName: m.displayName})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ConnectionID < members[j].ConnectionID })
	return members
}
