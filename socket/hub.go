package socket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/models"
)

// Hub maintains, per ticket, the set of live connections currently in that
// ticket's conversation. Membership is a pure in-memory cache of "who is
// listening" and is rebuilt from client rejoins after a restart.
type Hub struct {
	registry *Registry
	store    TicketStore
	locks    *ticketLocks

	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

// NewHub creates an empty room router over the given registry and store.
func NewHub(registry *Registry, store TicketStore, locks *ticketLocks) *Hub {
	h := &Hub{
		registry: registry,
		store:    store,
		locks:    locks,
		rooms:    make(map[string]map[*Client]bool),
	}
	return h
}

// Join admits c into the ticket's room. The membership add and the history
// replay happen under the ticket's exclusive scope, so the joiner receives
// the full ordered backlog before any concurrently broadcast message, with
// no gap and no duplicate.
func (h *Hub) Join(ctx context.Context, c *Client, ticketID string) error {
	sess, ok := h.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}

	release, err := h.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := h.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if sess.Role == models.RoleUser && sess.SessionID != ticket.SessionID {
		return ErrAccessDenied
	}

	history, err := h.store.ListMessages(ctx, ticketID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []models.Message{}
	}

	h.mu.Lock()
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[ticketID] = room
	}
	room[c] = true
	c.rooms[ticketID] = true
	h.mu.Unlock()

	c.enqueue(encodeEvent(EventLoadMessages, history))
	h.broadcastExcept(ticketID, c, EventParticipantJoined, ParticipantPayload{Role: sess.Role})

	zap.S().Debugw("connection joined ticket room",
		"connId", c.ID,
		"ticketId", ticketID,
		"role", sess.Role,
	)
	return nil
}

// Leave removes c from the ticket's room. Leaving a room one is not in is a
// no-op, not an error.
func (h *Hub) Leave(c *Client, ticketID string) {
	sess, _ := h.registry.Lookup(c.ID)

	h.mu.Lock()
	room, ok := h.rooms[ticketID]
	member := ok && room[c]
	if member {
		delete(room, c)
		delete(c.rooms, ticketID)
		if len(room) == 0 {
			delete(h.rooms, ticketID)
		}
	}
	h.mu.Unlock()

	if member {
		h.broadcastExcept(ticketID, c, EventParticipantLeft, ParticipantPayload{Role: sess.Role})
	}
}

// RemoveAll drops c from every room it holds; called synchronously on
// disconnect.
func (h *Hub) RemoveAll(c *Client) {
	sess, _ := h.registry.Lookup(c.ID)

	h.mu.Lock()
	var left []string
	for ticketID := range c.rooms {
		if room, ok := h.rooms[ticketID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, ticketID)
			}
		}
		left = append(left, ticketID)
	}
	c.rooms = make(map[string]bool)
	h.mu.Unlock()

	for _, ticketID := range left {
		h.broadcastExcept(ticketID, c, EventParticipantLeft, ParticipantPayload{Role: sess.Role})
	}
}

// InRoom reports whether c has joined the ticket's room.
func (h *Hub) InRoom(c *Client, ticketID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[ticketID]
	return ok && room[c]
}

// AdminPresent reports whether any admin connection is currently in the
// ticket's room.
func (h *Hub) AdminPresent(ticketID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[ticketID] {
		if sess, ok := h.registry.Lookup(c.ID); ok && sess.Role == models.RoleAdmin {
			return true
		}
	}
	return false
}

// Broadcast delivers an event to every current member of the ticket's room.
// Delivery is fire-and-forget; a member whose send buffer is full misses the
// frame rather than blocking the sender.
func (h *Hub) Broadcast(ticketID, event string, data interface{}) {
	h.broadcastExcept(ticketID, nil, event, data)
}

func (h *Hub) broadcastExcept(ticketID string, skip *Client, event string, data interface{}) {
	frame := encodeEvent(event, data)

	h.mu.Lock()
	members := make([]*Client, 0, len(h.rooms[ticketID]))
	for c := range h.rooms[ticketID] {
		if c != skip {
			members = append(members, c)
		}
	}
	h.mu.Unlock()

	for _, c := range members {
		c.enqueue(frame)
	}
}
