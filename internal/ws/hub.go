package ws

import (
	"log"
	"sync"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
)

// OperatorsPool is the room every connected operator joins, used for
// new-activity alerts and platform-wide unread totals.
const OperatorsPool = "operators:pool"

func ConversationRoom(id string) string { return "conversation:" + id }
func IdentityRoom(key string) string    { return "identity:" + key }
func OperatorRoom(id string) string     { return "operator:" + id }

// Hub is the presence registry and broadcast fan-out. It is the true state of
// "who is connected now", not a cache: it starts empty on boot and refills as
// connections re-register. All maps are guarded by one RWMutex; connect and
// disconnect churn never touches them unsynchronized.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	identities map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		identities: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection and auto-joins its own channels: the identity
// room for accounts and guests, the operator room plus the pool for staff.
// Accounts and operators are also indexed by identity for presence lookups;
// guests self-present their token and need no reverse index.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}

	key := c.identity.Key()
	if c.identity.Kind != models.IdentityGuest {
		if h.identities[key] == nil {
			h.identities[key] = make(map[*Client]struct{})
		}
		h.identities[key][c] = struct{}{}
	}

	if c.identity.IsOperator() {
		h.joinLocked(c, OperatorRoom(c.identity.OperatorID))
		h.joinLocked(c, OperatorsPool)
	} else {
		h.joinLocked(c, IdentityRoom(key))
	}
	log.Printf("[WS] connected: %s (total %d)", key, len(h.clients))
}

// Unregister removes a connection from every room and from its identity's
// connection set; an emptied set means the identity went offline. Safe to
// call for a client that was never registered.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for room := range c.rooms {
		h.leaveLocked(c, room)
	}

	key := c.identity.Key()
	if set, ok := h.identities[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.identities, key)
		}
	}
	close(c.send)
	log.Printf("[WS] disconnected: %s (total %d)", key, len(h.clients))
}

// Join adds the connection to a room. Observing a conversation room is
// distinct from owning the conversation; authorization happens before this.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Broadcast queues an event to every member of a room. Delivery is in queue
// order per client; a client whose buffer is full is dropped from delivery
// rather than stalling the room.
func (h *Hub) Broadcast(room string, ev Outbound) {
	h.BroadcastExcept(room, nil, ev)
}

// BroadcastExcept is Broadcast minus one sender, used for typing indicators.
func (h *Hub) BroadcastExcept(room string, except *Client, ev Outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		c.enqueue(ev)
	}
}

// IsOnline reports whether at least one connection represents the identity.
func (h *Hub) IsOnline(identityKey string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities[identityKey]) > 0
}

// RoomSize reports current membership of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// CloseAll force-closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
