package realtime

import (
	"log"
	"sync"
)

// Hub tracks connected sessions, chat room membership and logged-in
// agents, and routes server events to them. It is the realtime side of
// the chat service's notifier.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	agents map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		agents: make(map[string]*Client),
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	for chatID := range c.rooms {
		if members, ok := h.rooms[chatID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	if c.agentID != "" && h.agents[c.agentID] == c {
		delete(h.agents, c.agentID)
	}
	already := c.closed
	c.closed = true
	h.mu.Unlock()
	// The send channel stays open so a broadcast that snapshotted this
	// client before unregister ran can still deliver without panicking.
	// writePump exits via done instead.
	if !already {
		close(c.done)
	}
}

func (h *Hub) join(c *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[chatID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[chatID] = members
	}
	members[c] = struct{}{}
	c.rooms[chatID] = struct{}{}
}

func (h *Hub) leave(c *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[chatID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
	delete(c.rooms, chatID)
}

// bindAgent ties a connection to a logged-in agent. A relogin on a new
// connection steals the binding from the old one.
func (h *Hub) bindAgent(c *Client, agentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.agentID = agentID
	h.agents[agentID] = c
}

func (h *Hub) roomMembers(chatID string, except *Client) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[chatID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		if c == except {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(c *Client, frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Printf("[realtime] client %s send buffer full, dropping frame", c.id)
	}
}

func (h *Hub) send(c *Client, event string, data any) {
	h.deliver(c, encode(event, data))
}

// ToChat broadcasts an event to every session joined to the chat room.
func (h *Hub) ToChat(chatID, event string, data any) {
	frame := encode(event, data)
	for _, c := range h.roomMembers(chatID, nil) {
		h.deliver(c, frame)
	}
}

func (h *Hub) toChatExcept(chatID string, except *Client, event string, data any) {
	frame := encode(event, data)
	for _, c := range h.roomMembers(chatID, except) {
		h.deliver(c, frame)
	}
}

// ToAgents fans an event out to every logged-in agent session.
func (h *Hub) ToAgents(event string, data any) {
	frame := encode(event, data)
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.agents))
	for _, c := range h.agents {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.deliver(c, frame)
	}
}

// ToAgent targets one agent's session. A no-op when the agent has no
// live connection.
func (h *Hub) ToAgent(agentID, event string, data any) {
	h.mu.RLock()
	c, ok := h.agents[agentID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(c, encode(event, data))
}
