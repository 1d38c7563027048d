package gateway

import (
	"sync"

	"github.com/park285/cheese-match-server/pkg/matchdto"
	"nhooyr.io/websocket"
)

// Hub maps connection ids to live sockets and implements match.Sender.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// Send enqueues ev for connID; unknown ids are ignored.
func (h *Hub) Send(connID string, ev matchdto.Outbound) {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c != nil {
		c.enqueue(ev)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every socket with StatusGoingAway.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	list := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		list = append(list, c)
	}
	h.mu.RUnlock()
	for _, c := range list {
		c.close(websocket.StatusGoingAway, reason)
	}
}
