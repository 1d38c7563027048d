// Package match coordinates two-player chess rooms: room lifecycle, turn authority,
// move fan-out and disconnect cleanup. Transport is reached only through Sender.
package match

import (
	"time"

	"github.com/park285/cheese-match-server/internal/msgcat"
	"github.com/park285/cheese-match-server/pkg/matchdto"
)

type Manager struct {
	reg      *Registry
	router   router
	observer Observer
	msgs     *msgcat.Catalog
	now      func() time.Time

	idGen       IDGenerator
	maxAttempts int
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(m *Manager) { m.idGen = gen }
}

func WithMaxIDAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithCatalog sets the catalog used for game-over messages.
func WithCatalog(c *msgcat.Catalog) Option {
	return func(m *Manager) { m.msgs = c }
}

func NewManager(sender Sender, opts ...Option) *Manager {
	m := &Manager{
		router:   router{sender: sender},
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reg = NewRegistry(m.idGen, m.maxAttempts)
	return m
}

// ActiveRooms reports the number of live rooms.
func (m *Manager) ActiveRooms() int { return m.reg.Len() }

func (m *Manager) ListSummaries() []Summary { return m.reg.ListSummaries() }

// Snapshot returns the client view of a room.
func (m *Manager) Snapshot(roomID string) (matchdto.RoomSnapshot, error) {
	var snap matchdto.RoomSnapshot
	err := m.reg.with(roomID, ErrRoomNotFound, func(e *entry) error {
		snap = snapshotDTO(e.room, e.game)
		return nil
	})
	return snap, err
}

// BoardMoves returns the moves of the current round in UCI notation.
func (m *Manager) BoardMoves(roomID string) ([]string, error) {
	var moves []string
	err := m.reg.with(roomID, ErrSessionNotFound, func(e *entry) error {
		moves = e.game.engine.MovesUCI()
		return nil
	})
	return moves, err
}

// seatOf returns the id of a room other than skip where connID is seated. Rooms are
// locked one at a time, never nested.
func (m *Manager) seatOf(connID, skip string) string {
	for _, e := range m.reg.entries() {
		e.mu.Lock()
		found := !e.removed && e.room.ID != skip && e.room.indexOf(connID) >= 0
		id := e.room.ID
		e.mu.Unlock()
		if found {
			return id
		}
	}
	return ""
}
