package match

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/park285/cheese-match-server/pkg/matchdto"
)

// IDGenerator yields candidate room ids.
type IDGenerator func() (string, error)

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomRoomID returns 8 upper alphanumerics from crypto/rand.
func RandomRoomID() (string, error) {
	return roomIDFrom(rand.Reader)
}

// roomIDFrom draws uniformly from the alphabet: bytes at or above the largest
// multiple of its length are discarded.
func roomIDFrom(r io.Reader) (string, error) {
	limit := 256 - 256%len(roomIDAlphabet)
	out := make([]byte, 0, matchdto.RoomIDLength)
	buf := make([]byte, matchdto.RoomIDLength)
	for len(out) < matchdto.RoomIDLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			out = append(out, roomIDAlphabet[int(c)%len(roomIDAlphabet)])
			if len(out) == matchdto.RoomIDLength {
				break
			}
		}
	}
	return string(out), nil
}

// entry guards one room and its game. removed is set under mu when the entry
// leaves the registry, so holders of a stale pointer see it as gone.
type entry struct {
	mu      sync.Mutex
	room    *Room
	game    *GameSession
	removed bool
}

// Registry maps room ids to entries. Its lock covers the map only; per-room state
// is guarded by entry.mu. Lock order: entry.mu, then Registry.mu.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*entry
	newID       IDGenerator
	maxAttempts int
}

func NewRegistry(gen IDGenerator, maxAttempts int) *Registry {
	if gen == nil {
		gen = RandomRoomID
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Registry{rooms: make(map[string]*entry), newID: gen, maxAttempts: maxAttempts}
}

// insert stores room and game under a fresh id.
func (r *Registry) insert(room *Room, game *GameSession) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.maxAttempts; i++ {
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		if _, taken := r.rooms[id]; taken || id == "" {
			continue
		}
		room.ID = id
		game.RoomID = id
		e := &entry{room: room, game: game}
		r.rooms[id] = e
		return e, nil
	}
	return nil, ErrIDExhausted
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	return e, ok
}

// remove deletes the entry. The caller holds e.mu.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	if cur, ok := r.rooms[e.room.ID]; ok && cur == e {
		delete(r.rooms, e.room.ID)
	}
	r.mu.Unlock()
	e.removed = true
}

// with runs fn with the room locked, or returns notFound.
func (r *Registry) with(id string, notFound error, fn func(e *entry) error) error {
	e, ok := r.lookup(id)
	if !ok {
		return notFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return notFound
	}
	return fn(e)
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.rooms))
	for _, e := range r.rooms {
		out = append(out, e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ListSummaries returns every live room, oldest first.
func (r *Registry) ListSummaries() []Summary {
	list := make([]Summary, 0)
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.removed {
			list = append(list, summarize(e.room))
		}
		e.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].RoomID < list[j].RoomID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}
