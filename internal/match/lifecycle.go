package match

import (
	"strings"
	"time"

	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/internal/rules"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
)

// OpenRoom creates a room with connID seated on the first side.
// A connection's events are handled sequentially, so the seat check cannot race
// with another open or join by the same connection.
func (m *Manager) OpenRoom(connID, name string) (string, error) {
	connID = strings.TrimSpace(connID)
	if connID == "" {
		return "", ErrInvalidInput
	}
	if seated := m.seatOf(connID, ""); seated != "" {
		return "", ErrAlreadyInRoom.withRoom(seated)
	}

	now := m.now()
	room := &Room{
		Participants:   []Participant{{ConnID: connID, Name: displayName(name), Side: rules.First}},
		Status:         StatusWaiting,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	e, err := m.reg.insert(room, newSession(now))
	if err != nil {
		obslog.L().Error("room_open_error", zap.String("conn_id", connID), zap.Error(err))
		return "", err
	}
	e.mu.Lock()
	id := e.room.ID
	if !e.removed {
		m.observer.RoomChanged(summarize(e.room))
	}
	e.mu.Unlock()

	obslog.L().Info("room_open", zap.String("room_id", id), zap.String("conn_id", connID))
	return id, nil
}

// JoinRoom seats connID on the free side and starts the game.
func (m *Manager) JoinRoom(roomID, connID, name string) (matchdto.RoomSnapshot, error) {
	connID = strings.TrimSpace(connID)
	if connID == "" {
		return matchdto.RoomSnapshot{}, ErrInvalidInput
	}
	seated := m.seatOf(connID, roomID)

	var snap matchdto.RoomSnapshot
	err := m.reg.with(roomID, ErrRoomNotFound, func(e *entry) error {
		room := e.room
		if room.full() {
			return ErrRoomFull
		}
		if room.indexOf(connID) >= 0 {
			return ErrAlreadyJoined
		}
		if seated != "" {
			return ErrAlreadyInRoom.withRoom(seated)
		}

		room.Participants = append(room.Participants, Participant{
			ConnID: connID,
			Name:   displayName(name),
			Side:   room.freeSide(),
		})
		if room.full() {
			room.Status = StatusReady
			for i := range room.Participants {
				room.Participants[i].Ready = true
			}
			if e.game.State == GameWaiting {
				e.game.State = GameActive
			}
		}
		room.touch(m.now())

		snap = snapshotDTO(room, e.game)
		m.router.opponentJoined(room, connID, snap)
		m.observer.RoomChanged(summarize(room))
		return nil
	})
	if err != nil {
		obslog.L().Info("room_join_rejected", zap.String("room_id", roomID), zap.String("conn_id", connID), zap.Error(err))
		return matchdto.RoomSnapshot{}, err
	}
	obslog.L().Info("room_join", zap.String("room_id", roomID), zap.String("conn_id", connID), zap.Int("players", len(snap.Players)))
	return snap, nil
}

// ReclaimIdle removes every room idle for longer than maxIdle. Rooms whose lock is
// held are skipped: a room being mutated is not idle.
func (m *Manager) ReclaimIdle(now time.Time, maxIdle time.Duration) []string {
	var removed []string
	for _, e := range m.reg.entries() {
		if !e.mu.TryLock() {
			continue
		}
		if !e.removed && now.Sub(e.room.LastActivityAt) > maxIdle {
			m.reg.remove(e)
			m.observer.RoomRemoved(e.room.ID)
			removed = append(removed, e.room.ID)
			obslog.L().Info("room_reclaim",
				zap.String("room_id", e.room.ID),
				zap.Int("players", len(e.room.Participants)),
				zap.Duration("idle", now.Sub(e.room.LastActivityAt)),
			)
		}
		e.mu.Unlock()
	}
	return removed
}

// cleanupIfEmpty removes the room when nobody is seated. The caller holds e.mu.
func (m *Manager) cleanupIfEmpty(e *entry) bool {
	if len(e.room.Participants) > 0 {
		return false
	}
	m.reg.remove(e)
	obslog.L().Info("room_cleanup", zap.String("room_id", e.room.ID))
	return true
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return matchdto.DefaultDisplayName
	}
	return name
}
