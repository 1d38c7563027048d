package match

import (
	"github.com/park285/cheese-match-server/internal/obslog"
	"go.uber.org/zap"
)

// HandleDisconnect removes connID from the first room that seats it, tells the
// remaining participant and drops the room once empty. It never fails: a room that
// disappears mid-scan is treated as not found.
func (m *Manager) HandleDisconnect(connID string) {
	if connID == "" {
		return
	}
	for _, e := range m.reg.entries() {
		var (
			roomID  string
			deleted bool
			found   bool
		)
		e.mu.Lock()
		if !e.removed {
			if i := e.room.indexOf(connID); i >= 0 {
				found = true
				roomID = e.room.ID
				deleted = m.leave(e, i)
				if deleted {
					m.observer.RoomRemoved(roomID)
				} else {
					m.observer.RoomChanged(summarize(e.room))
				}
			}
		}
		e.mu.Unlock()
		if !found {
			continue
		}

		obslog.L().Info("room_leave", zap.String("room_id", roomID), zap.String("conn_id", connID), zap.Bool("room_removed", deleted))
		return
	}
}

// leave unseats participant i and reports whether the room was removed. The caller holds e.mu.
func (m *Manager) leave(e *entry, i int) bool {
	room, game := e.room, e.game
	left := room.Participants[i]
	room.Participants = append(room.Participants[:i:i], room.Participants[i+1:]...)
	room.touch(m.now())
	room.Status = StatusWaiting
	for j := range room.Participants {
		room.Participants[j].Ready = false
	}
	if game.State == GameActive {
		game.State = GameWaiting
	}
	if len(room.Participants) > 0 {
		m.router.playerLeft(room, left)
	}
	return m.cleanupIfEmpty(e)
}
