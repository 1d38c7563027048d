package match

import (
	"github.com/park285/cheese-match-server/pkg/matchdto"
)

// Sender enqueues a frame for a connection. It must not block; the router calls it
// while holding a room lock.
type Sender interface {
	Send(connID string, ev matchdto.Outbound)
}

// router fans room-scoped events out to participants. Every call happens after the
// mutation it reports is final and before the room lock is released, so per-connection
// queues see updates in mutation order.
type router struct {
	sender Sender
}

func (r router) unicast(connID string, ev matchdto.Outbound) {
	if r.sender == nil || connID == "" {
		return
	}
	r.sender.Send(connID, ev)
}

func (r router) broadcast(room *Room, ev matchdto.Outbound, except string) {
	for _, p := range room.Participants {
		if p.ConnID == except {
			continue
		}
		r.unicast(p.ConnID, ev)
	}
}

func (r router) moveAccepted(room *Room, mover string, raw matchdto.MoveInput, update matchdto.GameUpdate) {
	r.broadcast(room, matchdto.Event(matchdto.EventMove, raw), mover)
	r.broadcast(room, matchdto.Event(matchdto.EventGameUpdate, update), "")
}

func (r router) opponentJoined(room *Room, joiner string, snap matchdto.RoomSnapshot) {
	r.broadcast(room, matchdto.Event(matchdto.EventOpponentJoined, snap), joiner)
}

func (r router) gameReset(room *Room, update matchdto.GameUpdate) {
	r.broadcast(room, matchdto.Event(matchdto.EventGameReset, nil), "")
	r.broadcast(room, matchdto.Event(matchdto.EventGameUpdate, update), "")
}

func (r router) playerLeft(room *Room, left Participant) {
	r.broadcast(room, matchdto.Event(matchdto.EventPlayerDisconnected, matchdto.PlayerDisconnected{
		Player:           playerDTO(left),
		RemainingPlayers: len(room.Participants),
	}), "")
}

func playerDTO(p Participant) matchdto.Player {
	return matchdto.Player{
		ID:       p.ConnID,
		Username: p.Name,
		Side:     string(p.Side),
		Color:    p.Side.Color(),
		Ready:    p.Ready,
	}
}

func snapshotDTO(room *Room, game *GameSession) matchdto.RoomSnapshot {
	players := make([]matchdto.Player, 0, len(room.Participants))
	for _, p := range room.Participants {
		players = append(players, playerDTO(p))
	}
	return matchdto.RoomSnapshot{
		RoomID:       room.ID,
		Players:      players,
		Status:       string(room.Status),
		GameState:    string(game.State),
		Created:      room.CreatedAt,
		LastActivity: room.LastActivityAt,
	}
}

func updateDTO(o MoveOutcome, withLast bool) matchdto.GameUpdate {
	u := matchdto.GameUpdate{
		FEN:         o.FEN,
		CurrentTurn: string(o.CurrentTurn),
		MoveCount:   o.MoveCount,
	}
	if o.GameOver != nil {
		u.GameOver = &matchdto.GameOver{
			Type:    o.GameOver.Type,
			Winner:  string(o.GameOver.Winner),
			Message: o.GameOver.Message,
		}
	}
	if withLast {
		m := o.LastMove
		u.LastMove = &matchdto.MoveDetail{
			From:      m.From,
			To:        m.To,
			Promotion: m.Promotion,
			SAN:       m.SAN,
			UCI:       m.UCI,
			Side:      string(m.Side),
			Color:     m.Side.Color(),
			Check:     m.Check,
			Checkmate: m.Checkmate,
			Player:    o.Player,
		}
	}
	return u
}

// SummaryDTO converts a Summary to its listing payload.
func SummaryDTO(s Summary) matchdto.RoomSummary {
	return matchdto.RoomSummary{
		RoomID:      s.RoomID,
		PlayerCount: s.ParticipantCount,
		Status:      string(s.Status),
		Created:     s.CreatedAt,
	}
}
