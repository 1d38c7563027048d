package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/internal/rules"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
)

// SubmitMove validates and applies a move for connID. On success the raw move is
// echoed to the opponent and a gameUpdate goes to both participants.
func (m *Manager) SubmitMove(roomID, connID string, move matchdto.MoveInput) (MoveOutcome, error) {
	var (
		out      MoveOutcome
		finished *FinishedGame
	)
	err := m.reg.with(roomID, ErrSessionNotFound, func(e *entry) error {
		room, game := e.room, e.game
		p, ok := room.participant(connID)
		if !ok {
			return ErrNotAParticipant
		}
		if game.State != GameActive {
			return ErrGameNotActive
		}
		if p.Side != game.engine.Turn() {
			return ErrOutOfTurn
		}

		notation := move.Notation()
		res, err := game.engine.Apply(notation)
		if err != nil {
			if errors.Is(err, rules.ErrIllegalMove) {
				return fmt.Errorf("%w: %s", ErrIllegalMove, notation)
			}
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		now := m.now()
		game.MoveCount++
		game.Turn = game.engine.Turn()
		game.History = append(game.History, HistoryEntry{
			Move:   res.UCI,
			SAN:    res.SAN,
			FEN:    res.FEN,
			At:     now,
			Player: p.Name,
		})
		room.touch(now)

		out = MoveOutcome{
			FEN:         res.FEN,
			CurrentTurn: game.Turn,
			MoveCount:   game.MoveCount,
			LastMove:    res,
			Player:      p.Name,
		}
		if result := game.engine.Outcome(); result.Over() {
			game.State = GameFinished
			out.GameOver = m.gameOver(result)
			finished = finishedRecord(room, game, result, now)
		}

		m.router.moveAccepted(room, connID, move, updateDTO(out, true))
		m.observer.RoomChanged(summarize(room))
		if finished != nil {
			m.observer.GameFinished(*finished)
		}
		return nil
	})
	if err != nil {
		obslog.L().Info("match_move_rejected",
			zap.String("room_id", roomID),
			zap.String("conn_id", connID),
			zap.String("code", AsError(err).Code),
		)
		return MoveOutcome{}, err
	}

	obslog.L().Info("match_move",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.String("uci", out.LastMove.UCI),
		zap.Int("move_count", out.MoveCount),
	)
	if finished != nil {
		obslog.L().Info("match_finished", zap.String("room_id", roomID), zap.String("result", finished.Result), zap.String("method", finished.Method))
	}
	return out, nil
}

// ResetGame restores the initial position, starts a new round and makes the game
// active. A missing room is not an error; it reports false.
func (m *Manager) ResetGame(roomID string) bool {
	err := m.reg.with(roomID, ErrRoomNotFound, func(e *entry) error {
		room, game := e.room, e.game
		now := m.now()
		game.reset(now)
		game.State = GameActive
		room.touch(now)

		m.router.gameReset(room, updateDTO(MoveOutcome{
			FEN:         game.engine.FEN(),
			CurrentTurn: game.Turn,
		}, false))
		m.observer.RoomChanged(summarize(room))
		obslog.L().Info("match_reset", zap.String("room_id", roomID), zap.Int("round", game.Round))
		return nil
	})
	return err == nil
}

func (m *Manager) gameOver(o rules.Outcome) *GameOver {
	switch o.Kind {
	case rules.Checkmate:
		label := winnerLabel(o.Winner)
		return &GameOver{
			Type:    string(rules.Checkmate),
			Winner:  o.Winner,
			Method:  o.Method,
			Message: m.msgs.Text("game_over.checkmate", map[string]any{"Winner": label}, "Checkmate! "+label+" wins!"),
		}
	default:
		return &GameOver{
			Type:    string(rules.Draw),
			Method:  o.Method,
			Message: m.msgs.Text("game_over.draw", map[string]any{"Method": o.Method}, "Game drawn by "+o.Method),
		}
	}
}

func winnerLabel(s rules.Side) string {
	if s == rules.First {
		return "White"
	}
	return "Black"
}

func finishedRecord(room *Room, game *GameSession, o rules.Outcome, now time.Time) *FinishedGame {
	result := ResultDraw
	if o.Kind == rules.Checkmate {
		result = ResultBlackWins
		if o.Winner == rules.First {
			result = ResultWhiteWins
		}
	}
	return &FinishedGame{
		RoomID:    room.ID,
		Round:     game.Round,
		White:     room.nameOf(rules.First),
		Black:     room.nameOf(rules.Second),
		MovesUCI:  game.engine.MovesUCI(),
		Result:    result,
		Method:    o.Method,
		StartedAt: game.StartedAt,
		EndedAt:   now,
	}
}
