package match

import (
	"time"

	"github.com/park285/cheese-match-server/internal/rules"
)

type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusReady   RoomStatus = "ready"
)

type GameState string

const (
	GameWaiting  GameState = "waiting"
	GameActive   GameState = "active"
	GameFinished GameState = "finished"
)

const maxParticipants = 2

// Participant is a seat taken by a transport connection.
type Participant struct {
	ConnID string
	Name   string
	Side   rules.Side
	Ready  bool
}

type Room struct {
	ID             string
	Participants   []Participant
	Status         RoomStatus
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func (r *Room) indexOf(connID string) int {
	for i, p := range r.Participants {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) participant(connID string) (Participant, bool) {
	if i := r.indexOf(connID); i >= 0 {
		return r.Participants[i], true
	}
	return Participant{}, false
}

// freeSide returns the side not taken yet; First when both are free.
func (r *Room) freeSide() rules.Side {
	taken := map[rules.Side]bool{}
	for _, p := range r.Participants {
		taken[p.Side] = true
	}
	if !taken[rules.First] {
		return rules.First
	}
	return rules.Second
}

func (r *Room) nameOf(side rules.Side) string {
	for _, p := range r.Participants {
		if p.Side == side {
			return p.Name
		}
	}
	return ""
}

func (r *Room) full() bool { return len(r.Participants) >= maxParticipants }

func (r *Room) touch(now time.Time) { r.LastActivityAt = now }

// HistoryEntry is one accepted move.
type HistoryEntry struct {
	Move   string
	SAN    string
	FEN    string
	At     time.Time
	Player string
}

// GameSession is the board state bound 1:1 to a room.
type GameSession struct {
	RoomID    string
	State     GameState
	Turn      rules.Side
	MoveCount int
	History   []HistoryEntry
	Round     int
	StartedAt time.Time

	engine *rules.Engine
}

func newSession(now time.Time) *GameSession {
	return &GameSession{
		State:     GameWaiting,
		Turn:      rules.First,
		Round:     1,
		StartedAt: now,
		engine:    rules.New(),
	}
}

func (g *GameSession) reset(now time.Time) {
	g.engine.Reset()
	g.Turn = rules.First
	g.MoveCount = 0
	g.History = nil
	g.Round++
	g.StartedAt = now
}

// GameOver describes a finished game. Winner is empty for draws.
type GameOver struct {
	Type    string
	Winner  rules.Side
	Method  string
	Message string
}

// MoveOutcome is the post-move state sent to both participants.
type MoveOutcome struct {
	FEN         string
	CurrentTurn rules.Side
	MoveCount   int
	GameOver    *GameOver
	LastMove    rules.MoveResult
	Player      string
}

// Summary is the listing view of a room.
type Summary struct {
	RoomID           string
	ParticipantCount int
	Status           RoomStatus
	CreatedAt        time.Time
}

func summarize(r *Room) Summary {
	return Summary{
		RoomID:           r.ID,
		ParticipantCount: len(r.Participants),
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
}

// FinishedGame is handed to observers when a round ends.
type FinishedGame struct {
	RoomID    string
	Round     int
	White     string
	Black     string
	MovesUCI  []string
	Result    string
	Method    string
	StartedAt time.Time
	EndedAt   time.Time
}

// PGN result tokens.
const (
	ResultWhiteWins = "1-0"
	ResultBlackWins = "0-1"
	ResultDraw      = "1/2-1/2"
)
