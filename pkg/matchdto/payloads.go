package matchdto

import "time"

type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Side     string `json:"side"`
	Color    string `json:"color"`
	Ready    bool   `json:"ready"`
}

// RoomSnapshot is the room as seen by clients (joinRoom ack, opponentJoined).
type RoomSnapshot struct {
	RoomID       string    `json:"roomId"`
	Players      []Player  `json:"players"`
	Status       string    `json:"status"`
	GameState    string    `json:"gameState"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"lastActivity"`
}

type CreateRoomReply struct {
	RoomID string `json:"roomId"`
}

// ErrorReply is the ack payload of a failed request.
type ErrorReply struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEvent is the payload of the outbound "error" event.
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type MoveDetail struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
	Side      string `json:"side"`
	Color     string `json:"color"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Player    string `json:"player,omitempty"`
}

type GameOver struct {
	Type    string `json:"type"`
	Winner  string `json:"winner,omitempty"`
	Message string `json:"message"`
}

// GameUpdate is the authoritative post-move (or post-reset) state sync.
type GameUpdate struct {
	FEN         string      `json:"fen"`
	CurrentTurn string      `json:"currentTurn"`
	MoveCount   int         `json:"moveCount"`
	GameOver    *GameOver   `json:"gameOver"`
	LastMove    *MoveDetail `json:"lastMove"`
}

type PlayerDisconnected struct {
	Player           Player `json:"player"`
	RemainingPlayers int    `json:"remainingPlayers"`
}

type StatusResponse struct {
	Message     string    `json:"message"`
	Version     string    `json:"version"`
	Status      string    `json:"status"`
	ActiveRooms int       `json:"activeRooms"`
	Timestamp   time.Time `json:"timestamp"`
}

type RoomSummary struct {
	RoomID      string    `json:"roomId"`
	PlayerCount int       `json:"playerCount"`
	Status      string    `json:"status"`
	Created     time.Time `json:"created"`
}

type RoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
	Total int           `json:"total"`
}

type OKReply struct {
	OK bool `json:"ok"`
}
