// Package matchdto holds the JSON contracts exchanged with match clients over the
// WebSocket event channel and the read-only HTTP surface.
package matchdto

import "encoding/json"

// Inbound event names.
const (
	EventUsername   = "username"
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventMove       = "move"
	EventGameReset  = "gameReset"
	EventPing       = "ping"
)

// Outbound event names. EventMove and EventGameReset are also sent outbound.
const (
	EventAck                = "ack"
	EventGameUpdate         = "gameUpdate"
	EventOpponentJoined     = "opponentJoined"
	EventPlayerDisconnected = "playerDisconnected"
	EventError              = "error"
)

// PongToken is the fixed liveness reply to ping.
const PongToken = "pong"

// Frame is one inbound client message. Ack is set when the client expects a reply.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// WantsAck reports whether the sender asked for a one-shot reply.
func (f Frame) WantsAck() bool { return f.Ack != nil }

// Outbound is one server message: either a named event or an ack reply.
type Outbound struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Event builds a named outbound event.
func Event(name string, data any) Outbound { return Outbound{Event: name, Data: data} }

// AckReply builds the reply for an inbound frame that carried an ack id.
func AckReply(id int64, data any) Outbound {
	return Outbound{Event: EventAck, Ack: &id, Data: data}
}
