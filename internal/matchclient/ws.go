package matchclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/park285/cheese-match-server/pkg/matchdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Session is one WebSocket connection to the match server.
type Session struct {
	conn    *websocket.Conn
	nextAck int64
}

// Frame is an inbound server message with its payload left raw.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Dial(ctx context.Context, wsURL, origin string) (*Session, error) {
	opts := &websocket.DialOptions{CompressionMode: websocket.CompressionDisabled}
	if origin != "" {
		opts.HTTPHeader = http.Header{"Origin": {origin}}
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return &Session{conn: conn}, nil
}

func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Emit sends an event without asking for a reply.
func (s *Session) Emit(ctx context.Context, event string, data any) error {
	return wsjson.Write(ctx, s.conn, map[string]any{"event": event, "data": data})
}

// Request sends an event with a fresh ack id and waits for the matching ack.
// Events that arrive in between are handed to onEvent (may be nil).
func (s *Session) Request(ctx context.Context, event string, data any, onEvent func(Frame)) (json.RawMessage, error) {
	s.nextAck++
	id := s.nextAck
	msg := map[string]any{"event": event, "ack": id}
	if data != nil {
		msg["data"] = data
	}
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return nil, err
	}
	for {
		f, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if f.Event == matchdto.EventAck && f.Ack != nil && *f.Ack == id {
			return f.Data, nil
		}
		if onEvent != nil {
			onEvent(f)
		}
	}
}

func (s *Session) Next(ctx context.Context) (Frame, error) {
	var f Frame
	err := wsjson.Read(ctx, s.conn, &f)
	return f, err
}

// Ping measures one ping/pong round trip.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	raw, err := s.Request(ctx, matchdto.EventPing, nil, nil)
	if err != nil {
		return 0, err
	}
	var pong string
	if err := json.Unmarshal(raw, &pong); err != nil || pong != matchdto.PongToken {
		return 0, fmt.Errorf("unexpected ping reply: %s", raw)
	}
	return time.Since(start), nil
}
