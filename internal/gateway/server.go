// Package gateway is the transport edge: WebSocket accept and per-connection
// read/write loops, event dispatch into match.Manager, and the read-only HTTP surface.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-match-server/internal/match"
	"github.com/park285/cheese-match-server/internal/msgcat"
	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ClusterLister lists room summaries mirrored outside this process.
type ClusterLister interface {
	List(ctx context.Context) ([]matchdto.RoomSummary, error)
}

type Options struct {
	AllowedOrigins []string
	Version        string
	SendQueueSize  int
	Catalog        *msgcat.Catalog
	Cluster        ClusterLister
	Now            func() time.Time
}

type Server struct {
	hub     *Hub
	matches *match.Manager
	msgs    *msgcat.Catalog
	cluster ClusterLister
	version string
	queue   int
	now     func() time.Time

	origins    map[string]bool
	anyOrigin  bool
	acceptOpts *websocket.AcceptOptions

	wg sync.WaitGroup
}

func NewServer(hub *Hub, matches *match.Manager, opts Options) *Server {
	s := &Server{
		hub:     hub,
		matches: matches,
		msgs:    opts.Catalog,
		cluster: opts.Cluster,
		version: opts.Version,
		queue:   opts.SendQueueSize,
		now:     opts.Now,
		origins: map[string]bool{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			s.anyOrigin = true
			continue
		}
		s.origins[o] = true
	}
	// Origins are matched in full (scheme, host, port) by originAllowed before
	// Accept, the same rule CORS uses; nhooyr's host-only patterns are bypassed.
	s.acceptOpts = &websocket.AcceptOptions{InsecureSkipVerify: true}
	return s
}

// originAllowed reports whether a request Origin is in the allow list.
func (s *Server) originAllowed(origin string) bool {
	return s.anyOrigin || s.origins[strings.TrimRight(origin, "/")]
}

// Shutdown closes every socket and waits for their handlers until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll("server shutting down")
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveConn(ctx context.Context, ws *websocket.Conn) {
	c := newConn(uuid.NewString(), ws, s.queue)
	s.hub.add(c)
	obslog.L().Info("ws_accept", zap.String("conn_id", c.id), zap.Int("conns", s.hub.Len()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writeLoop(ctx)

	defer func() {
		s.matches.HandleDisconnect(c.id)
		s.hub.remove(c.id)
		c.close(websocket.StatusNormalClosure, "")
		obslog.L().Info("ws_close", zap.String("conn_id", c.id), zap.Int("conns", s.hub.Len()))
	}()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		var f matchdto.Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			s.fail(c, f, match.ErrInvalidInput)
			continue
		}
		s.dispatch(c, f)
	}
}

func (s *Server) dispatch(c *Conn, f matchdto.Frame) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("ws_dispatch_panic", zap.String("conn_id", c.id), zap.String("event", f.Event), zap.Any("panic", r))
			s.fail(c, f, match.ErrInternal)
		}
	}()

	switch f.Event {
	case matchdto.EventUsername:
		name, err := matchdto.DecodeUsername(f.Data)
		if err != nil {
			s.fail(c, f, match.ErrInvalidInput)
			return
		}
		c.name = name

	case matchdto.EventCreateRoom:
		id, err := s.matches.OpenRoom(c.id, c.name)
		if err != nil {
			s.fail(c, f, err)
			return
		}
		s.ack(c, f, matchdto.CreateRoomReply{RoomID: id})

	case matchdto.EventJoinRoom:
		var req matchdto.JoinRoomRequest
		if err := matchdto.Decode(f.Data, &req); err != nil {
			s.fail(c, f, match.ErrInvalidInput)
			return
		}
		id, err := matchdto.NormalizeRoomID(req.RoomID)
		if err != nil {
			s.fail(c, f, match.ErrRoomNotFound)
			return
		}
		snap, err := s.matches.JoinRoom(id, c.id, c.name)
		if err != nil {
			s.fail(c, f, err)
			return
		}
		s.ack(c, f, snap)

	case matchdto.EventMove:
		var req matchdto.MoveRequest
		if err := matchdto.Decode(f.Data, &req); err != nil {
			s.fail(c, f, match.ErrInvalidInput)
			return
		}
		id, err := req.Validate()
		if err != nil {
			s.fail(c, f, match.ErrInvalidInput)
			return
		}
		if _, err := s.matches.SubmitMove(id, c.id, req.Move); err != nil {
			s.fail(c, f, err)
			return
		}
		s.ack(c, f, matchdto.OKReply{OK: true})

	case matchdto.EventGameReset:
		var req matchdto.ResetRequest
		if err := matchdto.Decode(f.Data, &req); err != nil {
			s.fail(c, f, match.ErrInvalidInput)
			return
		}
		if id, err := matchdto.NormalizeRoomID(req.Room); err == nil {
			s.matches.ResetGame(id)
		}
		s.ack(c, f, matchdto.OKReply{OK: true})

	case matchdto.EventPing:
		s.ack(c, f, matchdto.PongToken)

	default:
		s.fail(c, f, match.ErrUnknownEvent)
	}
}

func (s *Server) ack(c *Conn, f matchdto.Frame, data any) {
	if f.WantsAck() {
		c.enqueue(matchdto.AckReply(*f.Ack, data))
	}
}

// fail answers an acked request with an error reply. Move failures, and any failure
// without an ack id, go out as an "error" event to this connection only.
func (s *Server) fail(c *Conn, f matchdto.Frame, err error) {
	e := match.AsError(err)
	msg := s.message(e)
	if f.WantsAck() {
		c.enqueue(matchdto.AckReply(*f.Ack, matchdto.ErrorReply{Error: true, Message: msg, Code: e.Code}))
		if f.Event != matchdto.EventMove {
			return
		}
	}
	c.enqueue(matchdto.Event(matchdto.EventError, matchdto.ErrorEvent{Message: msg, Code: e.Code}))
}

func (s *Server) message(e *match.Error) string {
	return s.msgs.Text("errors."+e.Code, map[string]any{"RoomID": e.RoomID}, e.Message)
}
