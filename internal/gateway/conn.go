package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-match-server/internal/obslog"
	"github.com/park285/cheese-match-server/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// Conn is one client socket. name is only touched by the reader goroutine.
type Conn struct {
	id   string
	ws   *websocket.Conn
	name string

	send      chan matchdto.Outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, queue int) *Conn {
	if queue <= 0 {
		queue = 64
	}
	ws.SetReadLimit(readLimit)
	return &Conn{
		id:   id,
		ws:   ws,
		name: matchdto.DefaultDisplayName,
		send: make(chan matchdto.Outbound, queue),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. A full queue means the client stopped reading; it is closed.
func (c *Conn) enqueue(ev matchdto.Outbound) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- ev:
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("conn_id", c.id), zap.String("event", ev.Event))
		c.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

// close is idempotent and does not wait for the closing handshake.
func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() { _ = c.ws.Close(code, reason) }()
	})
}

func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case ev := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, ev)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("conn_id", c.id), zap.Error(err))
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}
