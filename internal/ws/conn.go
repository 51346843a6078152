// Package ws adapts a gorilla websocket connection to the relay.Conn
// interface.
package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pairlink/internal/relay"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a frame to the peer.
	maxMessageSize = 4096             // Maximum frame size allowed from peer.
	sendBuffer     = 256
)

// Conn owns one peer's socket. The read pump feeds the registry, the write
// pump is the sole writer on the socket. Liveness is probe-driven by the
// registry sweep, so no read deadline is set.
type Conn struct {
	id   string
	room string
	ws   *websocket.Conn
	reg  *relay.Registry

	send  chan []byte
	pings chan struct{}
	done  chan struct{}

	alive atomic.Bool
	open  atomic.Bool
	once  sync.Once
}

func NewConn(id, room string, wsConn *websocket.Conn, reg *relay.Registry) *Conn {
	c := &Conn{
		id:    id,
		room:  room,
		ws:    wsConn,
		reg:   reg,
		send:  make(chan []byte, sendBuffer),
		pings: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.open.Store(true)
	return c
}

func (c *Conn) ID() string      { return c.id }
func (c *Conn) Alive() bool     { return c.alive.Load() }
func (c *Conn) SetAlive(v bool) { c.alive.Store(v) }
func (c *Conn) IsOpen() bool    { return c.open.Load() }

// Send queues a frame without blocking. A closed connection or a full
// buffer drops the frame.
func (c *Conn) Send(data []byte) error {
	if !c.open.Load() {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

// Ping queues a probe. Coalesces if one is already pending.
func (c *Conn) Ping() error {
	if !c.open.Load() {
		return websocket.ErrCloseSent
	}
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

// Terminate aborts the socket. The read pump's exit runs the leave path.
func (c *Conn) Terminate() {
	c.shutdown()
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		c.open.Store(false)
		close(c.done)
		c.ws.Close()
	})
}

// Start registers with the registry and launches the pumps.
func (c *Conn) Start() {
	c.reg.Join(c.room, c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		c.reg.Leave(c)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "connId", c.id, "error", err)
			}
			return
		}
		c.reg.Relay(c, data)
	}
}

func (c *Conn) writePump() {
	defer c.shutdown()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.pings:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
