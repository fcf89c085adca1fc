package websocket

import (
	"context"
	"sync"
	"time"

	"chat-engine/internal/engine"
	"chat-engine/internal/models"
	"chat-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	SendBuffer int
}

// Conn adapts a gorilla websocket connection to the engine's Conn contract:
// a read pump feeding inbound events into the engine and a write pump
// draining the buffered send channel. Separating the pumps keeps a slow
// reader from blocking writes.
type Conn struct {
	id        string
	user      *models.User
	ws        *websocket.Conn
	eng       *engine.Engine
	opts      Options
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, user *models.User, eng *engine.Engine, opts Options) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
		eng:  eng,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) UserID() int      { return c.user.ID }
func (c *Conn) Nickname() string { return c.user.Nickname }

// Send enqueues a payload without blocking. It reports false when the
// connection is closed or the buffer is full; the dispatcher treats both as
// a dropped best-effort delivery.
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close signals both pumps to stop. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump reads inbound frames until the transport closes, then unbinds
// the connection exactly once.
func (c *Conn) ReadPump() {
	defer func() {
		c.Close()
		c.eng.Disconnected(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on connection %s: %v", c.id, err)
			}
			return
		}
		c.eng.HandleEvent(context.Background(), c, message)
	}
}

// WritePump drains the send channel to the transport and keeps the
// connection alive with pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("Write error on connection %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
