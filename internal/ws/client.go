// Package ws implements the live-delivery side of the messaging subsystem.
// This file holds the per-connection state and its read/write pumps.
package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aulalibre/go-aula-backend/internal/config"
	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// Client is one live, authenticated duplex connection. It is created after
// a successful handshake, registered for the lifetime of the socket, and
// destroyed on disconnect. Clients are never persisted.
type Client struct {
	ID     string
	UserID int64
	Role   domain.Role

	conn *websocket.Conn
	cfg  config.WSConfig

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection for the given identity.
func NewClient(conn *websocket.Conn, userID int64, role domain.Role, cfg config.WSConfig) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
	}
}

// TrySend queues data for delivery without blocking. It returns false when
// the client is closed or its buffer is full; the caller treats either as
// a dropped best-effort push.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend marks the client closed and closes the send channel exactly
// once, which terminates the write pump.
func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// ReadPump consumes the socket until it errors or closes. Inbound data
// frames are discarded — clients talk to the API over HTTP and the socket
// exists for server pushes — but the pump keeps the pong handler running
// and detects disconnects. It unregisters the client on exit.
func (c *Client) ReadPump(reg *Registry) {
	defer func() {
		reg.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().
					Str("connection_id", c.ID).
					Int64("user_id", c.UserID).
					Err(err).
					Msg("websocket read ended")
			}
			return
		}
	}
}

// WritePump drains the send channel onto the socket, enforcing the write
// deadline per frame and keeping the connection alive with periodic pings.
// It exits when the send channel closes or a write fails; a failed write
// bounds the cost of a dead peer to one WriteWait.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
