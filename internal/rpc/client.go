package rpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// sessionConn is one connected client: a WebSocket with a buffered send
// queue drained by a write pump, so neither replies nor notifications block
// the caller on a slow socket. It implements session.Sender.
type sessionConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newSessionConn(conn *websocket.Conn) *sessionConn {
	c := &sessionConn{
		id:   newSessionID(),
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func newSessionID() string {
	var b [8]byte
	rand.Read(b[:]) // crypto/rand never fails on supported platforms
	return hex.EncodeToString(b[:])
}

func (c *sessionConn) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// enqueue queues data for the write pump. Fails when the session is closed
// or its buffer is full; a client that stopped draining does not get to
// stall the server.
func (c *sessionConn) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("session closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("session send buffer full")
	}
}

// Send delivers one serialized pass event as a notification. The bounded
// wait comes from the buffered queue: either there is room now or the
// session is considered unable to receive.
func (c *sessionConn) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := passNotification(payload)
	if err != nil {
		return errors.Wrap(err, "build notification")
	}
	return c.enqueue(data)
}

func (c *sessionConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
