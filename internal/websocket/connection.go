package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatwire/pkg/types"
)

// Connection wraps a WebSocket transport handle with the identity bound
// at authentication and a single writer goroutine. All outbound frames
// go through writeCh; gorilla conns do not allow concurrent writes.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	identity  *types.UserIdentity // bound exactly once, nil before auth
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewConnection creates a connection wrapper and starts its write loop.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteEvent queues an enveloped event for delivery. A full buffer or a
// closed connection returns an error; delivery past that point is
// best-effort by design.
func (c *Connection) WriteEvent(event string, data interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return ErrInvalidJSON
		}
		raw = encoded
	}

	frame, err := json.Marshal(types.Envelope{Event: event, Data: raw})
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close terminates the transport and stops the write loop. Safe to call
// repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// ID returns the connection's unique id, assigned independently of any
// user identity.
func (c *Connection) ID() string {
	return c.id
}

// BindIdentity attaches the authenticated identity. A connection's
// identity is set exactly once and never reassigned.
func (c *Connection) BindIdentity(identity *types.UserIdentity) error {
	if identity == nil {
		return ErrNilIdentity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity != nil {
		return ErrIdentityAlreadyBound
	}
	c.identity = identity
	return nil
}

// Identity returns the bound identity, or nil before authentication.
func (c *Connection) Identity() *types.UserIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Done exposes the connection's lifetime for goroutines tied to it.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
