package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is a deployment concern; the token is the gate.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// ConnectionLifecycle is implemented by the session manager: it owns
// authentication, presence, and the registry.
type ConnectionLifecycle interface {
	// OnConnect authenticates the connection. An error means the
	// connection must be terminated with nothing emitted.
	OnConnect(conn *Connection, token string) error
	OnDisconnect(conn *Connection)
}

// EventDispatcher is implemented by the message router.
type EventDispatcher interface {
	Dispatch(ctx context.Context, conn *Connection, data []byte)
}

// Handler upgrades HTTP requests to authenticated chat connections and
// runs each connection's read pump.
type Handler struct {
	lifecycle    ConnectionLifecycle
	dispatcher   EventDispatcher
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler.
func NewHandler(lifecycle ConnectionLifecycle, dispatcher EventDispatcher, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		lifecycle:    lifecycle,
		dispatcher:   dispatcher,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket handles a connection attempt. The bearer token comes
// from the `token` query parameter or the Authorization header; an
// invalid token terminates the socket with no payload, matching the
// fail-closed handshake contract.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(wsConn)

	if err := h.lifecycle.OnConnect(conn, token); err != nil {
		// Fail closed: no close frame, no error event.
		_ = conn.Close()
		return
	}

	go h.handleConnection(conn, wsConn)
}

// handleConnection runs the read pump. Events are dispatched
// synchronously so each connection's events are processed in arrival
// order; a slow store call stalls only this connection.
func (h *Handler) handleConnection(conn *Connection, wsConn *websocket.Conn) {
	defer func() {
		h.lifecycle.OnDisconnect(conn)
		_ = conn.Close()
	}()

	if err := wsConn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("failed to set read deadline: %v", err)
		return
	}
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := wsConn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.dispatcher.Dispatch(context.Background(), conn, data)
		}
	}
}
