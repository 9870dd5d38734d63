package session

import (
	"errors"
	"log"

	"chatwire/internal/websocket"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Manager owns the connection lifecycle: it authenticates new
// connections against the token verifier, keeps the presence registry,
// and exposes the fan-out primitives the router delivers through.
type Manager struct {
	verifier interfaces.TokenVerifier
	registry *websocket.Registry
}

// NewManager creates a session manager.
func NewManager(verifier interfaces.TokenVerifier, registry *websocket.Registry) *Manager {
	return &Manager{
		verifier: verifier,
		registry: registry,
	}
}

// OnConnect authenticates a new connection. On failure the caller
// terminates the transport with nothing emitted. On success the
// identity is bound, presence is updated, an online transition is
// broadcast, and the connection receives the online-users snapshot.
func (m *Manager) OnConnect(conn *websocket.Connection, token string) error {
	identity, err := m.verifier.VerifyToken(token)
	if err != nil {
		if !errors.Is(err, interfaces.ErrInvalidToken) && !errors.Is(err, interfaces.ErrUserNotFound) {
			log.Printf("token verification failed: %v", err)
		}
		return ErrAuthenticationFailed
	}

	if err := conn.BindIdentity(identity); err != nil {
		return err
	}

	wentOnline, err := m.registry.Add(conn)
	if err != nil {
		return err
	}

	if wentOnline {
		m.Broadcast(types.EventPresenceChanged, types.PresenceChangedPayload{
			UserID: identity.ID,
			Status: types.PresenceOnline,
		})
	}

	if err := m.EmitTo(conn, types.EventOnlineUsers, m.OnlineUsers()); err != nil {
		log.Printf("failed to send presence snapshot to %s: %v", identity.Username, err)
	}

	log.Printf("connection established: user=%s conn=%s", identity.Username, conn.ID())
	return nil
}

// OnDisconnect removes the connection from presence. The offline
// transition broadcasts only when the user's last connection went away;
// a user with another tab still open stays online.
func (m *Manager) OnDisconnect(conn *websocket.Connection) {
	identity := conn.Identity()
	if identity == nil {
		return
	}

	if m.registry.Remove(conn) {
		m.Broadcast(types.EventPresenceChanged, types.PresenceChangedPayload{
			UserID: identity.ID,
			Status: types.PresenceOffline,
		})
	}

	log.Printf("connection closed: user=%s conn=%s", identity.Username, conn.ID())
}

// FindConnections returns the user's live connections; empty when
// offline. Persistence never depends on this being non-empty.
func (m *Manager) FindConnections(userID string) []*websocket.Connection {
	return m.registry.Connections(userID)
}

// IsOnline reports live presence for a user.
func (m *Manager) IsOnline(userID string) bool {
	return m.registry.IsOnline(userID)
}

// OnlineUsers returns the point-in-time snapshot sent to new
// connections.
func (m *Manager) OnlineUsers() []types.OnlineUser {
	identities := m.registry.OnlineIdentities()
	users := make([]types.OnlineUser, 0, len(identities))
	for _, identity := range identities {
		users = append(users, types.OnlineUser{
			ID:           identity.ID,
			Username:     identity.Username,
			DisplayColor: identity.DisplayColor,
			IsOnline:     true,
		})
	}
	return users
}

// Broadcast delivers an event to every live connection. Delivery is
// best-effort; a failed write affects only that connection.
func (m *Manager) Broadcast(event string, data interface{}) {
	for _, conn := range m.registry.All() {
		if err := conn.WriteEvent(event, data); err != nil {
			log.Printf("broadcast delivery failed: conn=%s event=%s: %v", conn.ID(), event, err)
		}
	}
}

// EmitTo delivers an event to a single connection.
func (m *Manager) EmitTo(conn *websocket.Connection, event string, data interface{}) error {
	return conn.WriteEvent(event, data)
}

// EmitToUser delivers an event to all of a user's connections, keeping
// multiple tabs consistent. Delivering to zero connections is not an
// error.
func (m *Manager) EmitToUser(userID string, event string, data interface{}) {
	for _, conn := range m.registry.Connections(userID) {
		if err := conn.WriteEvent(event, data); err != nil {
			log.Printf("user delivery failed: user=%s conn=%s event=%s: %v", userID, conn.ID(), event, err)
		}
	}
}

// Stats exposes registry counters for the health endpoint.
func (m *Manager) Stats() map[string]int {
	return m.registry.Stats()
}
