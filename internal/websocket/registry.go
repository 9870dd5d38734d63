package websocket

import (
	"sync"

	"chatwire/pkg/types"
)

// Registry is the presence table: userID → set of live authenticated
// connections. A user is online iff their set is non-empty. The mutex
// guards every mutation together with the transition decision, so two
// near-simultaneous disconnects cannot both skip the offline edge.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[string]*Connection // userID -> connID -> Connection
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]map[string]*Connection),
	}
}

// Add inserts an authenticated connection and reports whether the user
// transitioned from offline to online (zero-to-one connections).
func (r *Registry) Add(conn *Connection) (wentOnline bool, err error) {
	if conn == nil {
		return false, ErrNilConnection
	}
	identity := conn.Identity()
	if identity == nil {
		return false, ErrConnectionNotAuthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.connections[identity.ID]
	if !exists {
		set = make(map[string]*Connection)
		r.connections[identity.ID] = set
	}
	set[conn.ID()] = conn

	return len(set) == 1, nil
}

// Remove deletes a connection and reports whether the user transitioned
// to offline (their last connection went away). Idempotent: removing an
// unknown connection reports no transition.
func (r *Registry) Remove(conn *Connection) (wentOffline bool) {
	if conn == nil {
		return false
	}
	identity := conn.Identity()
	if identity == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.connections[identity.ID]
	if !exists {
		return false
	}
	if _, tracked := set[conn.ID()]; !tracked {
		return false
	}

	delete(set, conn.ID())
	if len(set) == 0 {
		delete(r.connections, identity.ID)
		return true
	}
	return false
}

// Connections returns all live connections for a user; empty when the
// user is offline.
func (r *Registry) Connections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.connections[userID]
	conns := make([]*Connection, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// All returns every live connection for broadcast fan-out.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Connection
	for _, set := range r.connections {
		for _, conn := range set {
			conns = append(conns, conn)
		}
	}
	return conns
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[userID]) > 0
}

// OnlineIdentities returns one identity per online user, for the
// point-in-time snapshot sent at connect.
func (r *Registry) OnlineIdentities() []types.UserIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]types.UserIdentity, 0, len(r.connections))
	for _, set := range r.connections {
		for _, conn := range set {
			if identity := conn.Identity(); identity != nil {
				identities = append(identities, *identity)
			}
			break
		}
	}
	return identities
}

// Stats reports registry size for logging and health endpoints.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, set := range r.connections {
		total += len(set)
	}
	return map[string]int{
		"online_users":      len(r.connections),
		"total_connections": total,
	}
}
