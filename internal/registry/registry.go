package registry

import (
	"sort"
	"sync"
)

// Identity is the authenticated user bound to a connection.
type Identity struct {
	UserID      int
	DisplayName string
}

// Sink is the outbound half of a live connection. Send must not block: it
// reports false when the payload was dropped (slow or closed connection).
type Sink interface {
	Send(payload []byte) bool
	Close()
}

type binding struct {
	identity Identity
	sink     Sink
}

// Registry is the authoritative map of live connections to identities. It is
// the single piece of mutable shared presence state; all operations are
// in-memory and complete without suspension, so no caller ever holds the
// lock across I/O.
type Registry struct {
	mu            sync.RWMutex
	singleSession bool
	conns         map[string]binding
	byUser        map[int]map[string]struct{}
}

// New creates a registry. With singleSession enabled, binding a user evicts
// their previous connections, restoring replace-on-reconnect behavior for
// single-device deployments.
func New(singleSession bool) *Registry {
	return &Registry{
		singleSession: singleSession,
		conns:         make(map[string]binding),
		byUser:        make(map[int]map[string]struct{}),
	}
}

// Bind registers or re-registers the identity for a connection. It returns
// the sinks evicted by the single-session policy; the caller closes them
// outside the registry lock.
func (r *Registry) Bind(connID string, id Identity, sink Sink) []Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[connID]; ok {
		// Re-announce on a live connection: drop the old binding first so a
		// changed identity never leaves a stale inverse entry behind.
		r.removeLocked(connID, old)
	}

	var evicted []Sink
	if r.singleSession {
		for cid := range r.byUser[id.UserID] {
			b := r.conns[cid]
			evicted = append(evicted, b.sink)
			r.removeLocked(cid, b)
		}
	}

	r.conns[connID] = binding{identity: id, sink: sink}
	if r.byUser[id.UserID] == nil {
		r.byUser[id.UserID] = make(map[string]struct{})
	}
	r.byUser[id.UserID][connID] = struct{}{}
	return evicted
}

// Unbind removes the binding for a connection. Unbinding an unknown
// connection is a no-op, so duplicate disconnect signals are absorbed.
// It reports whether a binding was actually removed.
func (r *Registry) Unbind(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.conns[connID]
	if !ok {
		return false
	}
	r.removeLocked(connID, b)
	return true
}

func (r *Registry) removeLocked(connID string, b binding) {
	delete(r.conns, connID)
	if set, ok := r.byUser[b.identity.UserID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, b.identity.UserID)
		}
	}
}

// ConnectionsFor returns the live sinks for a user; empty means offline.
func (r *Registry) ConnectionsFor(userID int) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []Sink
	for connID := range r.byUser[userID] {
		sinks = append(sinks, r.conns[connID].sink)
	}
	return sinks
}

// OnlineUsers returns the currently bound identities, one entry per user,
// ordered by user id so broadcast payloads are reproducible.
func (r *Registry) OnlineUsers() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineUsersLocked()
}

func (r *Registry) onlineUsersLocked() []Identity {
	users := make([]Identity, 0, len(r.byUser))
	for userID, conns := range r.byUser {
		for connID := range conns {
			id := r.conns[connID].identity
			id.UserID = userID
			users = append(users, id)
			break
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// PresenceSnapshot returns the online-user list together with every live
// sink under one lock acquisition, so a broadcast round delivers one
// consistent view to all connections.
func (r *Registry) PresenceSnapshot() ([]Identity, []Sink) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(r.conns))
	for _, b := range r.conns {
		sinks = append(sinks, b.sink)
	}
	return r.onlineUsersLocked(), sinks
}

// AllSinks returns every live sink.
func (r *Registry) AllSinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(r.conns))
	for _, b := range r.conns {
		sinks = append(sinks, b.sink)
	}
	return sinks
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
