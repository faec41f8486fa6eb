package core

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps user identities to their live connections.
// A user may hold several connections (devices, tabs); a connection belongs
// to at most one user at a time.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]map[string]Conn // user -> conn id -> conn
	byConn map[string]int64          // conn id -> user
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]map[string]Conn),
		byConn: make(map[string]int64),
	}
}

// Register adds conn to userID's entry, creating the entry on first use.
// A connection already registered under another user is moved.
func (r *Registry) Register(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byConn[conn.ID()]; ok && owner != userID {
		r.removeLocked(owner, conn.ID())
	}

	entry := r.byUser[userID]
	if entry == nil {
		entry = make(map[string]Conn)
		r.byUser[userID] = entry
	}
	entry[conn.ID()] = conn
	r.byConn[conn.ID()] = userID
}

// Unregister removes conn from userID's entry. It reports whether anything was removed.
func (r *Registry) Unregister(userID int64, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.byConn[conn.ID()]
	if !ok || owner != userID {
		return false
	}
	r.removeLocked(userID, conn.ID())
	return true
}

// Remove unregisters conn from whichever user owns it.
func (r *Registry) Remove(conn Conn) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.byConn[conn.ID()]
	if !ok {
		return 0, false
	}
	r.removeLocked(owner, conn.ID())
	return owner, true
}

func (r *Registry) removeLocked(userID int64, connID string) {
	if entry := r.byUser[userID]; entry != nil {
		delete(entry, connID)
		if len(entry) == 0 {
			delete(r.byUser, userID)
		}
	}
	delete(r.byConn, connID)
}

// Connections returns a snapshot of userID's connections, oldest first.
// The slice is never shared with the registry.
func (r *Registry) Connections(userID int64) []Conn {
	r.mu.RLock()
	conns := lo.Values(r.byUser[userID])
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool {
		if conns[i].ConnectedAt().Equal(conns[j].ConnectedAt()) {
			return conns[i].ID() < conns[j].ID()
		}
		return conns[i].ConnectedAt().Before(conns[j].ConnectedAt())
	})
	return conns
}

// Users returns the identities that currently hold at least one connection.
func (r *Registry) Users() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byUser)
}

// Len returns the total number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
