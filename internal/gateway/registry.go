package gateway

import (
	"sync"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

// Registry is the process-wide map of online users. It is the single source
// of truth for "is user X online" and for presence snapshots, and it
// enforces the one-gateway-connection-per-user rule. A complete profile is
// stored at registration time so snapshots never observe placeholders.
type Registry struct {
	mu     sync.RWMutex
	online map[snowflake.ID]model.User
}

// NewRegistry constructs an empty registry. Tests instantiate their own;
// nothing in this package reaches for a shared instance.
func NewRegistry() *Registry {
	return &Registry{online: make(map[snowflake.ID]model.User)}
}

// Register marks the user online. Returns errs.ErrAlreadyOnline if the user
// already holds a live gateway connection.
func (r *Registry) Register(u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.online[u.ID]; ok {
		return errs.ErrAlreadyOnline
	}
	r.online[u.ID] = u
	return nil
}

// Unregister removes the user; no-op if absent.
func (r *Registry) Unregister(id snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, id)
}

// Snapshot returns a point-in-time copy of all online users.
func (r *Registry) Snapshot() map[snowflake.ID]model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[snowflake.ID]model.User, len(r.online))
	for id, u := range r.online {
		out[id] = u
	}
	return out
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}
