package session

import (
	"context"
	"sync"
)

// Sender is the per-session delivery primitive supplied by the transport
// layer. Send pushes one serialized event to the client and returns an error
// when the session cannot accept it (closed connection, full buffer). It
// must respect ctx cancellation so a stalled client cannot hold a broadcast.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Registry tracks the sessions currently eligible for asynchronous
// notifications. A session becomes eligible on its first protocol
// interaction and drops out when the transport reports disconnection.
// Membership is the only state; no ordering is guaranteed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Sender)}
}

// Register adds a session. Registering an already-known id is a no-op; the
// original sender is kept.
func (r *Registry) Register(id string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return
	}
	r.sessions[id] = sender
}

// Unregister removes a session. Unknown ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Active returns a point-in-time snapshot of the registered sessions.
// Mutations after the call are not reflected in the returned map.
func (r *Registry) Active() map[string]Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]Sender, len(r.sessions))
	for id, s := range r.sessions {
		snapshot[id] = s
	}
	return snapshot
}

// IDs returns the ids of all registered sessions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
