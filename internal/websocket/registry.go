package websocket

import "sync"

// Registry maps each user to the handle of its current connection.
type Registry struct {
	mu      sync.RWMutex
	handles map[UserID]Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[UserID]Handle)}
}

// Register maps userID to h, replacing any existing mapping. The replaced
// handle is returned so the caller can close it.
func (r *Registry) Register(userID UserID, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.handles[userID]
	r.handles[userID] = h
	if !ok || prev.ID() == h.ID() {
		return nil
	}
	return prev
}

// Unregister removes the mapping for userID if present.
func (r *Registry) Unregister(userID UserID) {
	r.mu.Lock()
	delete(r.handles, userID)
	r.mu.Unlock()
}

// UnregisterHandle removes the mapping only while it still points at h.
// It reports whether a mapping was removed.
func (r *Registry) UnregisterHandle(userID UserID, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.handles[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.handles, userID)
	return true
}

// Resolve returns the live handles for userIDs in input order. Offline users
// are skipped and repeated ids resolve once.
func (r *Registry) Resolve(userIDs []UserID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(userIDs))
	seen := make(map[UserID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if h, ok := r.handles[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) Lookup(userID UserID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	return h, ok
}

// Handles returns every registered handle.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
