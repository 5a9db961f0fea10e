package websocket

import (
	"sort"
	"sync"
)

// PresenceSet holds users that declared themselves active in a chat view.
// Membership is a hint from clients; disconnect removal is authoritative.
type PresenceSet struct {
	mu      sync.RWMutex
	members map[UserID]struct{}
}

func NewPresenceSet() *PresenceSet {
	return &PresenceSet{members: make(map[UserID]struct{})}
}

func (p *PresenceSet) MarkOnline(userID UserID) {
	p.mu.Lock()
	p.members[userID] = struct{}{}
	p.mu.Unlock()
}

func (p *PresenceSet) MarkOffline(userID UserID) {
	p.mu.Lock()
	delete(p.members, userID)
	p.mu.Unlock()
}

func (p *PresenceSet) Contains(userID UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[userID]
	return ok
}

// Snapshot returns the current members sorted by id.
func (p *PresenceSet) Snapshot() []UserID {
	p.mu.RLock()
	out := make([]UserID, 0, len(p.members))
	for id := range p.members {
		out = append(out, id)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *PresenceSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}
