package collab

import "sync"

// presenceSet is the latest presence of each connection in one camera room,
// keyed by client ID so one operator may edit from several tabs.
type presenceSet struct {
	mu  sync.RWMutex
	set map[string]PresencePayload
}

func newPresenceSet() *presenceSet {
	return &presenceSet{set: make(map[string]PresencePayload)}
}

// update stores p for clientID and reports whether another connection is
// already dragging the same vertex of the same shape.
func (ps *presenceSet) update(clientID string, p PresencePayload) (contested bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if p.Dragging != nil {
		for id, other := range ps.set {
			if id != clientID && other.Mode == p.Mode && sameIndex(other.Dragging, p.Dragging) {
				contested = true
				break
			}
		}
	}
	ps.set[clientID] = p
	return contested
}

func (ps *presenceSet) remove(clientID string) {
	ps.mu.Lock()
	delete(ps.set, clientID)
	ps.mu.Unlock()
}

// snapshot returns a copy safe to marshal outside the lock.
func (ps *presenceSet) snapshot() map[string]*PresencePayload {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]*PresencePayload, len(ps.set))
	for id, p := range ps.set {
		p := p
		out[id] = &p
	}
	return out
}
