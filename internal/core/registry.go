package core

import "sync"

// Registry maps online user IDs to their live connections. One connection
// per user: a newer connection for the same user replaces the old entry,
// last write wins.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register stores the client under its user ID, replacing any previous
// entry. The superseded client is returned so the caller may condemn it;
// the registry itself never closes connections.
func (r *Registry) Register(c *Client) (prev *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.clients[c.UserID]
	r.clients[c.UserID] = c
	return prev
}

// Unregister removes the mapping only if the stored client is the one being
// removed. A stale teardown carrying a superseded client must not evict the
// connection that replaced it.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c.UserID] != c {
		return false
	}
	delete(r.clients, c.UserID)
	return true
}

// Lookup returns the live connection for a user, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Snapshot returns the current set of connections. Broadcast iteration
// happens over the snapshot so no lock is held across sends; a client that
// joins or leaves mid-broadcast may be missed, which is acceptable.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
