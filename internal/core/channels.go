package core

import "sync"

// Membership tracks which users are subscribed to which chat channels.
// Subscriptions live only as long as the process; clients re-join after
// reconnecting.
type Membership struct {
	mu   sync.RWMutex
	subs map[string]map[string]struct{} // channel ID -> set of user IDs
}

// NewMembership constructs an empty membership table.
func NewMembership() *Membership {
	return &Membership{subs: make(map[string]map[string]struct{})}
}

// Join subscribes a user to a channel. Joining never fails: role gating is
// enforced at message-send time, not here, matching the subscribe-freely,
// deliver-restricted behavior of the product.
func (m *Membership) Join(channelID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[channelID]
	if !ok {
		set = make(map[string]struct{})
		m.subs[channelID] = set
	}
	set[userID] = struct{}{}
}

// Leave unsubscribes a user from one channel.
func (m *Membership) Leave(channelID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.subs[channelID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(m.subs, channelID)
	}
}

// LeaveAll removes the user from every channel. Called on disconnect, since
// a connection may accumulate any number of subscriptions over its lifetime.
func (m *Membership) LeaveAll(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for channelID, set := range m.subs {
		delete(set, userID)
		if len(set) == 0 {
			delete(m.subs, channelID)
		}
	}
}

// Members returns the current subscriber IDs of a channel.
func (m *Membership) Members(channelID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.subs[channelID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
