package core

import "github.com/openspotter/openspotter-server/internal/store"

// BroadcastLocation fans a persisted location update out to every other
// connection whose role passes the update's visibility tier. Delivery is
// best effort: a recipient whose buffer is full or already condemned is
// dropped, and the failure never propagates to the sender.
func (h *Hub) BroadcastLocation(sender Principal, loc *store.Location) {
	tier := ParseTier(loc.Visibility)
	ev := &Event{
		Kind:     EventLocationUpdate,
		Sender:   sender,
		Location: loc,
	}

	for _, c := range h.registry.Snapshot() {
		if c.UserID == sender.UserID {
			continue
		}
		if !MayObserve(tier, c.Role) {
			continue
		}
		if !c.TrySend(ev) {
			h.drop(c)
		}
	}
}

// BroadcastStop notifies every other connection that the sender stopped
// sharing. The tombstone carries no location data, so no tier gating
// applies.
func (h *Hub) BroadcastStop(sender Principal) {
	ev := &Event{
		Kind:   EventLocationStopped,
		Sender: sender,
	}

	for _, c := range h.registry.Snapshot() {
		if c.UserID == sender.UserID {
			continue
		}
		if !c.TrySend(ev) {
			h.drop(c)
		}
	}
}
