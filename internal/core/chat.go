package core

import "github.com/openspotter/openspotter-server/internal/store"

// BroadcastMessage fans a persisted chat message out to its audience.
//
// Channel messages go to every currently subscribed member with a live
// connection, the sender included if subscribed; offline members are
// skipped silently. Direct messages go to the recipient's connection and
// are echoed back to the sender's own connection as a delivery
// confirmation.
func (h *Hub) BroadcastMessage(sender Principal, msg *store.Message) {
	ev := &Event{
		Kind:    EventChatMessage,
		Sender:  sender,
		Message: msg,
	}

	switch {
	case msg.ChannelID != nil:
		for _, userID := range h.channels.Members(*msg.ChannelID) {
			c, ok := h.registry.Lookup(userID)
			if !ok {
				continue
			}
			if !c.TrySend(ev) {
				h.drop(c)
			}
		}
	case msg.RecipientID != nil:
		if c, ok := h.registry.Lookup(*msg.RecipientID); ok {
			if !c.TrySend(ev) {
				h.drop(c)
			}
		}
		if c, ok := h.registry.Lookup(msg.SenderID); ok {
			if !c.TrySend(ev) {
				h.drop(c)
			}
		}
	}
}
