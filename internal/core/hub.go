package core

import (
	"github.com/rs/zerolog"
)

// Hub owns the shared connection state: the registry of live connections
// and the channel membership table. Broadcast fan-out never holds either
// structure's lock across a send, so one slow connection cannot serialize
// unrelated broadcasts.
type Hub struct {
	registry *Registry
	channels *Membership
	log      *zerolog.Logger
}

// NewHub constructs a hub with empty state.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		channels: NewMembership(),
		log:      logger,
	}
}

// Connect registers an authenticated client. If the same user already had a
// live connection, the old one is condemned: its supervisor observes the
// kill signal and tears the old transport down, and its later unregister is
// a guarded no-op.
func (h *Hub) Connect(c *Client) {
	if prev := h.registry.Register(c); prev != nil {
		h.log.Info().Str("user_id", c.UserID).Msg("superseding existing connection")
		prev.Condemn()
	}
}

// Disconnect removes a client from the registry and from every channel.
// Safe to call more than once and safe against superseded connections.
func (h *Hub) Disconnect(c *Client) {
	if h.registry.Unregister(c) {
		h.channels.LeaveAll(c.UserID)
	}
	c.Condemn()
}

// JoinChannel subscribes the client's user to a channel. Join always
// succeeds; the minimum-role gate applies when messages are sent.
func (h *Hub) JoinChannel(c *Client, channelID string) {
	h.channels.Join(channelID, c.UserID)
	h.log.Debug().Str("user_id", c.UserID).Str("channel_id", channelID).Msg("joined channel")
}

// LeaveChannel unsubscribes the client's user from a channel.
func (h *Hub) LeaveChannel(c *Client, channelID string) {
	h.channels.Leave(channelID, c.UserID)
	h.log.Debug().Str("user_id", c.UserID).Str("channel_id", channelID).Msg("left channel")
}

// Members returns the user IDs subscribed to a channel.
func (h *Hub) Members(channelID string) []string {
	return h.channels.Members(channelID)
}

// Lookup returns the live connection for a user, if any.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	return h.registry.Lookup(userID)
}

// Online reports the number of live connections.
func (h *Hub) Online() int {
	return h.registry.Len()
}

// drop evicts a connection that failed to accept a delivery. The failure is
// evidence the recipient is dead; it is never surfaced to the sender.
func (h *Hub) drop(c *Client) {
	h.log.Debug().Str("user_id", c.UserID).Msg("dropping unresponsive connection")
	h.Disconnect(c)
}
