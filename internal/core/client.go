package core

import "sync"

// Principal is the authenticated identity bound to a connection. It is
// supplied once at handshake time and never re-derived mid-session.
type Principal struct {
	UserID   string
	Callsign string
	Role     Role
	// ShareTier is the user's default visibility for location updates,
	// applied when an update carries no explicit tier.
	ShareTier Tier
}

// Client is one live connection as seen by the engine. It owns the bounded
// outbound event buffer; the transport's write loop is its only consumer.
type Client struct {
	Principal

	events chan *Event

	killOnce sync.Once
	kill     chan struct{}
}

// NewClient constructs a client with an outbound buffer of the given size.
func NewClient(p Principal, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		Principal: p,
		events:    make(chan *Event, buffer),
		kill:      make(chan struct{}),
	}
}

// Events exposes the outbound buffer for the transport write loop.
func (c *Client) Events() <-chan *Event { return c.events }

// TrySend enqueues an event without blocking. A false return means the
// buffer is full or the client is already condemned; callers treat that
// as evidence the connection is dead.
func (c *Client) TrySend(ev *Event) bool {
	select {
	case <-c.kill:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Condemn marks the client dead. Idempotent; wakes the transport so it can
// tear the physical connection down.
func (c *Client) Condemn() {
	c.killOnce.Do(func() { close(c.kill) })
}

// Done is closed once the client has been condemned.
func (c *Client) Done() <-chan struct{} { return c.kill }
