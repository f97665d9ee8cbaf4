package core

import "github.com/openspotter/openspotter-server/internal/store"

// EventKind is a notification the engine emits to clients.
type EventKind int

const (
	// EventLocationUpdate carries another spotter's position report.
	EventLocationUpdate EventKind = iota
	// EventLocationStopped notifies that a spotter stopped sharing.
	EventLocationStopped
	// EventChatMessage carries a channel or direct chat message.
	EventChatMessage
	// EventError notifies the client about a protocol or domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Sender identifies the originating principal; it is always the
// authenticated identity, never a client-asserted one.
type Event struct {
	Kind     EventKind
	Sender   Principal
	Location *store.Location
	Message  *store.Message
	Error    *CoreError
}
