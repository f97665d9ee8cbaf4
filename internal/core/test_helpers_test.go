package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	logger := zerolog.Nop()
	return NewHub(&logger)
}

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	select {
	case ev := <-c.Events():
		if ev == nil {
			t.Fatalf("received nil event")
		}
		if ev.Kind != kind {
			t.Fatalf("expected event kind %v, got %v", kind, ev.Kind)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event kind %v not received", kind)
		return nil
	}
}

func mustNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.Events():
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	default:
	}
}
