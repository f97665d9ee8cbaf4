package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/openspotter/openspotter-server/internal/proto"
	"github.com/openspotter/openspotter-server/internal/store"
)

func wsURL(ts *testServer, path string) string {
	return strings.Replace(ts.ts.URL, "http", "ws", 1) + path
}

func dialWS(t *testing.T, ctx context.Context, srv *testServer, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/location"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	payload, _ := json.Marshal(proto.AuthData{Token: token})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeAuth, Data: payload}); err != nil {
		t.Fatalf("send auth frame: %v", err)
	}
	return conn
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != wantType {
		t.Fatalf("expected %s frame, got %s (error: %+v)", wantType, frame.Type, frame.Error)
	}
	return frame.Data
}

func TestHealthEndpoint(t *testing.T) {
	srv := startTestServer(t)

	resp, err := srv.ts.Client().Get(srv.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/location"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	payload, _ := json.Marshal(proto.AuthData{Token: "not-a-token"})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeAuth, Data: payload}); err != nil {
		t.Fatalf("send auth frame: %v", err)
	}

	var frame outboundFrame
	err = wsjson.Read(ctx, conn, &frame)
	if err == nil {
		t.Fatalf("expected connection to close, got frame %+v", frame)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusCode(4001) {
		t.Fatalf("expected close status 4001, got %v (%v)", status, err)
	}
}

func TestWebSocketRejectsNonAuthFirstFrame(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/location"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	payload, _ := json.Marshal(proto.LocationUpdateData{Latitude: 35.0, Longitude: -97.0})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLocationUpdate, Data: payload}); err != nil {
		t.Fatalf("send frame: %v", err)
	}

	var frame outboundFrame
	err = wsjson.Read(ctx, conn, &frame)
	if err == nil {
		t.Fatalf("expected connection to close, got frame %+v", frame)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusCode(4001) {
		t.Fatalf("expected close status 4001, got %v (%v)", status, err)
	}
}

func TestWebSocketLocationBroadcast(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tokenA := registerTestUser(t, srv.auth, "alice@example.com", "KC0ABC")
	tokenB := registerTestUser(t, srv.auth, "bob@example.com", "KC0XYZ")

	connA := dialWS(t, ctx, srv, tokenA)
	connB := dialWS(t, ctx, srv, tokenB)

	// Bob must be registered before Alice reports, or the event is lost.
	waitForOnline(t, srv, 2)

	payload, _ := json.Marshal(proto.LocationUpdateData{
		Latitude:   35.22,
		Longitude:  -97.44,
		Visibility: "public",
	})
	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.InboundTypeLocationUpdate, Data: payload}); err != nil {
		t.Fatalf("send location: %v", err)
	}

	data := readFrame(t, ctx, connB, proto.OutboundTypeLocationUpdate)
	var event proto.LocationUpdateEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Callsign != "KC0ABC" || event.Latitude != 35.22 || event.Longitude != -97.44 {
		t.Fatalf("unexpected event payload: %+v", event)
	}

	// The report is also persisted for the active-spotters view.
	active, err := srv.store.ListActiveLocations(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Callsign != "KC0ABC" {
		t.Fatalf("expected persisted report, got %+v", active)
	}
}

func TestWebSocketChannelChat(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := &store.Channel{Name: "storms-ok", IsPublic: true, MinRole: "spotter"}
	if err := srv.store.CreateChannel(ctx, ch); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	tokenA := registerTestUser(t, srv.auth, "alice@example.com", "KC0ABC")
	tokenB := registerTestUser(t, srv.auth, "bob@example.com", "")

	connA := dialWS(t, ctx, srv, tokenA)
	connB := dialWS(t, ctx, srv, tokenB)
	waitForOnline(t, srv, 2)

	join, _ := json.Marshal(proto.ChannelData{ChannelID: ch.ID})
	if err := wsjson.Write(ctx, connB, proto.Inbound{Type: proto.InboundTypeJoinChannel, Data: join}); err != nil {
		t.Fatalf("join channel: %v", err)
	}
	waitForMembers(t, srv, ch.ID, 1)

	msg, _ := json.Marshal(proto.MessageData{Content: "wall cloud forming", ChannelID: ch.ID})
	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.InboundTypeMessage, Data: msg}); err != nil {
		t.Fatalf("send message: %v", err)
	}

	data := readFrame(t, ctx, connB, proto.OutboundTypeChatMessage)
	var event proto.ChatMessageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Content != "wall cloud forming" || event.Sender.Callsign != "KC0ABC" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
	if event.ChannelID == nil || *event.ChannelID != ch.ID {
		t.Fatalf("event lost its channel: %+v", event)
	}
}

func TestWebSocketDirectMessageEcho(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tokenA := registerTestUser(t, srv.auth, "alice@example.com", "")
	tokenB := registerTestUser(t, srv.auth, "bob@example.com", "")

	bob, err := srv.store.GetUserByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("lookup bob: %v", err)
	}

	connA := dialWS(t, ctx, srv, tokenA)
	connB := dialWS(t, ctx, srv, tokenB)
	waitForOnline(t, srv, 2)

	msg, _ := json.Marshal(proto.MessageData{Content: "heads up", RecipientID: bob.ID})
	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.InboundTypeMessage, Data: msg}); err != nil {
		t.Fatalf("send dm: %v", err)
	}

	// Delivered to the recipient and echoed to the sender.
	for name, conn := range map[string]*websocket.Conn{"recipient": connB, "sender": connA} {
		data := readFrame(t, ctx, conn, proto.OutboundTypeChatMessage)
		var event proto.ChatMessageEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal %s event: %v", name, err)
		}
		if event.Content != "heads up" {
			t.Fatalf("unexpected %s payload: %+v", name, event)
		}
	}
}

func TestWebSocketBadFrameKeepsConnectionAlive(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := registerTestUser(t, srv.auth, "alice@example.com", "")
	conn := dialWS(t, ctx, srv, token)
	waitForOnline(t, srv, 1)

	// Out-of-range coordinates are rejected with an error frame, not a close.
	bad, _ := json.Marshal(proto.LocationUpdateData{Latitude: 123.0, Longitude: 0})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLocationUpdate, Data: bad}); err != nil {
		t.Fatalf("send bad frame: %v", err)
	}

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Type != proto.OutboundTypeError || frame.Error == nil {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	// The session still works afterwards.
	good, _ := json.Marshal(proto.LocationUpdateData{Latitude: 35.0, Longitude: -97.0})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeLocationUpdate, Data: good}); err != nil {
		t.Fatalf("send good frame: %v", err)
	}

	waitForActive(t, srv)
}

func TestWebSocketReplacesEarlierConnection(t *testing.T) {
	srv := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token := registerTestUser(t, srv.auth, "alice@example.com", "")

	old := dialWS(t, ctx, srv, token)
	waitForOnline(t, srv, 1)
	_ = dialWS(t, ctx, srv, token)

	// The superseded connection is closed by the server; the replacement
	// leaves exactly one live connection.
	var frame outboundFrame
	if err := wsjson.Read(ctx, old, &frame); err == nil {
		t.Fatalf("expected old connection to close, got frame %+v", frame)
	}
	waitForOnline(t, srv, 1)
}

// waitForOnline polls until the hub sees the expected number of connections.
// Registration happens after the server reads the auth frame, so dialers
// race it.
func waitForOnline(t *testing.T, srv *testServer, want int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.hub.Online() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d online connections, have %d", want, srv.hub.Online())
}

func waitForMembers(t *testing.T, srv *testServer, channelID string, want int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.hub.Members(channelID)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d members in %s", want, channelID)
}

func waitForActive(t *testing.T, srv *testServer) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		active, err := srv.store.ListActiveLocations(context.Background(), time.Now().Add(-time.Minute))
		if err == nil && len(active) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("location report was never persisted")
}
