package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/openspotter/openspotter-server/internal/store"
)

// doJSON issues a request against the test server and decodes the response
// body into out (when out is non-nil).
func doJSON(t *testing.T, srv *testServer, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, srv.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestAuthEndpoints(t *testing.T) {
	srv := startTestServer(t)

	register := RegisterRequest{Email: "alice@example.com", Password: "password123", Callsign: "KC0ABC"}
	var tokens AuthResponse
	if status := doJSON(t, srv, "POST", "/api/v1/auth/register", "", register, &tokens); status != http.StatusCreated {
		t.Fatalf("register: unexpected status %d", status)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("register returned empty tokens")
	}

	if status := doJSON(t, srv, "POST", "/api/v1/auth/register", "", register, nil); status != http.StatusConflict {
		t.Fatalf("duplicate register: unexpected status %d", status)
	}

	login := LoginRequest{Email: "alice@example.com", Password: "password123"}
	if status := doJSON(t, srv, "POST", "/api/v1/auth/login", "", login, &tokens); status != http.StatusOK {
		t.Fatalf("login: unexpected status %d", status)
	}

	badLogin := LoginRequest{Email: "alice@example.com", Password: "wrong-password"}
	if status := doJSON(t, srv, "POST", "/api/v1/auth/login", "", badLogin, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad login: unexpected status %d", status)
	}

	refresh := RefreshRequest{RefreshToken: tokens.RefreshToken}
	if status := doJSON(t, srv, "POST", "/api/v1/auth/refresh", "", refresh, &tokens); status != http.StatusOK {
		t.Fatalf("refresh: unexpected status %d", status)
	}

	// An access token is not accepted as a refresh token.
	badRefresh := RefreshRequest{RefreshToken: tokens.AccessToken}
	if status := doJSON(t, srv, "POST", "/api/v1/auth/refresh", "", badRefresh, nil); status != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: unexpected status %d", status)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv := startTestServer(t)
	token := registerTestUser(t, srv.auth, "alice@example.com", "KC0ABC")

	if status := doJSON(t, srv, "GET", "/api/v1/users/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous me: unexpected status %d", status)
	}

	var me UserResponse
	if status := doJSON(t, srv, "GET", "/api/v1/users/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: unexpected status %d", status)
	}
	if me.Email != "alice@example.com" || me.Callsign != "KC0ABC" || me.Role != "spotter" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	display := "Alice"
	tier := "verified"
	update := UpdateMeRequest{DisplayName: &display, ShareLocationWith: &tier}
	if status := doJSON(t, srv, "PATCH", "/api/v1/users/me", token, update, &me); status != http.StatusOK {
		t.Fatalf("update me: unexpected status %d", status)
	}
	if me.DisplayName != "Alice" || me.ShareLocationWith != "verified" {
		t.Fatalf("update lost fields: %+v", me)
	}

	// Unknown tiers normalize rather than fail.
	weird := "everyone-and-their-dog"
	update = UpdateMeRequest{ShareLocationWith: &weird}
	if status := doJSON(t, srv, "PATCH", "/api/v1/users/me", token, update, &me); status != http.StatusOK {
		t.Fatalf("update me: unexpected status %d", status)
	}
	if me.ShareLocationWith != "public" {
		t.Fatalf("expected tier normalized to public, got %s", me.ShareLocationWith)
	}
}

func TestLocationEndpoints(t *testing.T) {
	srv := startTestServer(t)
	token := registerTestUser(t, srv.auth, "alice@example.com", "KC0ABC")

	update := LocationUpdateRequest{Latitude: 35.22, Longitude: -97.44, Visibility: "public"}
	var loc LocationResponse
	if status := doJSON(t, srv, "POST", "/api/v1/locations/update", token, update, &loc); status != http.StatusOK {
		t.Fatalf("location update: unexpected status %d", status)
	}
	if loc.ID == "" || loc.Latitude != 35.22 {
		t.Fatalf("unexpected location response: %+v", loc)
	}

	bad := LocationUpdateRequest{Latitude: 123.0, Longitude: 0}
	if status := doJSON(t, srv, "POST", "/api/v1/locations/update", token, bad, nil); status != http.StatusBadRequest {
		t.Fatalf("out-of-range update: unexpected status %d", status)
	}

	// The active view works without credentials and is valid GeoJSON.
	var active ActiveSpottersResponse
	if status := doJSON(t, srv, "GET", "/api/v1/locations/active", "", nil, &active); status != http.StatusOK {
		t.Fatalf("active: unexpected status %d", status)
	}
	if active.Type != "FeatureCollection" || active.Count != 1 {
		t.Fatalf("unexpected active response: %+v", active)
	}
	feature := active.Features[0]
	if feature.Geometry.Type != "Point" || feature.Geometry.Coordinates[0] != -97.44 || feature.Geometry.Coordinates[1] != 35.22 {
		t.Fatalf("unexpected geometry: %+v", feature.Geometry)
	}
	if feature.Properties["callsign"] != "KC0ABC" {
		t.Fatalf("unexpected properties: %+v", feature.Properties)
	}

	me := fetchMe(t, srv, token)

	var history LocationHistoryResponse
	if status := doJSON(t, srv, "GET", "/api/v1/locations/history/"+me.ID, token, nil, &history); status != http.StatusOK {
		t.Fatalf("history: unexpected status %d", status)
	}
	if history.Count != 1 {
		t.Fatalf("expected 1 history row, got %d", history.Count)
	}

	// A plain spotter cannot read someone else's history.
	other := registerTestUser(t, srv.auth, "bob@example.com", "")
	if status := doJSON(t, srv, "GET", "/api/v1/locations/history/"+me.ID, other, nil, nil); status != http.StatusForbidden {
		t.Fatalf("foreign history: unexpected status %d", status)
	}

	if status := doJSON(t, srv, "DELETE", "/api/v1/locations/history", token, nil, nil); status != http.StatusOK {
		t.Fatalf("clear history: unexpected status %d", status)
	}
	if status := doJSON(t, srv, "GET", "/api/v1/locations/history/"+me.ID, token, nil, &history); status != http.StatusOK {
		t.Fatalf("history after clear: unexpected status %d", status)
	}
	if history.Count != 0 {
		t.Fatalf("expected empty history after clear, got %d", history.Count)
	}
}

func TestMessageEndpoints(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	token := registerTestUser(t, srv.auth, "alice@example.com", "KC0ABC")

	open := &store.Channel{Name: "storms-ok", IsPublic: true, MinRole: "spotter"}
	if err := srv.store.CreateChannel(ctx, open); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	restricted := &store.Channel{Name: "coordination", IsPublic: true, MinRole: "coordinator"}
	if err := srv.store.CreateChannel(ctx, restricted); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	// A spotter only sees channels whose minimum role they meet.
	var channels ChannelListResponse
	if status := doJSON(t, srv, "GET", "/api/v1/messages/channels", token, nil, &channels); status != http.StatusOK {
		t.Fatalf("list channels: unexpected status %d", status)
	}
	if channels.Count != 1 || channels.Channels[0].Name != "storms-ok" {
		t.Fatalf("unexpected channel list: %+v", channels)
	}

	// Channel creation needs coordinator role.
	create := CreateChannelRequest{Name: "my-channel"}
	if status := doJSON(t, srv, "POST", "/api/v1/messages/channels", token, create, nil); status != http.StatusForbidden {
		t.Fatalf("create channel as spotter: unexpected status %d", status)
	}

	send := SendMessageRequest{Content: "wall cloud forming", ChannelID: open.ID}
	var sent MessageResponse
	if status := doJSON(t, srv, "POST", "/api/v1/messages", token, send, &sent); status != http.StatusCreated {
		t.Fatalf("send: unexpected status %d", status)
	}
	if sent.ID == "" || sent.Sender.Callsign != "KC0ABC" {
		t.Fatalf("unexpected send response: %+v", sent)
	}

	// Sending into a channel above the caller's role is rejected.
	send = SendMessageRequest{Content: "hello", ChannelID: restricted.ID}
	if status := doJSON(t, srv, "POST", "/api/v1/messages", token, send, nil); status != http.StatusForbidden {
		t.Fatalf("restricted send: unexpected status %d", status)
	}

	// Both targets or neither is a bad request.
	send = SendMessageRequest{Content: "hello"}
	if status := doJSON(t, srv, "POST", "/api/v1/messages", token, send, nil); status != http.StatusBadRequest {
		t.Fatalf("targetless send: unexpected status %d", status)
	}

	var page MessageListResponse
	if status := doJSON(t, srv, "GET", "/api/v1/messages/channels/"+open.ID+"/messages", token, nil, &page); status != http.StatusOK {
		t.Fatalf("channel history: unexpected status %d", status)
	}
	if page.Count != 1 || page.HasMore || page.Messages[0].Content != "wall cloud forming" {
		t.Fatalf("unexpected channel history: %+v", page)
	}
	if status := doJSON(t, srv, "GET", "/api/v1/messages/channels/"+restricted.ID+"/messages", token, nil, nil); status != http.StatusForbidden {
		t.Fatalf("restricted history: unexpected status %d", status)
	}

	// Direct message round trip between two users.
	bobToken := registerTestUser(t, srv.auth, "bob@example.com", "")
	bob, err := srv.store.GetUserByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("lookup bob: %v", err)
	}

	send = SendMessageRequest{Content: "heads up", RecipientID: bob.ID}
	if status := doJSON(t, srv, "POST", "/api/v1/messages", token, send, nil); status != http.StatusCreated {
		t.Fatalf("dm send: unexpected status %d", status)
	}

	me := fetchMe(t, srv, token)
	if status := doJSON(t, srv, "GET", "/api/v1/messages/dm/"+me.ID, bobToken, nil, &page); status != http.StatusOK {
		t.Fatalf("dm history: unexpected status %d", status)
	}
	if page.Count != 1 || page.Messages[0].Content != "heads up" {
		t.Fatalf("unexpected dm history: %+v", page)
	}
}

func fetchMe(t *testing.T, srv *testServer, token string) UserResponse {
	t.Helper()

	var me UserResponse
	if status := doJSON(t, srv, "GET", "/api/v1/users/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: unexpected status %d", status)
	}
	return me
}
