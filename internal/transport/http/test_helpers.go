package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openspotter/openspotter-server/internal/auth"
	"github.com/openspotter/openspotter-server/internal/config"
	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/log"
	"github.com/openspotter/openspotter-server/internal/store"
	"github.com/openspotter/openspotter-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:     []byte(jwtSecret),
		Issuer:     "test",
		Audience:   "test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

type testServer struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store store.Store
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret-change-me")
	hub := core.NewHub(log.Nop())

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.WSAuthTimeout = 2 * time.Second

	server := NewServer(hub, authService, st, &cfg, log.Nop())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, hub: hub, auth: authService, store: st}
}

// registerTestUser creates an account and returns its access token.
func registerTestUser(t *testing.T, svc *auth.Service, email, callsign string) string {
	t.Helper()

	pair, err := svc.Register(context.Background(), email, "password123", callsign)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return pair.AccessToken
}
