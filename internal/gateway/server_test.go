package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/memory"
	"github.com/nextlevelbuilder/clara/internal/notify"
	"github.com/nextlevelbuilder/clara/internal/sessions"
	"github.com/nextlevelbuilder/clara/internal/tools"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Gateway.MaxMessageChars = 32000

	orch := &agent.Orchestrator{
		Sessions: sessions.NewManager(""),
		Memory:   memory.NewStore(""),
		Registry: tools.NewRegistry(),
		Router:   agent.NewRouter(agent.NewTemplateLoader("", ""), tools.NewRegistry(), nil),
		Model:    "fake-model",
		Persona:  "You are a test assistant.",
	}

	gw := NewServer(cfg, orch, notify.New(""), nil)
	ts := httptest.NewServer(gw.buildMux())
	return ts, gw
}

// TestServer_AcceptsClientAndRoundTripsHealth exercises the gateway's own
// integration surface end to end: an httptest server wrapping the real
// mux, dialed with a plain HTTP client for /health and a WebSocket client
// for /ws, confirming the coder/websocket-based accept path completes a
// handshake and registers the client as a notification subscriber.
func TestServer_AcceptsClientAndRoundTripsHealth(t *testing.T) {
	ts, gw := newTestServer(t)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		gw.mu.RLock()
		n := len(gw.clients)
		gw.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client registration")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestServer_RejectsBadToken confirms a configured bearer token is enforced
// before the WebSocket handshake even begins.
func TestServer_RejectsBadToken(t *testing.T) {
	ts, gw := newTestServer(t)
	gw.cfg.Gateway.Token = "secret"
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
