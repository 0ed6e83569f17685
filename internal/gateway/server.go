// Package gateway implements the WebSocket front door: one connection per
// client, each inbound message a full chat turn handled by the agent
// orchestrator, each orchestrator callback rendered as an outbound frame.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/notify"
	"github.com/nextlevelbuilder/clara/internal/webhook"
)

// Server is the WebSocket gateway: it upgrades connections, dispatches each
// inbound turn to the orchestrator, and registers every client as a
// notification subscriber for proactive, server-initiated messages.
type Server struct {
	cfg          *config.Config
	orchestrator *agent.Orchestrator
	notifier     *notify.Service
	webhooks     *webhook.Manager

	rateLimiter *RateLimiter

	mu      sync.RWMutex
	clients map[string]*Client

	httpServer *http.Server
}

// NewServer wires a gateway around an already-configured orchestrator.
// webhooks may be nil, in which case the /webhook/ ingress path 404s.
func NewServer(cfg *config.Config, orch *agent.Orchestrator, notifier *notify.Service, webhooks *webhook.Manager) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orch,
		notifier:     notifier,
		webhooks:     webhooks,
		clients:      make(map[string]*Client),
		rateLimiter:  NewRateLimiter(cfg.Gateway.RateLimitRPM),
	}
}

// checkOrigin validates the WebSocket handshake's Origin header against the
// configured allow-list. No configured origins means allow all; a missing
// Origin header (non-browser clients) is always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("gateway: rejected websocket origin", "origin", origin)
	return false
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.webhooks != nil {
		mux.HandleFunc("/webhook/", s.webhooks.Handler())
	}
	return mux
}

// Start begins serving WebSocket and health-check traffic until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.buildMux()}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if token := s.cfg.Gateway.Token; token != "" {
		if r.Header.Get("Authorization") != "Bearer "+token && r.URL.Query().Get("token") != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	// Origin is validated above with our own allow-list semantics
	// (including a "*" wildcard), so the library's same-origin check is
	// disabled here rather than duplicated.
	if !s.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("gateway: websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s)
	s.registerClient(client)
	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	client.Run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Subscribe("web", c)
	}
	slog.Info("gateway: client connected", "id", c.id)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Unregister(c)
	}
	slog.Info("gateway: client disconnected", "id", c.id)
}
