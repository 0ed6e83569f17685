package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/providers"
	"github.com/nextlevelbuilder/clara/pkg/protocol"
)

// writeTimeout bounds a single frame write so one slow or wedged client can't
// hold the write mutex indefinitely.
const writeTimeout = 10 * time.Second

// Client wraps one WebSocket connection: it implements agent.Channel so the
// orchestrator can write frames directly to the socket, and notify.Subscriber
// so proactive notifications can reach it between turns.
type Client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	writeMu sync.Mutex
}

// NewClient wraps a newly upgraded connection.
func NewClient(conn *websocket.Conn, srv *Server) *Client {
	return &Client{id: uuid.NewString(), conn: conn, srv: srv}
}

func (c *Client) writeFrame(f protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, f)
}

// Channel implementation — each method renders one outbound frame kind.

func (c *Client) SendToolCall(tool string, args map[string]interface{}) {
	if err := c.writeFrame(protocol.ToolCallFrame(tool, args)); err != nil {
		slog.Debug("gateway: send tool_call frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendImage(src, alt string) {
	if err := c.writeFrame(protocol.ImageFrame(src, alt)); err != nil {
		slog.Debug("gateway: send image frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendStreamToken(token string) {
	if err := c.writeFrame(protocol.StreamFrame(token)); err != nil {
		slog.Debug("gateway: send stream frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendStreamEnd() {
	if err := c.writeFrame(protocol.StreamEndFrame()); err != nil {
		slog.Debug("gateway: send stream_end frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendMessage(content string) {
	if err := c.writeFrame(protocol.MessageFrame(content)); err != nil {
		slog.Debug("gateway: send message frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendError(content string) {
	if err := c.writeFrame(protocol.ErrorFrame(content)); err != nil {
		slog.Debug("gateway: send error frame failed", "client", c.id, "error", err)
	}
}

func (c *Client) SendAudio(src string) {
	if err := c.writeFrame(protocol.AudioFrame(src)); err != nil {
		slog.Debug("gateway: send audio frame failed", "client", c.id, "error", err)
	}
}

// SendNotification implements notify.Subscriber.
func (c *Client) SendNotification(content string, at time.Time) error {
	return c.writeFrame(protocol.NotificationFrame(content, at))
}

// Close terminates the underlying connection immediately, without waiting
// for a clean close handshake.
func (c *Client) Close() {
	c.conn.CloseNow()
}

// Run reads inbound turn requests until the connection closes or ctx ends.
// Each accepted turn is started in its own goroutine and the loop goes
// straight back to reading, so a client's turns may overlap. An in-flight
// turn continues even if the client disconnects mid-turn (the read loop
// exits, the orchestrator call keeps executing against a detached context).
func (c *Client) Run(ctx context.Context) {
	sessionID := "ws:" + c.id

	for {
		var turn protocol.InboundTurn
		if err := wsjson.Read(ctx, c.conn, &turn); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				slog.Debug("gateway: client read error", "client", c.id, "error", err)
			}
			return
		}

		if c.srv.rateLimiter.Enabled() && !c.srv.rateLimiter.Allow(c.id) {
			c.SendError("rate limit exceeded, slow down")
			continue
		}

		maxChars := c.srv.cfg.Gateway.MaxMessageChars
		if maxChars > 0 && len(turn.Message) > maxChars {
			c.SendError("message too long")
			continue
		}

		go c.handleTurn(context.Background(), sessionID, turn)
	}
}

func (c *Client) handleTurn(ctx context.Context, sessionID string, turn protocol.InboundTurn) {
	var images []providers.ImageContent
	if turn.Image != "" {
		images = agent.LoadImages([]string{turn.Image})
	}

	_, err := c.srv.orchestrator.Handle(ctx, c, sessionID, turn.Message, images, turn.TTS, nil, turn.Agent)
	if err != nil {
		slog.Warn("gateway: turn failed", "client", c.id, "error", err)
	}
}
