package agent

import "log/slog"

// Channel abstracts client I/O for one turn. The orchestrator and the agent
// router are both polymorphic over it: a WebSocket connection, a chat-bridge
// adapter that buffers/splits long messages, or an in-process collector used
// for server-initiated turns (automations, notifications) all satisfy it.
type Channel interface {
	SendToolCall(tool string, args map[string]interface{})
	SendImage(src, alt string)
	SendStreamToken(token string)
	SendStreamEnd()
	SendMessage(content string)
	SendError(content string)
	SendAudio(src string)
}

// ToolCallEvent and ImageEvent are what a CollectorAdapter records and what
// the agent router returns to a caller that must re-forward sub-agent
// activity onto its own channel.
type ToolCallEvent struct {
	Tool string
	Args map[string]interface{}
}

type ImageEvent struct {
	Src string
	Alt string
}

// CollectorAdapter is a no-op Channel that records everything instead of
// sending it anywhere. It backs server-initiated turns: the notification
// service's proactive-message path and the agent router's recursive
// sub-loops both need a place to park tool_call/image events until their
// caller decides whether and how to forward them.
type CollectorAdapter struct {
	Messages  []string
	Errors    []string
	ToolCalls []ToolCallEvent
	Images    []ImageEvent
	tokens    []string
}

func NewCollectorAdapter() *CollectorAdapter {
	return &CollectorAdapter{}
}

func (c *CollectorAdapter) SendToolCall(tool string, args map[string]interface{}) {
	c.ToolCalls = append(c.ToolCalls, ToolCallEvent{Tool: tool, Args: args})
}

func (c *CollectorAdapter) SendImage(src, alt string) {
	c.Images = append(c.Images, ImageEvent{Src: src, Alt: alt})
}

func (c *CollectorAdapter) SendStreamToken(token string) {
	c.tokens = append(c.tokens, token)
}

func (c *CollectorAdapter) SendStreamEnd() {
	if len(c.tokens) > 0 {
		joined := ""
		for _, t := range c.tokens {
			joined += t
		}
		c.Messages = append(c.Messages, joined)
		c.tokens = nil
	}
}

func (c *CollectorAdapter) SendMessage(content string) {
	c.Messages = append(c.Messages, content)
}

func (c *CollectorAdapter) SendError(content string) {
	c.Errors = append(c.Errors, content)
	slog.Debug("collector adapter received error", "content", content)
}

func (c *CollectorAdapter) SendAudio(src string) {}

// LastMessage returns the most recently collected message, or "" if none.
func (c *CollectorAdapter) LastMessage() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1]
}
