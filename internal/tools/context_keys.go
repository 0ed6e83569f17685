package tools

import "context"

// Skill execution context keys. Values are injected by the orchestrator
// before dispatching a skill and read by individual skills during Execute,
// keeping skill instances themselves stateless and safe for concurrent fan-out.

type toolContextKey string

const (
	ctxChannel  toolContextKey = "tool_channel"
	ctxChatID   toolContextKey = "tool_chat_id"
	ctxSession  toolContextKey = "tool_session_key"
	ctxAgentTag toolContextKey = "tool_agent_name"
)

func WithToolChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxChannel, channel)
}

func ToolChannelFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChannel).(string)
	return v
}

func WithToolChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, ctxChatID, chatID)
}

func ToolChatIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChatID).(string)
	return v
}

func WithToolSession(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, ctxSession, sessionKey)
}

func ToolSessionFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSession).(string)
	return v
}

// WithToolAgentName tags the context with the delegating agent's name, used
// by skills that want to attribute their side effects (e.g. an audit log)
// to the agent that invoked them rather than the top-level session.
func WithToolAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxAgentTag, name)
}

func ToolAgentNameFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxAgentTag).(string)
	return v
}
