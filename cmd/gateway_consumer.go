package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/clara/internal/agent"
	"github.com/nextlevelbuilder/clara/internal/bus"
	"github.com/nextlevelbuilder/clara/internal/channels"
	"github.com/nextlevelbuilder/clara/internal/config"
	"github.com/nextlevelbuilder/clara/internal/sessions"
)

// busChannel adapts the message bus's outbound queue to the agent.Channel
// interface for one inbound turn: every SendMessage becomes one outbound
// frame back to the originating chat. SendImage becomes one outbound frame
// carrying the image as a media attachment, tool-call events are only logged
// at debug level, and stream/audio events are dropped.
type busChannel struct {
	msgBus  *bus.MessageBus
	channel string
	chatID  string
}

func (b *busChannel) SendMessage(content string) {
	b.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: b.channel,
		ChatID:  b.chatID,
		Content: content,
	})
}

func (b *busChannel) SendError(content string) {
	b.SendMessage(content)
}

func (b *busChannel) SendToolCall(tool string, args map[string]interface{}) {
	slog.Debug("tool call", "channel", b.channel, "chat_id", b.chatID, "tool", tool)
}

func (b *busChannel) SendImage(src, alt string) {
	b.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: b.channel,
		ChatID:  b.chatID,
		Content: alt,
		Media:   []bus.MediaAttachment{{URL: src, Caption: alt}},
	})
}

func (b *busChannel) SendStreamToken(token string) {}
func (b *busChannel) SendStreamEnd()                {}
func (b *busChannel) SendAudio(src string)          {}

// consumeInboundMessages reads inbound messages published by channel
// adapters, resolves a session key and the target agent's allowed skill
// set, and hands the turn to the orchestrator. It runs until ctx is
// cancelled.
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, orch *agent.Orchestrator, cfg *config.Config) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		go handleInboundMessage(ctx, msgBus, orch, cfg, msg)
	}
}

func handleInboundMessage(ctx context.Context, msgBus *bus.MessageBus, orch *agent.Orchestrator, cfg *config.Config, msg bus.InboundMessage) {
	agentID := msg.AgentID
	if agentID == "" {
		agentID = cfg.ResolveDefaultAgentID()
	}

	kind := sessions.PeerKindFromGroup(msg.PeerKind == "group")
	sc := cfg.Sessions
	sessionKey := sessions.BuildScopedSessionKey(agentID, msg.Channel, kind, msg.ChatID, sc.Scope, sc.DmScope, sc.MainKey)

	var allowed map[string]bool
	if spec, ok := cfg.Agents.List[agentID]; ok && len(spec.Skills) > 0 {
		allowed = make(map[string]bool, len(spec.Skills))
		for _, s := range spec.Skills {
			allowed[s] = true
		}
	}

	adapter := &busChannel{msgBus: msgBus, channel: msg.Channel, chatID: msg.ChatID}

	if _, err := orch.Handle(ctx, adapter, sessionKey, msg.Content, nil, false, allowed, ""); err != nil {
		slog.Warn("orchestrator turn failed", "session", sessionKey, "error", err)
	}
}

// registerChannels wires the configured channel adapters into the manager.
// Pairing/agent-directory services are out of scope for this single-tenant
// build; channels are constructed with nil stores and fall back to their
// static allow-lists.
func registerChannels(mgr *channels.Manager, msgBus *bus.MessageBus, cfg *config.Config) {
	if cfg.Channels.Telegram.Enabled {
		ch, err := newTelegramChannel(cfg.Channels.Telegram, msgBus)
		if err != nil {
			slog.Error("telegram channel setup failed", "error", err)
		} else {
			mgr.RegisterChannel("telegram", ch)
		}
	}
	if cfg.Channels.Discord.Enabled {
		ch, err := newDiscordChannel(cfg.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("discord channel setup failed", "error", err)
		} else {
			mgr.RegisterChannel("discord", ch)
		}
	}
}
