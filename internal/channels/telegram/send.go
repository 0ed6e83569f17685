package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/clara/internal/bus"
	"github.com/nextlevelbuilder/clara/internal/channels"
	"github.com/nextlevelbuilder/clara/internal/channels/typing"
)

// telegramMaxLen is Telegram's per-message character cap.
const telegramMaxLen = 4096

// Send delivers a final outbound message to Telegram. If a "Thinking..."
// placeholder is pending for this chat/topic it is edited with the first
// chunk; any remainder is sent as follow-up messages.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	chatIDObj := tu.ID(chatID)

	localKey := msg.Metadata["local_key"]
	if localKey == "" {
		localKey = msg.ChatID
	}

	if ctrl, ok := c.typingCtrls.LoadAndDelete(localKey); ok {
		ctrl.(*typing.Controller).Stop()
	}

	content := msg.Content
	if content == "" {
		if pID, ok := c.placeholders.LoadAndDelete(localKey); ok {
			delErr := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
				ChatID:    chatIDObj,
				MessageID: pID.(int),
			})
			if delErr != nil {
				slog.Debug("telegram: failed to delete placeholder", "chat_id", msg.ChatID, "error", delErr)
			}
		}
		return nil
	}

	parts := channels.SplitMessage(content, telegramMaxLen)

	if pID, ok := c.placeholders.LoadAndDelete(localKey); ok {
		msgID := pID.(int)
		_, editErr := c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:    chatIDObj,
			MessageID: msgID,
			Text:      parts[0],
		})
		if editErr != nil {
			slog.Warn("telegram: placeholder edit failed, sending new message",
				"chat_id", msg.ChatID, "error", editErr)
			return c.sendParts(ctx, chatIDObj, parts)
		}
		if len(parts) > 1 {
			return c.sendParts(ctx, chatIDObj, parts[1:])
		}
		return nil
	}

	return c.sendParts(ctx, chatIDObj, parts)
}

// sendParts sends each chunk as its own message, in order.
func (c *Channel) sendParts(ctx context.Context, chatID telego.ChatID, parts []string) error {
	for _, part := range parts {
		if _, err := c.bot.SendMessage(ctx, tu.Message(chatID, part)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}
