// Package channel implements the outbound senders and webhook payload
// parsers for the Telegram and WhatsApp transports. Delivery failures cross
// this boundary as structured results, never as panics.
package channel

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/multiversa/cortex/internal/core"
)

// Telegram hard message length limit.
const telegramMaxLen = 4096

// Telegram sends and parses messages for the Telegram Bot API.
type Telegram struct {
	bot     *bot.Bot
	allowed map[int64]struct{}
}

func NewTelegram(token string, allowedIDs []string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram bot token not configured")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, err
	}

	allowed := make(map[int64]struct{}, len(allowedIDs))
	for _, raw := range allowedIDs {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			allowed[id] = struct{}{}
		}
	}
	return &Telegram{bot: b, allowed: allowed}, nil
}

// IsAllowed reports whether the user passes the whitelist. An empty
// whitelist allows everyone.
func (t *Telegram) IsAllowed(userID int64) bool {
	if len(t.allowed) == 0 {
		return true
	}
	_, ok := t.allowed[userID]
	return ok
}

func (t *Telegram) SendMessage(ctx context.Context, recipient, text string) core.SendResult {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return core.SendResult{Error: "invalid chat id: " + recipient}
	}
	if len(text) > telegramMaxLen {
		text = text[:telegramMaxLen]
	}

	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return core.SendResult{Error: err.Error()}
	}
	return core.SendResult{OK: true, MessageID: strconv.Itoa(msg.ID)}
}

// SetWebhook points the bot's webhook at the given URL.
func (t *Telegram) SetWebhook(ctx context.Context, url string) error {
	_, err := t.bot.SetWebhook(ctx, &bot.SetWebhookParams{URL: url})
	return err
}

// TelegramIncoming is one parsed inbound Telegram message.
type TelegramIncoming struct {
	ChatID    int64
	UserID    int64
	Username  string
	Text      string
	MessageID int
}

// ParseTelegramUpdate extracts the inbound message from a webhook update.
// Updates without a text message are reported as not ok.
func ParseTelegramUpdate(update *tgmodels.Update) (*TelegramIncoming, bool) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return nil, false
	}
	msg := update.Message
	in := &TelegramIncoming{
		ChatID:    msg.Chat.ID,
		Text:      msg.Text,
		MessageID: msg.ID,
	}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Username = msg.From.Username
	}
	return in, true
}

var _ core.ChannelSender = (*Telegram)(nil)
