package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	pollTimeout      = 30 * time.Second
	pollErrorBackoff = 5 * time.Second
)

// Bot answers incoming messages with the sender's chat id so users can link
// their Telegram account from the dashboard.
type Bot struct {
	client  *Client
	logger  *slog.Logger
	backoff time.Duration
	offset  int64
}

// NewBot returns a chat-id assistant polling through client.
func NewBot(client *Client, logger *slog.Logger) *Bot {
	return &Bot{client: client, logger: logger, backoff: pollErrorBackoff}
}

// Run polls until ctx is cancelled. Polling errors are logged and retried
// after a short pause.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot listener started")
	for {
		if ctx.Err() != nil {
			b.logger.Info("telegram bot listener stopped")
			return
		}
		if err := b.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Error("telegram polling failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(b.backoff):
			}
		}
	}
}

// PollOnce fetches one batch of updates and replies to each text message.
func (b *Bot) PollOnce(ctx context.Context) error {
	updates, err := b.client.GetUpdates(ctx, b.offset, pollTimeout)
	if err != nil {
		return err
	}
	for _, u := range updates {
		b.offset = u.UpdateID + 1
		if u.Message == nil || u.Message.Text == "" {
			continue
		}
		chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
		if err := b.client.SendMessage(ctx, chatID, replyText(u.Message)); err != nil {
			b.logger.Error("telegram reply failed", "chat_id", chatID, "error", err)
		}
	}
	return nil
}

func replyText(m *Message) string {
	chatID := m.Chat.ID
	if strings.ToLower(strings.TrimSpace(m.Text)) == "/start" {
		name := "User"
		if m.From != nil && m.From.FirstName != "" {
			name = EscapeMarkdown(m.From.FirstName)
		}
		return fmt.Sprintf("👋 *Welcome to Dues Jobs, %s!*\n\n"+
			"To link your account and receive alerts:\n\n"+
			"1️⃣ Copy your Chat ID: `%d`\n"+
			"2️⃣ Paste it on the Dues Jobs website settings\n"+
			"3️⃣ Click Save\n\n"+
			"📌 *Chat ID:* `%d`", name, chatID, chatID)
	}
	return fmt.Sprintf("🤖 *Dues Jobs Chat ID Assistant*\n\n"+
		"Your Chat ID is: `%d`\n\n"+
		"_Use this to link your account on the dashboard._", chatID)
}
