package notifier

import (
	"context"
	"log/slog"

	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/telegram"
)

// TelegramChannel sends the digest to the user's linked chat. Without a real
// bot token it only logs what it would have sent.
type TelegramChannel struct {
	client *telegram.Client
	mock   bool
	retry  RetryPolicy
	logger *slog.Logger
}

var _ Channel = (*TelegramChannel)(nil)

// NewTelegramChannel returns the Telegram channel for token.
func NewTelegramChannel(token string, client *telegram.Client, policy RetryPolicy, logger *slog.Logger) *TelegramChannel {
	return &TelegramChannel{
		client: client,
		mock:   !telegram.Configured(token),
		retry:  policy,
		logger: logger,
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Enabled requires the opt-in and a linked chat id.
func (c *TelegramChannel) Enabled(p model.UserPreferences) bool {
	return p.TelegramEnabled && p.TelegramChatID != nil && *p.TelegramChatID != ""
}

func (c *TelegramChannel) Send(ctx context.Context, p model.UserPreferences, jobs []model.Job) error {
	chatID := *p.TelegramChatID
	if c.mock {
		c.logger.Info("mock telegram send", "chat_id", chatID, "jobs", len(jobs))
		return nil
	}
	text := telegramText(jobs)
	return c.retry.do(ctx, c.logger, "telegram", model.IsTransient, func() error {
		return c.client.SendMessage(ctx, chatID, text)
	})
}
