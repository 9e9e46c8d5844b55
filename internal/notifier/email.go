package notifier

import (
	"context"
	"log/slog"

	"github.com/duesjobs/duesjobs/internal/model"
)

// EmailMessage is one composed digest.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender is an email provider: SMTP, Brevo, or the log-only mock.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailChannel renders the daily digest and hands it to an EmailSender.
type EmailChannel struct {
	sender EmailSender
	logger *slog.Logger
}

var _ Channel = (*EmailChannel)(nil)

// NewEmailChannel returns the email channel backed by sender.
func NewEmailChannel(sender EmailSender, logger *slog.Logger) *EmailChannel {
	return &EmailChannel{sender: sender, logger: logger}
}

func (c *EmailChannel) Name() string { return "email" }

// Enabled requires both the opt-in and a stored address.
func (c *EmailChannel) Enabled(p model.UserPreferences) bool {
	return p.EmailEnabled && p.Email != ""
}

func (c *EmailChannel) Send(ctx context.Context, p model.UserPreferences, jobs []model.Job) error {
	msg := EmailMessage{
		To:      p.Email,
		Subject: emailSubject(len(jobs)),
		HTML:    emailHTML(jobs),
		Text:    emailText(jobs),
	}
	c.logger.Debug("sending email digest", "user_id", p.UserID, "subject", msg.Subject)
	return c.sender.Send(ctx, msg)
}
