package notifier

import (
	"context"
	"log/slog"

	"github.com/duesjobs/duesjobs/internal/model"
)

// LogSender is the email provider used when no credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

var _ EmailSender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of delivering it.
func (s *LogSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("mock email", "to", msg.To, "subject", msg.Subject, "body_length", len(msg.HTML))
	return nil
}

// LogChannel writes each job of a digest to the logger. Dry runs use it in
// place of the real channels.
type LogChannel struct {
	logger *slog.Logger
}

var _ Channel = (*LogChannel)(nil)

// NewLogChannel returns a channel that logs each job via slog.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Enabled(model.UserPreferences) bool { return true }

// Send logs one line per job. It never fails.
func (c *LogChannel) Send(_ context.Context, p model.UserPreferences, jobs []model.Job) error {
	for _, j := range jobs {
		c.logger.Info("new match",
			"user_id", p.UserID,
			"company", j.Company,
			"title", j.Title,
			"location", locationOrRemote(j),
			"source", j.Source,
			"url", j.ApplyURL,
			"posted_at", j.PostedAt)
	}
	return nil
}
