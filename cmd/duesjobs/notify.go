package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/notifier"
)

var (
	notifyEmail     string
	notifyChatID    string
	notifySlackTest bool
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample digest through the configured channels",
	Long:  "Sends a sample digest to the given email address and/or Telegram chat, and optionally a sample run report to Slack.",
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyEmail, "email", "", "email address to send the sample digest to")
	notifyTestCmd.Flags().StringVar(&notifyChatID, "telegram-chat", "", "Telegram chat id to send the sample digest to")
	notifyTestCmd.Flags().BoolVar(&notifySlackTest, "slack", false, "also post a sample run report to the Slack webhook")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	if notifyEmail == "" && notifyChatID == "" && !notifySlackTest {
		return fmt.Errorf("pass --email, --telegram-chat or --slack")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	httpClient := newHTTPClient()
	now := time.Now()

	if notifyEmail != "" || notifyChatID != "" {
		p := model.UserPreferences{
			UserID:          uuid.NewString(),
			Email:           notifyEmail,
			EmailEnabled:    notifyEmail != "",
			TelegramEnabled: notifyChatID != "",
		}
		if notifyChatID != "" {
			p.TelegramChatID = &notifyChatID
		}
		// Dispatch errors are logged per channel; there is nothing to return.
		buildNotifier(cfg, httpClient, logger).Notify(ctx, p, notifier.SampleDigest(now))
		logger.Info("sample digest dispatched", "email", notifyEmail, "telegram_chat", notifyChatID)
	}

	if notifySlackTest {
		if cfg.Notification.SlackWebhook == "" {
			return fmt.Errorf("--slack requires notification.slack.webhook_url in config")
		}
		reporter := notifier.NewSlackReporter(cfg.Notification.SlackWebhook, httpClient, retryPolicy(cfg), logger)
		err := reporter.Report(ctx, model.FetchLog{
			RunID:        uuid.NewString(),
			Status:       model.RunSuccess,
			JobsFetched:  42,
			JobsInserted: 7,
			Sources:      []string{"Remotive", "RemoteOK"},
			Details:      "sample report from duesjobs notify test",
			StartedAt:    now.Add(-90 * time.Second),
			CompletedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("slack test report: %w", err)
		}
		logger.Info("sample run report sent to slack")
	}
	return nil
}
