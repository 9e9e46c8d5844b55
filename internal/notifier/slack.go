package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// SlackReporter posts a pipeline run summary to a Slack Incoming Webhook.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts to webhookURL.
func NewSlackReporter(webhookURL string, httpClient *http.Client, policy RetryPolicy, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		retry:      policy,
		logger:     logger,
	}
}

// Report sends one Block Kit message describing the finished run.
func (s *SlackReporter) Report(ctx context.Context, l model.FetchLog) error {
	body, err := json.Marshal(buildRunPayload(l))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	return s.retry.do(ctx, s.logger, "slack", model.IsTransient, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post to slack: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				httpErr.RetryAfter = time.Duration(secs) * time.Second
			}
			return httpErr
		}
		s.logger.Info("slack run report sent", "run_id", l.RunID, "status", l.Status)
		return nil
	})
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildRunPayload(l model.FetchLog) slackPayload {
	header := "✅ DuesJobs run succeeded"
	if l.Status != model.RunSuccess {
		header = "❌ DuesJobs run failed"
	}

	sources := "none"
	if len(l.Sources) > 0 {
		sources = strings.Join(l.Sources, ", ")
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: header},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Fetched:*\n" + strconv.Itoa(l.JobsFetched)},
				{Type: "mrkdwn", Text: "*Inserted:*\n" + strconv.Itoa(l.JobsInserted)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Duration:*\n" + l.CompletedAt.Sub(l.StartedAt).Round(time.Millisecond).String()},
				{Type: "mrkdwn", Text: "*Sources:*\n" + sources},
			},
		},
	}

	if l.Details != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Details:*\n```" + l.Details + "```"},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "context",
			Elements: []slackText{
				{Type: "mrkdwn", Text: "Run `" + l.RunID + "` completed " + l.CompletedAt.UTC().Format(time.RFC1123)},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
