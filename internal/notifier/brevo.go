package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoSender sends email through the Brevo transactional API.
type BrevoSender struct {
	apiKey   string
	fromAddr string
	fromName string
	endpoint string
	client   *http.Client
	retry    RetryPolicy
	logger   *slog.Logger
}

var _ EmailSender = (*BrevoSender)(nil)

// NewBrevoSender returns a Brevo provider. An empty endpoint selects the
// public API.
func NewBrevoSender(apiKey, fromAddr, fromName, endpoint string, client *http.Client, policy RetryPolicy, logger *slog.Logger) *BrevoSender {
	if endpoint == "" {
		endpoint = brevoEndpoint
	}
	return &BrevoSender{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: endpoint,
		client:   client,
		retry:    policy,
		logger:   logger,
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
	Text    string         `json:"textContent,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (b *BrevoSender) Send(ctx context.Context, msg EmailMessage) error {
	body, err := json.Marshal(brevoSendRequest{
		Sender:  brevoContact{Email: b.fromAddr, Name: b.fromName},
		To:      []brevoContact{{Email: msg.To}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	return b.retry.do(ctx, b.logger, "brevo", model.IsTransient, func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("api-key", b.apiKey)

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("brevo: %s", bytes.TrimSpace(detail))}
		}
		b.logger.Debug("brevo request completed", "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
}
