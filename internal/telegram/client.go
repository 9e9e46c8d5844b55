// Package telegram is a minimal Bot API client: sendMessage for digests and
// getUpdates long polling for the chat-id assistant.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

const defaultBaseURL = "https://api.telegram.org"

// MockToken is the placeholder token that keeps Telegram in log-only mode.
const MockToken = "mock_token"

// Configured reports whether token can reach the real Bot API.
func Configured(token string) bool {
	return token != "" && token != MockToken
}

// Client calls the Bot API for one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for token. An empty baseURL selects the public
// Bot API endpoint.
func NewClient(token, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{token: token, baseURL: baseURL, httpClient: httpClient}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Update is the subset of a getUpdates entry the assistant reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		FirstName string `json:"first_name"`
	} `json:"from"`
}

// SendMessage posts Markdown text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// GetUpdates long-polls for updates at or after offset, waiting up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	var updates []Update
	if err := c.do(req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling telegram: %w", err)
	}
	defer resp.Body.Close()

	var env apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode != http.StatusOK || !env.OK {
		httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
		if env.Description != "" {
			httpErr.Err = errors.New(env.Description)
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			httpErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return httpErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decoding telegram response: %w", decodeErr)
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("decoding telegram result: %w", err)
		}
	}
	return nil
}
