package notifier

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fastRetry = RetryPolicy{Attempts: 3, Delay: time.Millisecond}

func strPtr(s string) *string { return &s }

func sampleJob(id int64, title, company string) model.Job {
	return model.Job{
		ID:       id,
		Title:    title,
		Company:  company,
		Location: strPtr("Berlin"),
		Source:   "Remotive",
		ApplyURL: "https://example.com/apply/" + title,
		PostedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

// recordingChannel captures sends and optionally fails or panics.
type recordingChannel struct {
	name    string
	enabled bool
	err     error
	panics  bool

	mu    sync.Mutex
	calls [][]model.Job
}

func (c *recordingChannel) Name() string                       { return c.name }
func (c *recordingChannel) Enabled(model.UserPreferences) bool { return c.enabled }

func (c *recordingChannel) Send(_ context.Context, _ model.UserPreferences, jobs []model.Job) error {
	if c.panics {
		panic("channel exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, jobs)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
