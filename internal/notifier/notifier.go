// Package notifier delivers newly matched jobs to users over email and
// Telegram, and posts run reports to Slack.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/duesjobs/duesjobs/internal/model"
)

// Channel is one delivery route for a user's digest.
type Channel interface {
	Name() string
	// Enabled reports whether the user has opted in and is reachable.
	Enabled(p model.UserPreferences) bool
	Send(ctx context.Context, p model.UserPreferences, jobs []model.Job) error
}

// Dispatcher fans a digest out to every enabled channel. Channel failures are
// logged as model.NotificationError and never returned.
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
}

var _ model.Notifier = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher over channels.
func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger}
}

// Notify sends jobs to every channel enabled for p. Channels run
// concurrently so a slow provider does not delay the other.
func (d *Dispatcher) Notify(ctx context.Context, p model.UserPreferences, jobs []model.Job) {
	if len(jobs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, ch := range d.channels {
		if !ch.Enabled(p) {
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			d.send(ctx, ch, p, jobs)
		}(ch)
	}
	wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, p model.UserPreferences, jobs []model.Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification panicked", "channel", ch.Name(), "user_id", p.UserID, "panic", r)
		}
	}()

	start := time.Now()
	if err := ch.Send(ctx, p, jobs); err != nil {
		nerr := &model.NotificationError{Channel: ch.Name(), UserID: p.UserID, Err: err}
		d.logger.Error("notification failed", "channel", ch.Name(), "user_id", p.UserID, "error", nerr)
		return
	}
	d.logger.Info("notification sent",
		"channel", ch.Name(),
		"user_id", p.UserID,
		"jobs", len(jobs),
		"duration_ms", time.Since(start).Milliseconds())
}

// RetryPolicy bounds how a channel retries transient send failures.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultRetryPolicy is used when a channel is built without one.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

func (rp RetryPolicy) do(ctx context.Context, logger *slog.Logger, channel string, transient func(error) bool, fn func() error) error {
	attempts := rp.Attempts
	if attempts == 0 {
		attempts = 1
	}
	delay := rp.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	err := retry.Do(fn,
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying notification send", "channel", channel, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(transient),
	)
	if err != nil {
		return fmt.Errorf("%s send: %w", channel, err)
	}
	return nil
}
