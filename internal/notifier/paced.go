package notifier

import (
	"context"

	"github.com/duesjobs/duesjobs/internal/model"
	"github.com/duesjobs/duesjobs/internal/ratelimit"
)

// PacedChannel spaces sends on the wrapped channel by the limiter's minimum
// delay, keyed by channel name.
type PacedChannel struct {
	Channel
	limiter *ratelimit.KeyedLimiter
}

// NewPacedChannel wraps ch with limiter.
func NewPacedChannel(ch Channel, limiter *ratelimit.KeyedLimiter) *PacedChannel {
	return &PacedChannel{Channel: ch, limiter: limiter}
}

func (c *PacedChannel) Send(ctx context.Context, p model.UserPreferences, jobs []model.Job) error {
	if err := c.limiter.Wait(ctx, c.Name()); err != nil {
		return err
	}
	return c.Channel.Send(ctx, p, jobs)
}
