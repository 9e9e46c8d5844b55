package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	retrygo "github.com/codeGROOVE-dev/retry"

	"github.com/duesjobs/duesjobs/internal/model"
)

// RetryFetcher decorates a JobFetcher with exponential backoff and jitter.
// Only transient failures are retried; see model.IsTransient.
type RetryFetcher struct {
	inner      model.JobFetcher
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	timer      retrygo.Timer
}

// NewRetryFetcher wraps a JobFetcher with retry logic. maxRetries is the
// number of attempts after the first failure; baseDelay doubles on each one.
func NewRetryFetcher(inner model.JobFetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	return &RetryFetcher{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		timer:      realTimer{},
	}
}

var _ model.JobFetcher = (*RetryFetcher)(nil)

// Name passes through the wrapped adapter's identity.
func (f *RetryFetcher) Name() string { return f.inner.Name() }

// FetchJobs calls the wrapped fetcher until it succeeds, returns a
// non-transient error, or runs out of attempts.
func (f *RetryFetcher) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	return retrygo.DoWithData(
		func() ([]model.RawJob, error) { return f.inner.FetchJobs(ctx) },
		retrygo.Attempts(uint(f.maxRetries)+1),
		retrygo.Context(ctx),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(model.IsTransient),
		retrygo.DelayType(func(n uint, err error, _ *retrygo.Config) time.Duration {
			return f.backoffDelay(int(n), err)
		}),
		retrygo.WithTimer(f.timer),
		retrygo.OnRetry(func(n uint, err error) {
			f.logger.Warn("retrying source after transient error",
				"source", f.inner.Name(),
				"attempt", n+1,
				"max_retries", f.maxRetries,
				"error", err,
			)
		}),
	)
}

// backoffDelay is baseDelay * 2^(attempt-1) with ±30% jitter. A Retry-After
// hint from the server takes precedence.
func (f *RetryFetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := f.baseDelay << (attempt - 1)
	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time { return time.After(d) }
