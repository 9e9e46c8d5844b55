package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// KeyedLimiter enforces a minimum delay between calls sharing a key, e.g. all
// requests to one ATS backend or all sends on one notification channel.
// Concurrent callers are queued: each reserves the next free slot under the
// lock, then sleeps outside it.
type KeyedLimiter struct {
	mu       sync.Mutex
	next     map[string]time.Time // earliest time the next call on key may run
	minDelay time.Duration
	now      func() time.Time
}

// NewKeyedLimiter creates a limiter spacing calls on the same key by minDelay.
func NewKeyedLimiter(minDelay time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
		now:      time.Now,
	}
}

// Wait blocks until the caller's slot for key arrives. Returns an error if
// ctx is cancelled first; the reserved slot is not returned to the queue.
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.now()
	slot := now
	if n, ok := l.next[key]; ok && n.After(now) {
		slot = n
	}
	l.next[key] = slot.Add(l.minDelay)
	l.mu.Unlock()

	remaining := slot.Sub(now)
	if remaining <= 0 {
		return nil
	}

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-t.C:
		return nil
	}
}

// RateLimitedFetcher waits on a shared limiter before delegating, so boards
// hosted by the same ATS are not hit back to back.
type RateLimitedFetcher struct {
	inner   model.JobFetcher
	limiter *KeyedLimiter
	key     string
}

// NewRateLimitedFetcher wraps a JobFetcher. All fetchers targeting the same
// backend should share one limiter and key.
func NewRateLimitedFetcher(inner model.JobFetcher, limiter *KeyedLimiter, key string) *RateLimitedFetcher {
	return &RateLimitedFetcher{inner: inner, limiter: limiter, key: key}
}

var _ model.JobFetcher = (*RateLimitedFetcher)(nil)

func (f *RateLimitedFetcher) Name() string { return f.inner.Name() }

// FetchJobs waits for the limiter, then delegates to the wrapped fetcher.
func (f *RateLimitedFetcher) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	if err := f.limiter.Wait(ctx, f.key); err != nil {
		return nil, err
	}
	return f.inner.FetchJobs(ctx)
}
