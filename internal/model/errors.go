package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound is returned by stores when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// SourceFetchError is one adapter failing. Non-fatal for a run.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StoreWriteError is a bulk write or reload failing. Fatal for a run.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// UserProcessingError is one user's match/record/notify sequence failing.
type UserProcessingError struct {
	UserID string
	Err    error
}

func (e *UserProcessingError) Error() string {
	return fmt.Sprintf("processing user %s: %v", e.UserID, e.Err)
}

func (e *UserProcessingError) Unwrap() error { return e.Err }

// NotificationError is one channel failing for one user.
type NotificationError struct {
	Channel string
	UserID  string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification for user %s: %v", e.Channel, e.UserID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: network failures, 429s
// and 5xx responses. Context cancellation and other 4xx responses are final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
