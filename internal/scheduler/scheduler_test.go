package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	if _, err := New("every day please", true, func(context.Context) {}, discardLogger()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRun_ImmediateFirstRunThenTicks(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", true, func(context.Context) { calls.Add(1) }, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := calls.Load(); got < 2 {
		t.Errorf("expected immediate run plus at least one tick, got %d calls", got)
	}
}

func TestRun_NoImmediateRunWhenDisabled(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1h", false, func(context.Context) { calls.Add(1) }, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no calls, got %d", got)
	}
}

func TestRun_ReturnsOnCancellation(t *testing.T) {
	s, err := New("0 8 * * *", false, func(context.Context) {}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
