package adapter

import (
	"context"
	"testing"
	"time"
)

func TestSampleBoards(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range SampleBoardNames() {
		t.Run(name, func(t *testing.T) {
			b, ok := NewSampleBoard(name, func() time.Time { return now })
			if !ok {
				t.Fatalf("board %q not found", name)
			}
			jobs, err := b.FetchJobs(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(jobs) == 0 {
				t.Fatal("expected canned jobs")
			}
			for _, j := range jobs {
				if j.Source != name {
					t.Errorf("source = %q, want %q", j.Source, name)
				}
				posted, err := time.Parse(time.RFC3339, j.PostedAt)
				if err != nil || posted.After(now) || now.Sub(posted) > 2*time.Hour {
					t.Errorf("posted_at %q not recent", j.PostedAt)
				}
			}
		})
	}
}

func TestSampleBoard_Unknown(t *testing.T) {
	if _, ok := NewSampleBoard("Monster", nil); ok {
		t.Error("expected unknown board to be rejected")
	}
}

func TestSampleBoard_CanceledContext(t *testing.T) {
	b, _ := NewSampleBoard("Indeed", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.FetchJobs(ctx); err == nil {
		t.Error("expected context error")
	}
}
