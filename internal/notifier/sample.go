package notifier

import (
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// SampleDigest returns placeholder jobs used to verify channel credentials.
func SampleDigest(now time.Time) []model.Job {
	loc := "Everywhere"
	return []model.Job{
		{
			ID:       1,
			Title:    "Test Notification - Integration Verified",
			Company:  "Dues Jobs",
			Location: &loc,
			IsRemote: true,
			JobType:  "Remote",
			Source:   "test",
			ApplyURL: "https://example.com/jobs/1",
			PostedAt: now,
		},
		{
			ID:       2,
			Title:    "Backend Engineer (sample)",
			Company:  "Dues Jobs",
			JobType:  "Onsite",
			Source:   "test",
			ApplyURL: "https://example.com/jobs/2",
			PostedAt: now,
		},
	}
}
