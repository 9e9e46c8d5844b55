package adapter

import (
	"context"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// sampleJob is a canned posting; Age is subtracted from the board clock to
// produce PostedAt so the postings always fall inside the recency window.
type sampleJob struct {
	model.RawJob
	Age time.Duration
}

// SampleBoard serves a fixed set of postings for boards without a public API
// (LinkedIn, Indeed, Wellfound, Arc.dev). Used for demos and dry runs.
type SampleBoard struct {
	name string
	jobs []sampleJob
	now  func() time.Time
}

var sampleBoards = map[string][]sampleJob{
	"LinkedIn": {
		{RawJob: model.RawJob{
			Title:       "Senior Frontend Engineer",
			Company:     "TechCorp",
			Location:    "San Francisco, CA",
			ApplyURL:    "https://linkedin.com/jobs/view/123456",
			Description: "We are looking for a Senior Frontend Engineer with React experience.",
			Salary:      "$150k - $180k",
		}},
		{RawJob: model.RawJob{
			Title:       "Backend Developer (Node.js)",
			Company:     "StartupX",
			Location:    "Remote",
			IsRemote:    true,
			ApplyURL:    "https://linkedin.com/jobs/view/789012",
			Description: "Join our backend team building scalable APIs.",
			Salary:      "$120k - $160k",
		}, Age: time.Hour},
	},
	"Indeed": {
		{RawJob: model.RawJob{
			Title:       "Product Manager",
			Company:     "BizInc",
			Location:    "New York, NY",
			ApplyURL:    "https://indeed.com/viewjob?jk=123",
			Description: "Lead our product team.",
		}},
	},
	"Wellfound": {
		{RawJob: model.RawJob{
			Title:       "Founding Engineer",
			Company:     "Stealth Startup",
			Location:    "Remote",
			IsRemote:    true,
			ApplyURL:    "https://wellfound.com/jobs/999",
			Description: "Build from scratch.",
			Salary:      "2.0% - 5.0% Equity",
		}},
	},
	"Arc.dev": {
		{RawJob: model.RawJob{
			Title:       "Remote React Developer",
			Company:     "Global Teams",
			Location:    "Remote",
			IsRemote:    true,
			ApplyURL:    "https://arc.dev/j/555",
			Description: "Work from anywhere.",
			Salary:      "$60k - $100k",
		}},
	},
}

// SampleBoardNames lists the boards NewSampleBoard accepts.
func SampleBoardNames() []string {
	return []string{"LinkedIn", "Indeed", "Wellfound", "Arc.dev"}
}

// NewSampleBoard returns the canned board with the given name, or false if
// there is none.
func NewSampleBoard(name string, now func() time.Time) (*SampleBoard, bool) {
	jobs, ok := sampleBoards[name]
	if !ok {
		return nil, false
	}
	if now == nil {
		now = time.Now
	}
	return &SampleBoard{name: name, jobs: jobs, now: now}, true
}

func (b *SampleBoard) Name() string { return b.name }

// FetchJobs returns a fresh copy of the board's postings stamped relative to now.
func (b *SampleBoard) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := b.now().UTC()
	jobs := make([]model.RawJob, 0, len(b.jobs))
	for _, sj := range b.jobs {
		j := sj.RawJob
		j.Source = b.name
		j.PostedAt = now.Add(-sj.Age).Format(time.RFC3339)
		jobs = append(jobs, j)
	}
	return jobs, nil
}
