package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/duesjobs/duesjobs/internal/model"
)

const remotiveBaseURL = "https://remotive.com/api/remote-jobs"

// remotiveJob represents a single job in the Remotive API response.
type remotiveJob struct {
	ID                        int64  `json:"id"`
	URL                       string `json:"url"`
	Title                     string `json:"title"`
	CompanyName               string `json:"company_name"`
	JobType                   string `json:"job_type"`
	PublicationDate           string `json:"publication_date"`
	CandidateRequiredLocation string `json:"candidate_required_location"`
	Salary                    string `json:"salary"`
	Description               string `json:"description"`
}

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

// RemotiveAdapter fetches remote software jobs from the Remotive public API.
// Every Remotive posting is remote.
type RemotiveAdapter struct {
	category string
	limit    int
	client   *http.Client
}

// NewRemotiveAdapter creates an adapter for one Remotive category.
func NewRemotiveAdapter(category string, limit int, client *http.Client) *RemotiveAdapter {
	if category == "" {
		category = "software-dev"
	}
	if limit <= 0 {
		limit = 50
	}
	return &RemotiveAdapter{category: category, limit: limit, client: client}
}

func (a *RemotiveAdapter) Name() string { return "Remotive" }

// FetchJobs retrieves the category listing and maps it to raw jobs.
func (a *RemotiveAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	q := url.Values{}
	q.Set("category", a.category)
	q.Set("limit", strconv.Itoa(a.limit))

	var resp remotiveResponse
	if err := getJSON(ctx, a.client, "remotive", remotiveBaseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(resp.Jobs))
	for _, rj := range resp.Jobs {
		jobs = append(jobs, model.RawJob{
			Title:       rj.Title,
			Company:     rj.CompanyName,
			Location:    rj.CandidateRequiredLocation,
			IsRemote:    true,
			Source:      "Remotive",
			ApplyURL:    rj.URL,
			PostedAt:    rj.PublicationDate,
			Description: extractText(rj.Description),
			Salary:      rj.Salary,
		})
	}
	return jobs, nil
}
