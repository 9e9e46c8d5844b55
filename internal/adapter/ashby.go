package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/duesjobs/duesjobs/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	Title            string `json:"title"`
	Location         string `json:"location"`
	IsRemote         bool   `json:"isRemote"`
	EmploymentType   string `json:"employmentType"`
	JobURL           string `json:"jobUrl"`
	ApplyURL         string `json:"applyUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	DescriptionPlain string `json:"descriptionPlain"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches one company's jobs from the Ashby public job board API.
type AshbyAdapter struct {
	boardToken  string
	companyName string
	client      *http.Client
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(boardToken string, companyName string, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
	}
}

func (a *AshbyAdapter) Name() string { return "Ashby/" + a.boardToken }

// FetchJobs retrieves the listed postings on the board. Unlisted jobs are
// skipped.
func (a *AshbyAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s", ashbyBaseURL, a.boardToken)

	var ashbyResp ashbyResponse
	if err := getJSON(ctx, a.client, "ashby "+a.boardToken, url, nil, &ashbyResp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(ashbyResp.Jobs))
	for _, aj := range ashbyResp.Jobs {
		if !aj.IsListed {
			continue
		}
		jobs = append(jobs, model.RawJob{
			Title:       aj.Title,
			Company:     a.companyName,
			Location:    aj.Location,
			IsRemote:    aj.IsRemote || containsFold(aj.Location, "remote"),
			JobType:     aj.EmploymentType,
			Source:      "Ashby",
			ApplyURL:    aj.ApplyURL,
			SourceURL:   aj.JobURL,
			PostedAt:    aj.PublishedAt,
			Description: aj.DescriptionPlain,
		})
	}
	return jobs, nil
}
