package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/duesjobs/duesjobs/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	FirstPublished string             `json:"first_published"`
	UpdatedAt      string             `json:"updated_at"`
	Content        string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches one company's jobs from the Greenhouse public
// boards API.
type GreenhouseAdapter struct {
	boardToken  string
	companyName string
	client      *http.Client
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken string, companyName string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
	}
}

func (a *GreenhouseAdapter) Name() string { return "Greenhouse/" + a.boardToken }

// FetchJobs retrieves the board with content so descriptions are available
// to keyword matching.
func (a *GreenhouseAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.boardToken)

	var ghResp greenhouseResponse
	if err := getJSON(ctx, a.client, "greenhouse "+a.boardToken, url, nil, &ghResp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		postedAt := gj.FirstPublished
		if postedAt == "" {
			postedAt = gj.UpdatedAt
		}
		jobs = append(jobs, model.RawJob{
			Title:       gj.Title,
			Company:     a.companyName,
			Location:    gj.Location.Name,
			IsRemote:    containsFold(gj.Location.Name, "remote"),
			Source:      "Greenhouse",
			ApplyURL:    gj.AbsoluteURL,
			PostedAt:    postedAt,
			Description: extractText(gj.Content),
		})
	}
	return jobs, nil
}
