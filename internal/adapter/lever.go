package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/duesjobs/duesjobs/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverSalaryRange struct {
	Currency string  `json:"currency"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	DescriptionPlain string            `json:"descriptionPlain"`
	Categories       leverCategories   `json:"categories"`
	CreatedAt        int64             `json:"createdAt"`
	WorkplaceType    string            `json:"workplaceType"`
	HostedURL        string            `json:"hostedUrl"`
	ApplyURL         string            `json:"applyUrl"`
	SalaryRange      *leverSalaryRange `json:"salaryRange"`
}

// LeverAdapter fetches one company's jobs from the Lever public postings API.
type LeverAdapter struct {
	companySlug string
	companyName string
	client      *http.Client
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(companySlug string, companyName string, client *http.Client) *LeverAdapter {
	return &LeverAdapter{
		companySlug: companySlug,
		companyName: companyName,
		client:      client,
	}
}

func (a *LeverAdapter) Name() string { return "Lever/" + a.companySlug }

// FetchJobs retrieves all postings for the company.
func (a *LeverAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.companySlug)

	var leverJobs []leverJob
	if err := getJSON(ctx, a.client, "lever "+a.companySlug, url, nil, &leverJobs); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(leverJobs))
	for _, lj := range leverJobs {
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is unix milliseconds.
		var postedAt string
		if lj.CreatedAt > 0 {
			postedAt = strconv.FormatInt(lj.CreatedAt, 10)
		}

		var salary string
		if sr := lj.SalaryRange; sr != nil && sr.Min > 0 {
			salary = strings.TrimSpace(fmt.Sprintf("%s %s - %s", sr.Currency, formatAmount(sr.Min), formatAmount(sr.Max)))
		}

		jobs = append(jobs, model.RawJob{
			Title:       lj.Text,
			Company:     a.companyName,
			Location:    location,
			IsRemote:    strings.EqualFold(lj.WorkplaceType, "remote") || containsFold(location, "remote"),
			JobType:     lj.Categories.Commitment,
			Source:      "Lever",
			ApplyURL:    lj.ApplyURL,
			SourceURL:   lj.HostedURL,
			PostedAt:    postedAt,
			Description: lj.DescriptionPlain,
			Salary:      salary,
		})
	}
	return jobs, nil
}
