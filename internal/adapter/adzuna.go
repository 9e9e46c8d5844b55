package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/duesjobs/duesjobs/internal/model"
)

const adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

type adzunaJob struct {
	Title       string        `json:"title"`
	Company     adzunaDisplay `json:"company"`
	Location    adzunaDisplay `json:"location"`
	RedirectURL string        `json:"redirect_url"`
	Created     string        `json:"created"`
	Description string        `json:"description"`
	SalaryMin   float64       `json:"salary_min"`
	SalaryMax   float64       `json:"salary_max"`
}

type adzunaDisplay struct {
	DisplayName string `json:"display_name"`
}

type adzunaResponse struct {
	Results []adzunaJob `json:"results"`
}

// AdzunaAdapter searches the Adzuna jobs API for one country.
type AdzunaAdapter struct {
	appID   string
	appKey  string
	country string
	what    string
	perPage int
	client  *http.Client
	logger  *slog.Logger
}

// NewAdzunaAdapter creates an Adzuna adapter. Empty credentials are allowed;
// FetchJobs then returns no jobs.
func NewAdzunaAdapter(appID, appKey, country, what string, perPage int, client *http.Client, logger *slog.Logger) *AdzunaAdapter {
	if country == "" {
		country = "gb"
	}
	if what == "" {
		what = "developer"
	}
	if perPage <= 0 {
		perPage = 50
	}
	return &AdzunaAdapter{
		appID:   appID,
		appKey:  appKey,
		country: country,
		what:    what,
		perPage: perPage,
		client:  client,
		logger:  logger,
	}
}

func (a *AdzunaAdapter) Name() string { return "Adzuna" }

// FetchJobs retrieves the first page of search results.
func (a *AdzunaAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	if a.appID == "" || a.appKey == "" {
		a.logger.Info("skipping adzuna, missing app credentials")
		return []model.RawJob{}, nil
	}

	q := url.Values{}
	q.Set("app_id", a.appID)
	q.Set("app_key", a.appKey)
	q.Set("results_per_page", strconv.Itoa(a.perPage))
	q.Set("what", a.what)
	q.Set("content-type", "application/json")
	endpoint := fmt.Sprintf("%s/%s/search/1?%s", adzunaBaseURL, url.PathEscape(a.country), q.Encode())

	var resp adzunaResponse
	if err := getJSON(ctx, a.client, "adzuna", endpoint, nil, &resp); err != nil {
		return nil, err
	}

	jobs := make([]model.RawJob, 0, len(resp.Results))
	for _, aj := range resp.Results {
		description := extractText(aj.Description)
		var salary string
		if aj.SalaryMin > 0 {
			salary = fmt.Sprintf("%s - %s", formatAmount(aj.SalaryMin), formatAmount(aj.SalaryMax))
		}
		jobs = append(jobs, model.RawJob{
			Title:    aj.Title,
			Company:  aj.Company.DisplayName,
			Location: aj.Location.DisplayName,
			// Adzuna has no remote flag.
			IsRemote:    containsFold(aj.Title+" "+aj.Location.DisplayName+" "+description, "remote", "work from home"),
			Source:      "Adzuna",
			ApplyURL:    aj.RedirectURL,
			PostedAt:    aj.Created,
			Description: description,
			Salary:      salary,
		})
	}
	return jobs, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
