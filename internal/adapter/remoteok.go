package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/duesjobs/duesjobs/internal/model"
)

const remoteOKBaseURL = "https://remoteok.com/api"

// remoteOKJob represents one element of the RemoteOK array.
type remoteOKJob struct {
	Position    string          `json:"position"`
	Company     string          `json:"company"`
	Location    string          `json:"location"`
	URL         string          `json:"url"`
	ApplyURL    string          `json:"apply_url"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	SalaryMin   int64           `json:"salary_min"`
	SalaryMax   int64           `json:"salary_max"`
	Salary      json.RawMessage `json:"salary"` // free text, occasionally a number
}

// RemoteOKAdapter fetches jobs from the RemoteOK JSON feed.
type RemoteOKAdapter struct {
	client *http.Client
}

// NewRemoteOKAdapter creates a RemoteOK adapter.
func NewRemoteOKAdapter(client *http.Client) *RemoteOKAdapter {
	return &RemoteOKAdapter{client: client}
}

func (a *RemoteOKAdapter) Name() string { return "RemoteOK" }

// FetchJobs retrieves the feed. The first array element is a legal notice,
// not a job, and is skipped. RemoteOK blocks requests without a User-Agent.
func (a *RemoteOKAdapter) FetchJobs(ctx context.Context) ([]model.RawJob, error) {
	header := http.Header{}
	header.Set("User-Agent", userAgent)

	var items []remoteOKJob
	if err := getJSON(ctx, a.client, "remoteok", remoteOKBaseURL, header, &items); err != nil {
		return nil, err
	}
	if len(items) <= 1 {
		return []model.RawJob{}, nil
	}

	jobs := make([]model.RawJob, 0, len(items)-1)
	for _, it := range items[1:] {
		if it.Position == "" {
			continue
		}
		var salary string
		if it.SalaryMin > 0 {
			salary = fmt.Sprintf("%d-%d", it.SalaryMin, it.SalaryMax)
		} else {
			salary = rawText(it.Salary)
		}
		jobs = append(jobs, model.RawJob{
			Title:       it.Position,
			Company:     it.Company,
			Location:    it.Location,
			IsRemote:    true,
			Source:      "RemoteOK",
			ApplyURL:    it.URL,
			SourceURL:   it.ApplyURL,
			PostedAt:    it.Date,
			Description: extractText(it.Description),
			Salary:      salary,
		})
	}
	return jobs, nil
}

// rawText renders a JSON string or number as plain text. null and other
// shapes yield "".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
