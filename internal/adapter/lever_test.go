package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLeverFetchJobs_Success(t *testing.T) {
	payload := `[
		{
			"id": "abc-123",
			"text": "Software Engineer",
			"descriptionPlain": "Write Go services.",
			"categories": {
				"team": "Engineering",
				"location": "San Francisco, CA",
				"commitment": "Full-time",
				"allLocations": ["San Francisco, CA", "New York, NY"]
			},
			"createdAt": 1771000000000,
			"workplaceType": "onsite",
			"hostedUrl": "https://jobs.lever.co/acme/abc-123",
			"applyUrl": "https://jobs.lever.co/acme/abc-123/apply",
			"salaryRange": {"currency": "USD", "min": 150000, "max": 190000}
		},
		{
			"id": "def-456",
			"text": "Backend Engineer",
			"categories": {"location": "Anywhere"},
			"createdAt": 0,
			"workplaceType": "remote",
			"hostedUrl": "https://jobs.lever.co/acme/def-456"
		}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("mode") != "json" {
			t.Errorf("expected mode=json, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	jobs, err := newLeverTestAdapter(srv, "acme", "Acme Corp").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.Location != "San Francisco, CA, New York, NY" {
		t.Errorf("expected joined allLocations, got %q", j.Location)
	}
	if j.IsRemote {
		t.Error("onsite posting marked remote")
	}
	if j.JobType != "Full-time" {
		t.Errorf("job type = %q", j.JobType)
	}
	if j.PostedAt != "1771000000000" {
		t.Errorf("posted_at = %q", j.PostedAt)
	}
	if j.ApplyURL != "https://jobs.lever.co/acme/abc-123/apply" || j.SourceURL != "https://jobs.lever.co/acme/abc-123" {
		t.Errorf("urls = %q / %q", j.ApplyURL, j.SourceURL)
	}
	if j.Salary != "USD 150000 - 190000" {
		t.Errorf("salary = %q", j.Salary)
	}
	if j.Source != "Lever" {
		t.Errorf("source = %q", j.Source)
	}

	r := jobs[1]
	if !r.IsRemote {
		t.Error("remote workplace type not marked remote")
	}
	if r.PostedAt != "" {
		t.Errorf("expected empty posted_at for createdAt=0, got %q", r.PostedAt)
	}
	if r.ApplyURL != "" || r.SourceURL != "https://jobs.lever.co/acme/def-456" {
		t.Errorf("expected hosted url as source fallback, got %q / %q", r.ApplyURL, r.SourceURL)
	}
}

func TestLeverFetchJobs_HTTPError(t *testing.T) {
	srv := statusServer(http.StatusInternalServerError, nil)
	defer srv.Close()

	if _, err := newLeverTestAdapter(srv, "acme", "Acme").FetchJobs(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func newLeverTestAdapter(srv *httptest.Server, slug, company string) *LeverAdapter {
	return NewLeverAdapter(slug, company, testClient(srv))
}
