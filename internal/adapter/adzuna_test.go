package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdzunaFetchJobs_Success(t *testing.T) {
	payload := `{
		"results": [
			{
				"title": "Python Developer",
				"company": {"display_name": "DataWorks"},
				"location": {"display_name": "London, UK"},
				"redirect_url": "https://adzuna.co.uk/land/ad/1",
				"created": "2026-02-27T08:30:00Z",
				"description": "Hybrid role, occasional work from home.",
				"salary_min": 50000,
				"salary_max": 65000.5
			},
			{
				"title": "Java Developer",
				"company": {"display_name": "BankCo"},
				"location": {"display_name": "Leeds"},
				"redirect_url": "https://adzuna.co.uk/land/ad/2",
				"created": "2026-02-26T08:30:00Z",
				"description": "Office based."
			}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/jobs/gb/search/1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" || q.Get("what") != "developer" || q.Get("results_per_page") != "50" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	a := NewAdzunaAdapter("id", "key", "", "", 0, testClient(srv), discardLogger())
	jobs, err := a.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if !jobs[0].IsRemote {
		t.Error("expected work-from-home heuristic to mark job remote")
	}
	if jobs[0].Salary != "50000 - 65000.5" {
		t.Errorf("salary = %q", jobs[0].Salary)
	}
	if jobs[0].Company != "DataWorks" || jobs[0].Location != "London, UK" {
		t.Errorf("company/location = %q / %q", jobs[0].Company, jobs[0].Location)
	}
	if jobs[1].IsRemote || jobs[1].Salary != "" {
		t.Errorf("unexpected second job: %+v", jobs[1])
	}
}

func TestAdzunaFetchJobs_MissingCredentialsSkips(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	jobs, err := NewAdzunaAdapter("", "", "us", "", 0, testClient(srv), discardLogger()).FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 || called {
		t.Errorf("expected empty result without a request, got %d jobs (called=%v)", len(jobs), called)
	}
}
