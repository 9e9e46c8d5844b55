package normalizer

import (
	"testing"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewWithClock(func() time.Time { return fixedNow })
}

func TestNormalize_TrimsAndHashes(t *testing.T) {
	n := newTestNormalizer()
	job := n.Normalize(model.RawJob{
		Title:    "  Senior Dev  ",
		Company:  "  Google ",
		Location: "New York",
	})

	if job.Title != "Senior Dev" {
		t.Errorf("title = %q, want %q", job.Title, "Senior Dev")
	}
	if job.Company != "Google" {
		t.Errorf("company = %q, want %q", job.Company, "Google")
	}
	if job.Location == nil || *job.Location != "New York" {
		t.Errorf("location = %v, want New York", job.Location)
	}
	if len(job.CanonicalHash) != 64 {
		t.Errorf("expected 64-char hex hash, got %q", job.CanonicalHash)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := newTestNormalizer()
	job := n.Normalize(model.RawJob{})

	if job.Title != "Unknown Title" {
		t.Errorf("title = %q", job.Title)
	}
	if job.Company != "Unknown Company" {
		t.Errorf("company = %q", job.Company)
	}
	if job.Source != "Unknown" {
		t.Errorf("source = %q", job.Source)
	}
	if job.Location != nil {
		t.Errorf("location = %v, want nil", *job.Location)
	}
	if job.Salary != nil {
		t.Errorf("salary = %v, want nil", *job.Salary)
	}
	if job.JobType != "Onsite" {
		t.Errorf("job type = %q, want Onsite", job.JobType)
	}
	if !job.PostedAt.Equal(fixedNow) {
		t.Errorf("posted_at = %v, want clock time %v", job.PostedAt, fixedNow)
	}
	if job.CanonicalHash != CanonicalHash("Unknown Title", "Unknown Company", "", false) {
		t.Error("default job should hash like its defaulted fields")
	}
}

func TestNormalize_RemoteJobsShareHashAcrossLocations(t *testing.T) {
	n := newTestNormalizer()
	a := n.Normalize(model.RawJob{Title: "Dev", Company: "A", Location: "SF", IsRemote: true})
	b := n.Normalize(model.RawJob{Title: "Dev", Company: "A", Location: "NY", IsRemote: true})

	if a.CanonicalHash != b.CanonicalHash {
		t.Errorf("remote jobs hashed differently: %s vs %s", a.CanonicalHash, b.CanonicalHash)
	}
	if a.JobType != "Remote" {
		t.Errorf("job type = %q, want Remote", a.JobType)
	}
}

func TestNormalize_HashIgnoresCaseWhitespaceAndSource(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name string
		a, b model.RawJob
		same bool
	}{
		{
			name: "case and padding",
			a:    model.RawJob{Title: "Backend Engineer", Company: "Acme", Location: "Berlin", Source: "Adzuna"},
			b:    model.RawJob{Title: "  backend ENGINEER ", Company: "ACME ", Location: " berlin", Source: "Remotive"},
			same: true,
		},
		{
			name: "inner whitespace runs",
			a:    model.RawJob{Title: "Backend  Engineer", Company: "Acme", Location: "Berlin"},
			b:    model.RawJob{Title: "Backend Engineer", Company: "Acme", Location: "Berlin"},
			same: true,
		},
		{
			name: "different onsite location",
			a:    model.RawJob{Title: "Dev", Company: "A", Location: "SF"},
			b:    model.RawJob{Title: "Dev", Company: "A", Location: "NY"},
			same: false,
		},
		{
			name: "remote vs onsite",
			a:    model.RawJob{Title: "Dev", Company: "A", Location: "Remote", IsRemote: true},
			b:    model.RawJob{Title: "Dev", Company: "A", Location: "Remote", IsRemote: false},
			same: true,
		},
		{
			name: "description and salary do not matter",
			a:    model.RawJob{Title: "Dev", Company: "A", Location: "SF", Description: "x", Salary: "1"},
			b:    model.RawJob{Title: "Dev", Company: "A", Location: "SF", Description: "y", Salary: "2"},
			same: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha := n.Normalize(tt.a).CanonicalHash
			hb := n.Normalize(tt.b).CanonicalHash
			if (ha == hb) != tt.same {
				t.Errorf("hash equality = %v, want %v", ha == hb, tt.same)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := newTestNormalizer()
	raw := model.RawJob{
		Title:       "Platform Engineer",
		Company:     "Initech",
		Location:    "Austin, TX",
		Source:      "Indeed",
		ApplyURL:    "https://example.com/1",
		Description: "  Kubernetes  ",
		Salary:      " $100k ",
	}
	first := n.Normalize(raw)
	second := n.Normalize(raw)
	if first.CanonicalHash != second.CanonicalHash || first.Title != second.Title ||
		!first.PostedAt.Equal(second.PostedAt) || *first.Salary != *second.Salary {
		t.Errorf("normalize not deterministic: %+v vs %+v", first, second)
	}
	if first.Description != "Kubernetes" {
		t.Errorf("description = %q", first.Description)
	}
	if *first.Salary != "$100k" {
		t.Errorf("salary = %q", *first.Salary)
	}
}

func TestNormalize_ApplyURLFallsBackToSourceURL(t *testing.T) {
	n := newTestNormalizer()
	job := n.Normalize(model.RawJob{SourceURL: "https://example.com/src"})
	if job.ApplyURL != "https://example.com/src" {
		t.Errorf("apply_url = %q", job.ApplyURL)
	}
}

func TestNormalize_PostedAtFormats(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-02-27T08:30:00Z", time.Date(2026, 2, 27, 8, 30, 0, 0, time.UTC)},
		{"2026-02-27T10:30:00+02:00", time.Date(2026, 2, 27, 8, 30, 0, 0, time.UTC)},
		{"2026-02-27T08:30:00", time.Date(2026, 2, 27, 8, 30, 0, 0, time.UTC)},
		{"2026-02-27", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)},
		{"1772181000", time.Unix(1772181000, 0).UTC()},
		{"1772181000000", time.UnixMilli(1772181000000).UTC()},
		{"yesterday", fixedNow},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := n.Normalize(model.RawJob{PostedAt: tt.raw}).PostedAt
			if !got.Equal(tt.want) {
				t.Errorf("posted_at(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	n := newTestNormalizer()
	jobs := n.NormalizeAll([]model.RawJob{{Title: "A"}, {Title: "B"}, {Title: "C"}})
	if len(jobs) != 3 || jobs[0].Title != "A" || jobs[2].Title != "C" {
		t.Errorf("unexpected result: %+v", jobs)
	}
}
