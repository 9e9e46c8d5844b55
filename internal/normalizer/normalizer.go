// Package normalizer maps raw source postings onto the canonical Job schema
// and computes the content hash used for deduplication.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

const (
	defaultTitle    = "Unknown Title"
	defaultCompany  = "Unknown Company"
	defaultSource   = "Unknown"
	unknownLocation = "unknown location"
	remoteLocation  = "remote"
)

// postedAtLayouts are tried in order when coercing a vendor timestamp.
var postedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// Normalizer is pure apart from its clock, which supplies posted_at when the
// source sends none.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock returns a Normalizer with a fixed clock, for deterministic runs.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize never fails: missing title/company get defaults, unparseable
// timestamps fall back to the clock.
func (n *Normalizer) Normalize(raw model.RawJob) model.Job {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = defaultTitle
	}
	company := strings.TrimSpace(raw.Company)
	if company == "" {
		company = defaultCompany
	}

	var location *string
	if loc := strings.TrimSpace(raw.Location); loc != "" {
		location = &loc
	}

	jobType := strings.TrimSpace(raw.JobType)
	if jobType == "" {
		jobType = "Onsite"
		if raw.IsRemote {
			jobType = "Remote"
		}
	}

	source := strings.TrimSpace(raw.Source)
	if source == "" {
		source = defaultSource
	}

	applyURL := strings.TrimSpace(raw.ApplyURL)
	if applyURL == "" {
		applyURL = strings.TrimSpace(raw.SourceURL)
	}

	var salary *string
	if s := strings.TrimSpace(raw.Salary); s != "" {
		salary = &s
	}

	return model.Job{
		Title:         title,
		Company:       company,
		Location:      location,
		IsRemote:      raw.IsRemote,
		JobType:       jobType,
		Source:        source,
		ApplyURL:      applyURL,
		PostedAt:      n.postedAt(raw.PostedAt),
		Description:   strings.TrimSpace(raw.Description),
		Salary:        salary,
		CanonicalHash: CanonicalHash(title, company, raw.Location, raw.IsRemote),
	}
}

// NormalizeAll maps every raw job in order.
func (n *Normalizer) NormalizeAll(raws []model.RawJob) []model.Job {
	jobs := make([]model.Job, 0, len(raws))
	for _, r := range raws {
		jobs = append(jobs, n.Normalize(r))
	}
	return jobs
}

func (n *Normalizer) postedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.now().UTC()
	}
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	// Some boards send unix seconds or milliseconds.
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
		if v > 1e12 {
			return time.UnixMilli(v).UTC()
		}
		return time.Unix(v, 0).UTC()
	}
	return n.now().UTC()
}

// CanonicalHash fingerprints title|company|location. Remote postings hash
// their location as "remote" so the same remote role listed with different
// candidate regions collapses into one job.
func CanonicalHash(title, company, location string, isRemote bool) string {
	loc := remoteLocation
	if !isRemote {
		loc = hashKey(location)
		if loc == "" {
			loc = unknownLocation
		}
	}
	t := hashKey(title)
	if t == "" {
		t = strings.ToLower(defaultTitle)
	}
	c := hashKey(company)
	if c == "" {
		c = strings.ToLower(defaultCompany)
	}
	sum := sha256.Sum256([]byte(t + "|" + c + "|" + loc))
	return hex.EncodeToString(sum[:])
}

// hashKey lowercases and collapses all whitespace runs to single spaces.
func hashKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
