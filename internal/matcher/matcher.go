package matcher

import (
	"strings"

	"github.com/duesjobs/duesjobs/internal/model"
)

// PreferenceMatcher evaluates one user's profile against candidate jobs.
// All comparisons are case-insensitive substring checks. Empty preference
// lists are treated as "match all".
type PreferenceMatcher struct {
	keywords   []string
	locations  []string
	remoteOnly bool
	sources    map[string]struct{}
}

// New lowercases the profile's lists once so Matches stays allocation-light.
func New(p model.UserPreferences) *PreferenceMatcher {
	m := &PreferenceMatcher{
		keywords:   lowerAll(p.Keywords),
		locations:  lowerAll(p.Locations),
		remoteOnly: p.RemoteOnly,
	}
	if len(p.Sources) > 0 {
		m.sources = make(map[string]struct{}, len(p.Sources))
		for _, s := range p.Sources {
			m.sources[s] = struct{}{}
		}
	}
	return m
}

// Match returns the jobs satisfying every active filter, in input order.
func Match(p model.UserPreferences, jobs []model.Job) []model.Job {
	m := New(p)
	var matched []model.Job
	for _, j := range jobs {
		if m.Matches(j) {
			matched = append(matched, j)
		}
	}
	return matched
}

// Matches applies source, remote, location, then keyword filters and stops at
// the first one that fails.
func (m *PreferenceMatcher) Matches(job model.Job) bool {
	if m.sources != nil {
		if _, ok := m.sources[job.Source]; !ok {
			return false
		}
	}

	if m.remoteOnly && !job.IsRemote {
		return false
	}

	// Remote postings pass a city filter: users narrowing by location still
	// want to see remote roles.
	if !m.remoteOnly && len(m.locations) > 0 && !job.IsRemote {
		if !containsAny(strings.ToLower(job.LocationText()), m.locations) {
			return false
		}
	}

	if len(m.keywords) > 0 {
		text := strings.ToLower(job.Title + " " + job.Description)
		if !containsAny(text, m.keywords) {
			return false
		}
	}

	return true
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
