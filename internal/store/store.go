// Package store persists jobs, matches, preference profiles and run logs.
// SQLiteStore and PostgresStore share one contract; MemoryStore backs dry
// runs and tests.
package store

import (
	"sort"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// hashChunkSize bounds IN (...) lists so lookups stay under driver
// parameter limits.
const hashChunkSize = 500

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

// timeLayout is fixed width so timestamps stored as TEXT sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}

// dedupe drops repeated and empty strings, keeping first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortJobsByID(jobs []model.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
}

// pageBounds clamps a caller-supplied limit and offset.
func pageBounds(q model.MatchQuery) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
