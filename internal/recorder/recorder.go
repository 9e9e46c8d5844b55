// Package recorder persists (user, job) matches and reports which of them
// were written for the first time.
package recorder

import (
	"context"
	"fmt"

	"github.com/duesjobs/duesjobs/internal/model"
)

// Recorder writes matches through a model.MatchStore.
type Recorder struct {
	store model.MatchStore
}

// New returns a Recorder backed by store.
func New(store model.MatchStore) *Recorder {
	return &Recorder{store: store}
}

// RecordMatches inserts a status=new match for every job and returns only the
// jobs whose row was written by this call, in input order. Jobs already in
// the user's history are dropped so they are never notified twice.
//
// The result is computed by presence in the ids the store reports as written,
// never by comparing counts.
func (r *Recorder) RecordMatches(ctx context.Context, userID string, jobs []model.Job) ([]model.Job, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(jobs))
	seen := make(map[int64]struct{}, len(jobs))
	for _, j := range jobs {
		if j.ID == 0 {
			return nil, fmt.Errorf("recording match for %q: job has no store id", j.CanonicalHash)
		}
		if _, dup := seen[j.ID]; dup {
			continue
		}
		seen[j.ID] = struct{}{}
		ids = append(ids, j.ID)
	}

	written, err := r.store.InsertMatches(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("inserting matches: %w", err)
	}

	fresh := make(map[int64]struct{}, len(written))
	for _, id := range written {
		fresh[id] = struct{}{}
	}

	var out []model.Job
	for _, j := range jobs {
		if _, ok := fresh[j.ID]; ok {
			out = append(out, j)
			delete(fresh, j.ID)
		}
	}
	return out, nil
}
