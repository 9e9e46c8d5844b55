package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/duesjobs/duesjobs/internal/model"
)

// MemoryStore is an in-process model.Store used for dry runs and tests.
// Nothing survives the process, so every run sees every job as new.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	jobs      []model.Job
	byHash    map[string]int // canonical_hash -> index into jobs
	matches   []model.UserJobMatch
	matchKeys map[matchKey]int // (user, job) -> index into matches
	prefs     map[string]model.UserPreferences
	logs      []model.FetchLog
}

type matchKey struct {
	userID string
	jobID  int64
}

var _ model.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		byHash:    make(map[string]int),
		matchKeys: make(map[matchKey]int),
		prefs:     make(map[string]model.UserPreferences),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) UpsertJobs(ctx context.Context, jobs []model.Job) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, j := range jobs {
		if _, ok := s.byHash[j.CanonicalHash]; ok {
			continue
		}
		j.ID = int64(len(s.jobs) + 1)
		j.CreatedAt = s.now().UTC()
		s.byHash[j.CanonicalHash] = len(s.jobs)
		s.jobs = append(s.jobs, j)
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) FindJobsByHashes(ctx context.Context, hashes []string) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Job
	for _, h := range dedupe(hashes) {
		if i, ok := s.byHash[h]; ok {
			out = append(out, s.jobs[i])
		}
	}
	sortJobsByID(out)
	return out, nil
}

func (s *MemoryStore) FindJobsPostedSince(ctx context.Context, cutoff time.Time) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Job
	for _, j := range s.jobs {
		if !j.PostedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertMatches(ctx context.Context, userID string, jobIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written []int64
	now := s.now().UTC()
	for _, id := range jobIDs {
		k := matchKey{userID, id}
		if _, ok := s.matchKeys[k]; ok {
			continue
		}
		s.matchKeys[k] = len(s.matches)
		s.matches = append(s.matches, model.UserJobMatch{
			ID:        int64(len(s.matches) + 1),
			UserID:    userID,
			JobID:     id,
			Status:    model.StatusNew,
			CreatedAt: now,
			UpdatedAt: now,
		})
		written = append(written, id)
	}
	return written, nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, userID string, q model.MatchQuery) ([]model.MatchedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []model.MatchedJob
	for _, m := range s.matches {
		if m.UserID != userID {
			continue
		}
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if !q.Since.IsZero() && m.CreatedAt.Before(q.Since) {
			continue
		}
		if m.JobID < 1 || int(m.JobID) > len(s.jobs) {
			continue
		}
		job := s.jobs[m.JobID-1]
		if q.Source != "" && job.Source != q.Source {
			continue
		}
		all = append(all, model.MatchedJob{
			UserJobID: m.ID,
			Status:    m.Status,
			Notes:     m.Notes,
			MatchedAt: m.CreatedAt,
			Job:       job,
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].MatchedAt.Equal(all[j].MatchedAt) {
			return all[i].MatchedAt.After(all[j].MatchedAt)
		}
		if !all[i].PostedAt.Equal(all[j].PostedAt) {
			return all[i].PostedAt.After(all[j].PostedAt)
		}
		return all[i].UserJobID > all[j].UserJobID
	})

	limit, offset := pageBounds(q)
	if offset >= len(all) {
		return []model.MatchedJob{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (s *MemoryStore) UpdateMatchStatus(ctx context.Context, userID string, jobID int64, status model.MatchStatus, notes *string) (*model.UserJobMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.matchKeys[matchKey{userID, jobID}]
	if !ok {
		return nil, model.ErrNotFound
	}
	m := &s.matches[i]
	m.Status = status
	if notes != nil {
		n := *notes
		m.Notes = &n
	}
	m.UpdatedAt = s.now().UTC()
	out := *m
	return &out, nil
}

func (s *MemoryStore) ListPreferences(ctx context.Context) ([]model.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.UserPreferences, 0, len(s.prefs))
	for _, p := range s.prefs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) PutPreferences(ctx context.Context, p model.UserPreferences) (*model.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Keywords = append([]string{}, p.Keywords...)
	p.Locations = append([]string{}, p.Locations...)
	p.Sources = append([]string{}, p.Sources...)
	p.UpdatedAt = s.now().UTC()
	s.prefs[p.UserID] = p
	return &p, nil
}

func (s *MemoryStore) SetTelegramChat(ctx context.Context, userID string, chatID *string) (*model.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	p.TelegramChatID = chatID
	p.TelegramEnabled = chatID != nil
	p.UpdatedAt = s.now().UTC()
	s.prefs[userID] = p
	return &p, nil
}

func (s *MemoryStore) WriteFetchLog(ctx context.Context, l model.FetchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, l)
	return nil
}

func (s *MemoryStore) ListFetchLogs(ctx context.Context, limit int) ([]model.FetchLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultPageLimit
	}
	out := make([]model.FetchLog, 0, min(limit, len(s.logs)))
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.logs[i])
	}
	return out, nil
}
