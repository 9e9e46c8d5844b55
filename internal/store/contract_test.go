package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duesjobs/duesjobs/internal/model"
)

// runStoreContract exercises behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) model.Store) {
	t.Run("UpsertIgnoresDuplicates", func(t *testing.T) { testUpsertIgnoresDuplicates(t, open(t)) })
	t.Run("UpsertKeepsFirstVersion", func(t *testing.T) { testUpsertKeepsFirstVersion(t, open(t)) })
	t.Run("FindJobsPostedSince", func(t *testing.T) { testFindJobsPostedSince(t, open(t)) })
	t.Run("InsertMatchesReturnsOnlyNewRows", func(t *testing.T) { testInsertMatchesReturnsOnlyNewRows(t, open(t)) })
	t.Run("ListMatchesFilters", func(t *testing.T) { testListMatchesFilters(t, open(t)) })
	t.Run("UpdateMatchStatus", func(t *testing.T) { testUpdateMatchStatus(t, open(t)) })
	t.Run("Preferences", func(t *testing.T) { testPreferences(t, open(t)) })
	t.Run("FetchLogs", func(t *testing.T) { testFetchLogs(t, open(t)) })
}

var contractNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testJob(hash, title, source string, postedAt time.Time) model.Job {
	loc := "Berlin"
	return model.Job{
		Title:         title,
		Company:       "Acme",
		Location:      &loc,
		JobType:       "Onsite",
		Source:        source,
		ApplyURL:      "https://example.com/" + hash,
		PostedAt:      postedAt,
		Description:   "Go services",
		CanonicalHash: hash,
	}
}

func seedJobs(t *testing.T, s model.Store, jobs ...model.Job) []model.Job {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpsertJobs(ctx, jobs); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	hashes := make([]string, len(jobs))
	for i, j := range jobs {
		hashes[i] = j.CanonicalHash
	}
	got, err := s.FindJobsByHashes(ctx, hashes)
	if err != nil {
		t.Fatalf("FindJobsByHashes: %v", err)
	}
	if len(got) != len(jobs) {
		t.Fatalf("reloaded %d jobs, want %d", len(got), len(jobs))
	}
	return got
}

func testUpsertIgnoresDuplicates(t *testing.T, s model.Store) {
	ctx := context.Background()
	jobs := []model.Job{
		testJob("h1", "Dev", "Remotive", contractNow),
		testJob("h2", "Ops", "Remotive", contractNow),
	}

	n, err := s.UpsertJobs(ctx, jobs)
	if err != nil {
		t.Fatalf("first UpsertJobs: %v", err)
	}
	if n != 2 {
		t.Errorf("first insert count = %d, want 2", n)
	}

	n, err = s.UpsertJobs(ctx, jobs)
	if err != nil {
		t.Fatalf("second UpsertJobs: %v", err)
	}
	if n != 0 {
		t.Errorf("second insert count = %d, want 0", n)
	}

	got, err := s.FindJobsByHashes(ctx, []string{"h1", "h2", "h1", "missing"})
	if err != nil {
		t.Fatalf("FindJobsByHashes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after duplicate upsert, got %d", len(got))
	}
	if got[0].ID == 0 || got[0].ID == got[1].ID {
		t.Errorf("expected distinct store ids, got %d and %d", got[0].ID, got[1].ID)
	}
	if got[0].Location == nil || *got[0].Location != "Berlin" {
		t.Errorf("location not persisted: %v", got[0].Location)
	}
	if !got[0].PostedAt.Equal(contractNow) {
		t.Errorf("posted_at = %v, want %v", got[0].PostedAt, contractNow)
	}
}

func testUpsertKeepsFirstVersion(t *testing.T, s model.Store) {
	ctx := context.Background()
	first := testJob("same", "Original Title", "Indeed", contractNow)
	second := testJob("same", "Changed Title", "LinkedIn", contractNow)

	if _, err := s.UpsertJobs(ctx, []model.Job{first}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	if _, err := s.UpsertJobs(ctx, []model.Job{second}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	got, err := s.FindJobsByHashes(ctx, []string{"same"})
	if err != nil {
		t.Fatalf("FindJobsByHashes: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Original Title" || got[0].Source != "Indeed" {
		t.Errorf("existing job was overwritten: %+v", got)
	}
}

func testFindJobsPostedSince(t *testing.T, s model.Store) {
	ctx := context.Background()
	seedJobs(t, s,
		testJob("old", "Old", "Remotive", contractNow.Add(-100*time.Hour)),
		testJob("edge", "Edge", "Remotive", contractNow.Add(-72*time.Hour)),
		testJob("new", "New", "Remotive", contractNow.Add(-time.Hour)),
	)

	got, err := s.FindJobsPostedSince(ctx, contractNow.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("FindJobsPostedSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs in window, got %d", len(got))
	}
	for _, j := range got {
		if j.CanonicalHash == "old" {
			t.Error("job outside window returned")
		}
	}
}

func testInsertMatchesReturnsOnlyNewRows(t *testing.T, s model.Store) {
	ctx := context.Background()
	jobs := seedJobs(t, s,
		testJob("m1", "A", "Remotive", contractNow),
		testJob("m2", "B", "Remotive", contractNow),
		testJob("m3", "C", "Remotive", contractNow),
	)
	user := uuid.NewString()

	written, err := s.InsertMatches(ctx, user, []int64{jobs[0].ID, jobs[1].ID})
	if err != nil {
		t.Fatalf("InsertMatches: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("first insert wrote %v, want 2 ids", written)
	}

	written, err = s.InsertMatches(ctx, user, []int64{jobs[0].ID, jobs[1].ID, jobs[2].ID})
	if err != nil {
		t.Fatalf("InsertMatches: %v", err)
	}
	if len(written) != 1 || written[0] != jobs[2].ID {
		t.Fatalf("second insert wrote %v, want only %d", written, jobs[2].ID)
	}

	other := uuid.NewString()
	written, err = s.InsertMatches(ctx, other, []int64{jobs[0].ID})
	if err != nil {
		t.Fatalf("InsertMatches other user: %v", err)
	}
	if len(written) != 1 {
		t.Errorf("pairs are per user; other user wrote %v", written)
	}
}

func testListMatchesFilters(t *testing.T, s model.Store) {
	ctx := context.Background()
	jobs := seedJobs(t, s,
		testJob("l1", "A", "Remotive", contractNow.Add(-3*time.Hour)),
		testJob("l2", "B", "Indeed", contractNow.Add(-2*time.Hour)),
		testJob("l3", "C", "Indeed", contractNow.Add(-time.Hour)),
	)
	user := uuid.NewString()
	ids := []int64{jobs[0].ID, jobs[1].ID, jobs[2].ID}
	if _, err := s.InsertMatches(ctx, user, ids); err != nil {
		t.Fatalf("InsertMatches: %v", err)
	}
	if _, err := s.UpdateMatchStatus(ctx, user, jobs[1].ID, model.StatusApplied, nil); err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}

	all, err := s.ListMatches(ctx, user, model.MatchQuery{})
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(all))
	}
	// Matched together, so newest posting first.
	if all[0].Title != "C" || all[2].Title != "A" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].Title, all[1].Title, all[2].Title)
	}
	if all[0].UserJobID == 0 || all[0].Status != model.StatusNew {
		t.Errorf("match fields not populated: %+v", all[0])
	}

	tests := []struct {
		name string
		q    model.MatchQuery
		want int
	}{
		{"status", model.MatchQuery{Status: model.StatusApplied}, 1},
		{"source", model.MatchQuery{Source: "Indeed"}, 2},
		{"status and source", model.MatchQuery{Status: model.StatusNew, Source: "Indeed"}, 1},
		{"since future", model.MatchQuery{Since: time.Now().Add(time.Hour)}, 0},
		{"limit", model.MatchQuery{Limit: 2}, 2},
		{"offset", model.MatchQuery{Limit: 2, Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMatches(ctx, user, tt.q)
			if err != nil {
				t.Fatalf("ListMatches: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d matches, want %d", len(got), tt.want)
			}
		})
	}

	other, err := s.ListMatches(ctx, uuid.NewString(), model.MatchQuery{})
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("matches leaked across users: %d", len(other))
	}
}

func testUpdateMatchStatus(t *testing.T, s model.Store) {
	ctx := context.Background()
	jobs := seedJobs(t, s, testJob("u1", "A", "Remotive", contractNow))
	user := uuid.NewString()
	if _, err := s.InsertMatches(ctx, user, []int64{jobs[0].ID}); err != nil {
		t.Fatalf("InsertMatches: %v", err)
	}

	notes := "phone screen booked"
	m, err := s.UpdateMatchStatus(ctx, user, jobs[0].ID, model.StatusApplied, &notes)
	if err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}
	if m.Status != model.StatusApplied || m.Notes == nil || *m.Notes != notes {
		t.Errorf("unexpected match: %+v", m)
	}

	// nil notes keeps the previous value.
	m, err = s.UpdateMatchStatus(ctx, user, jobs[0].ID, model.StatusIgnored, nil)
	if err != nil {
		t.Fatalf("UpdateMatchStatus: %v", err)
	}
	if m.Status != model.StatusIgnored || m.Notes == nil || *m.Notes != notes {
		t.Errorf("notes not preserved: %+v", m)
	}

	_, err = s.UpdateMatchStatus(ctx, user, jobs[0].ID+1000, model.StatusApplied, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown match, got %v", err)
	}
}

func testPreferences(t *testing.T, s model.Store) {
	ctx := context.Background()
	user := uuid.NewString()

	if _, err := s.GetPreferences(ctx, user); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}
	if _, err := s.SetTelegramChat(ctx, user, nil); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound linking chat without profile, got %v", err)
	}

	saved, err := s.PutPreferences(ctx, model.UserPreferences{
		UserID:       user,
		Email:        "dev@example.com",
		Keywords:     []string{"go", "rust"},
		Locations:    []string{"Berlin"},
		RemoteOnly:   true,
		EmailEnabled: true,
	})
	if err != nil {
		t.Fatalf("PutPreferences: %v", err)
	}
	if len(saved.Keywords) != 2 || saved.Sources == nil || len(saved.Sources) != 0 {
		t.Errorf("unexpected saved lists: %+v", saved)
	}
	if !saved.RemoteOnly || saved.Email != "dev@example.com" {
		t.Errorf("unexpected saved profile: %+v", saved)
	}

	// Replace, not merge.
	if _, err := s.PutPreferences(ctx, model.UserPreferences{UserID: user, Sources: []string{"Indeed"}}); err != nil {
		t.Fatalf("PutPreferences: %v", err)
	}
	got, err := s.GetPreferences(ctx, user)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(got.Keywords) != 0 || got.RemoteOnly || len(got.Sources) != 1 {
		t.Errorf("profile not replaced: %+v", got)
	}

	chat := "123456"
	linked, err := s.SetTelegramChat(ctx, user, &chat)
	if err != nil {
		t.Fatalf("SetTelegramChat: %v", err)
	}
	if !linked.TelegramEnabled || linked.TelegramChatID == nil || *linked.TelegramChatID != chat {
		t.Errorf("chat not linked: %+v", linked)
	}
	unlinked, err := s.SetTelegramChat(ctx, user, nil)
	if err != nil {
		t.Fatalf("SetTelegramChat: %v", err)
	}
	if unlinked.TelegramEnabled || unlinked.TelegramChatID != nil {
		t.Errorf("chat not unlinked: %+v", unlinked)
	}

	second := uuid.NewString()
	if _, err := s.PutPreferences(ctx, model.UserPreferences{UserID: second}); err != nil {
		t.Fatalf("PutPreferences: %v", err)
	}
	all, err := s.ListPreferences(ctx)
	if err != nil {
		t.Fatalf("ListPreferences: %v", err)
	}
	found := 0
	for _, p := range all {
		if p.UserID == user || p.UserID == second {
			found++
		}
	}
	if found != 2 {
		t.Errorf("ListPreferences found %d of 2 saved users", found)
	}
}

func testFetchLogs(t *testing.T, s model.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := s.WriteFetchLog(ctx, model.FetchLog{
			RunID:        fmt.Sprintf("run-%d", i),
			Status:       model.RunSuccess,
			JobsFetched:  10 + i,
			JobsInserted: i,
			Sources:      []string{"Remotive", "RemoteOK"},
			StartedAt:    contractNow.Add(time.Duration(i) * time.Minute),
			CompletedAt:  contractNow.Add(time.Duration(i)*time.Minute + time.Second),
		})
		if err != nil {
			t.Fatalf("WriteFetchLog: %v", err)
		}
	}
	if err := s.WriteFetchLog(ctx, model.FetchLog{
		RunID:       "run-failed",
		Status:      model.RunError,
		Details:     "store insert: disk full",
		StartedAt:   contractNow.Add(time.Hour),
		CompletedAt: contractNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("WriteFetchLog: %v", err)
	}

	logs, err := s.ListFetchLogs(ctx, 2)
	if err != nil {
		t.Fatalf("ListFetchLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].RunID != "run-failed" || logs[0].Status != model.RunError || logs[0].Details == "" {
		t.Errorf("newest log = %+v", logs[0])
	}
	if logs[1].RunID != "run-2" || logs[1].JobsFetched != 12 || len(logs[1].Sources) != 2 {
		t.Errorf("second log = %+v", logs[1])
	}
}
