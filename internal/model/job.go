package model

import (
	"context"
	"time"
)

// RawJob is a source-native posting as produced by an adapter. Any field may be
// empty; the normalizer fills defaults.
type RawJob struct {
	Title       string
	Company     string
	Location    string
	IsRemote    bool
	JobType     string // "Full-time", "Contract", ... (optional)
	Source      string // adapter name, e.g. "Remotive"
	ApplyURL    string
	SourceURL   string // fallback when ApplyURL is empty
	PostedAt    string // raw timestamp as the vendor sends it
	Description string
	Salary      string
}

// Job is the canonical, persisted posting. ID is assigned by the store.
type Job struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Company       string    `json:"company"`
	Location      *string   `json:"location"`
	IsRemote      bool      `json:"is_remote"`
	JobType       string    `json:"job_type"`
	Source        string    `json:"source"`
	ApplyURL      string    `json:"apply_url"`
	PostedAt      time.Time `json:"posted_at"`
	Description   string    `json:"description"`
	Salary        *string   `json:"salary"`
	CanonicalHash string    `json:"canonical_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// LocationText returns the location or "" when unset.
func (j Job) LocationText() string {
	if j.Location == nil {
		return ""
	}
	return *j.Location
}

// UserPreferences is one user's matching profile and channel configuration.
type UserPreferences struct {
	UserID          string    `json:"user_id"`
	Email           string    `json:"email,omitempty"`
	Keywords        []string  `json:"keywords"`
	Locations       []string  `json:"locations"`
	RemoteOnly      bool      `json:"remote_only"`
	Sources         []string  `json:"sources"`
	EmailEnabled    bool      `json:"email_enabled"`
	TelegramEnabled bool      `json:"telegram_enabled"`
	TelegramChatID  *string   `json:"telegram_chat_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MatchStatus is the user-controlled state of a recorded match.
type MatchStatus string

const (
	StatusNew     MatchStatus = "new"
	StatusApplied MatchStatus = "applied"
	StatusIgnored MatchStatus = "ignored"
)

// Valid reports whether s is one of new, applied, ignored.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusNew, StatusApplied, StatusIgnored:
		return true
	}
	return false
}

// UserJobMatch is the (user, job) join row. (UserID, JobID) is unique.
type UserJobMatch struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"user_id"`
	JobID     int64       `json:"job_id"`
	Status    MatchStatus `json:"status"`
	Notes     *string     `json:"notes"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MatchedJob is a match joined with its job, as served to the UI.
type MatchedJob struct {
	UserJobID int64       `json:"user_job_id"`
	Status    MatchStatus `json:"status"`
	Notes     *string     `json:"notes"`
	MatchedAt time.Time   `json:"matched_at"`
	Job
}

// MatchQuery filters a user's match history.
type MatchQuery struct {
	Status MatchStatus // empty = any
	Source string      // empty = any
	Since  time.Time   // zero = no lower bound on match creation
	Limit  int
	Offset int
}

// RunStatus is the terminal outcome written to the run log.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// FetchLog is the completion record every pipeline run writes.
type FetchLog struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Status       RunStatus `json:"status"`
	JobsFetched  int       `json:"jobs_fetched"`
	JobsInserted int       `json:"jobs_inserted"`
	Sources      []string  `json:"sources"`
	Details      string    `json:"details,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// JobFetcher fetches raw postings from one external source.
type JobFetcher interface {
	Name() string
	FetchJobs(ctx context.Context) ([]RawJob, error)
}

// JobStore persists canonical jobs keyed by canonical hash.
type JobStore interface {
	// UpsertJobs inserts jobs, ignoring rows whose canonical hash already
	// exists. Returns the number of rows actually written.
	UpsertJobs(ctx context.Context, jobs []Job) (int, error)
	FindJobsByHashes(ctx context.Context, hashes []string) ([]Job, error)
	FindJobsPostedSince(ctx context.Context, cutoff time.Time) ([]Job, error)
}

// MatchStore persists (user, job) matches.
type MatchStore interface {
	// InsertMatches inserts status=new rows for jobIDs, ignoring pairs that
	// already exist. Returns the job ids of the rows written by this call.
	InsertMatches(ctx context.Context, userID string, jobIDs []int64) ([]int64, error)
	ListMatches(ctx context.Context, userID string, q MatchQuery) ([]MatchedJob, error)
	UpdateMatchStatus(ctx context.Context, userID string, jobID int64, status MatchStatus, notes *string) (*UserJobMatch, error)
}

// PreferenceStore persists user preference profiles.
type PreferenceStore interface {
	ListPreferences(ctx context.Context) ([]UserPreferences, error)
	GetPreferences(ctx context.Context, userID string) (*UserPreferences, error)
	PutPreferences(ctx context.Context, p UserPreferences) (*UserPreferences, error)
	SetTelegramChat(ctx context.Context, userID string, chatID *string) (*UserPreferences, error)
}

// RunLogStore persists fetch_logs.
type RunLogStore interface {
	WriteFetchLog(ctx context.Context, l FetchLog) error
	ListFetchLogs(ctx context.Context, limit int) ([]FetchLog, error)
}

// Store is the full persistence surface used by the pipeline and the API.
type Store interface {
	JobStore
	MatchStore
	PreferenceStore
	RunLogStore
	Close() error
}

// Notifier delivers newly matched jobs for one user over one or more channels.
type Notifier interface {
	Notify(ctx context.Context, p UserPreferences, jobs []Job)
}
