package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/duesjobs/duesjobs/internal/model"
)

// SQLiteStore implements model.Store on an embedded SQLite database. List
// columns are stored as JSON text; timestamps as fixed-width UTC text.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ model.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// and foreign keys, and applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY under the concurrent per-user fan-out.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// --- jobs ---

type sqliteJobRow struct {
	ID            int64          `db:"id"`
	Title         string         `db:"title"`
	Company       string         `db:"company"`
	Location      sql.NullString `db:"location"`
	IsRemote      bool           `db:"is_remote"`
	JobType       string         `db:"job_type"`
	Source        string         `db:"source"`
	ApplyURL      string         `db:"apply_url"`
	PostedAt      string         `db:"posted_at"`
	Description   string         `db:"description"`
	Salary        sql.NullString `db:"salary"`
	CanonicalHash string         `db:"canonical_hash"`
	CreatedAt     string         `db:"created_at"`
}

const sqliteJobColumns = `id, title, company, location, is_remote, job_type, source,
	apply_url, posted_at, description, salary, canonical_hash, created_at`

func (r sqliteJobRow) toJob() (model.Job, error) {
	postedAt, err := parseTime(r.PostedAt)
	if err != nil {
		return model.Job{}, fmt.Errorf("parsing posted_at of job %d: %w", r.ID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return model.Job{}, fmt.Errorf("parsing created_at of job %d: %w", r.ID, err)
	}
	return model.Job{
		ID:            r.ID,
		Title:         r.Title,
		Company:       r.Company,
		Location:      nullToPtr(r.Location),
		IsRemote:      r.IsRemote,
		JobType:       r.JobType,
		Source:        r.Source,
		ApplyURL:      r.ApplyURL,
		PostedAt:      postedAt,
		Description:   r.Description,
		Salary:        nullToPtr(r.Salary),
		CanonicalHash: r.CanonicalHash,
		CreatedAt:     createdAt,
	}, nil
}

// UpsertJobs inserts jobs in one transaction, leaving rows whose
// canonical_hash already exists untouched.
func (s *SQLiteStore) UpsertJobs(ctx context.Context, jobs []model.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO jobs (
			title, company, location, is_remote, job_type, source,
			apply_url, posted_at, description, salary, canonical_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_hash) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing job insert: %w", err)
	}
	defer stmt.Close()

	createdAt := formatTime(s.now())
	inserted := 0
	for _, j := range jobs {
		res, err := stmt.ExecContext(ctx,
			j.Title, j.Company, j.Location, j.IsRemote, j.JobType, j.Source,
			j.ApplyURL, formatTime(j.PostedAt), j.Description, j.Salary, j.CanonicalHash, createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting job %s: %w", j.CanonicalHash, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reading rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing job insert: %w", err)
	}
	return inserted, nil
}

// FindJobsByHashes returns the persisted rows for hashes, ordered by id.
func (s *SQLiteStore) FindJobsByHashes(ctx context.Context, hashes []string) ([]model.Job, error) {
	var jobs []model.Job
	for _, chunk := range chunkStrings(dedupe(hashes), hashChunkSize) {
		query, args, err := sqlx.In(
			"SELECT "+sqliteJobColumns+" FROM jobs WHERE canonical_hash IN (?)", chunk)
		if err != nil {
			return nil, fmt.Errorf("building hash lookup: %w", err)
		}
		var rows []sqliteJobRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("querying jobs by hash: %w", err)
		}
		for _, r := range rows {
			j, err := r.toJob()
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
	}
	sortJobsByID(jobs)
	return jobs, nil
}

// FindJobsPostedSince returns every persisted job with posted_at >= cutoff.
func (s *SQLiteStore) FindJobsPostedSince(ctx context.Context, cutoff time.Time) ([]model.Job, error) {
	var rows []sqliteJobRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+sqliteJobColumns+" FROM jobs WHERE posted_at >= ? ORDER BY id", formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("querying jobs since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	jobs := make([]model.Job, 0, len(rows))
	for _, r := range rows {
		j, err := r.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// --- matches ---

// InsertMatches inserts status=new rows and returns the job ids that were
// actually written. Pairs that already exist produce no RETURNING row.
func (s *SQLiteStore) InsertMatches(ctx context.Context, userID string, jobIDs []int64) ([]int64, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO user_jobs (user_id, job_id, status, created_at, updated_at)
		VALUES (?, ?, 'new', ?, ?)
		ON CONFLICT(user_id, job_id) DO NOTHING
		RETURNING job_id`)
	if err != nil {
		return nil, fmt.Errorf("preparing match insert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(s.now())
	var written []int64
	for _, id := range jobIDs {
		var got int64
		err := stmt.QueryRowxContext(ctx, userID, id, now, now).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inserting match (%s, %d): %w", userID, id, err)
		}
		written = append(written, got)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing match insert: %w", err)
	}
	return written, nil
}

type sqliteMatchRow struct {
	sqliteJobRow
	UserJobID int64          `db:"user_job_id"`
	Status    string         `db:"status"`
	Notes     sql.NullString `db:"notes"`
	MatchedAt string         `db:"matched_at"`
}

// ListMatches returns a page of the user's matches joined with their jobs,
// most recently matched first.
func (s *SQLiteStore) ListMatches(ctx context.Context, userID string, q model.MatchQuery) ([]model.MatchedJob, error) {
	conditions := []string{"uj.user_id = ?"}
	args := []any{userID}
	if q.Status != "" {
		conditions = append(conditions, "uj.status = ?")
		args = append(args, string(q.Status))
	}
	if q.Source != "" {
		conditions = append(conditions, "j.source = ?")
		args = append(args, q.Source)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "uj.created_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	limit, offset := pageBounds(q)
	args = append(args, limit, offset)

	query := `
		SELECT j.id, j.title, j.company, j.location, j.is_remote, j.job_type, j.source,
		       j.apply_url, j.posted_at, j.description, j.salary, j.canonical_hash, j.created_at,
		       uj.id AS user_job_id, uj.status, uj.notes, uj.created_at AS matched_at
		FROM user_jobs uj
		JOIN jobs j ON j.id = uj.job_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY uj.created_at DESC, j.posted_at DESC, uj.id DESC
		LIMIT ? OFFSET ?`

	var rows []sqliteMatchRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing matches for %s: %w", userID, err)
	}

	out := make([]model.MatchedJob, 0, len(rows))
	for _, r := range rows {
		j, err := r.toJob()
		if err != nil {
			return nil, err
		}
		matchedAt, err := parseTime(r.MatchedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing matched_at: %w", err)
		}
		out = append(out, model.MatchedJob{
			UserJobID: r.UserJobID,
			Status:    model.MatchStatus(r.Status),
			Notes:     nullToPtr(r.Notes),
			MatchedAt: matchedAt,
			Job:       j,
		})
	}
	return out, nil
}

// UpdateMatchStatus sets status (and notes, when non-nil) on one match.
// Returns model.ErrNotFound if the user has no match for jobID.
func (s *SQLiteStore) UpdateMatchStatus(ctx context.Context, userID string, jobID int64, status model.MatchStatus, notes *string) (*model.UserJobMatch, error) {
	var r struct {
		ID        int64          `db:"id"`
		UserID    string         `db:"user_id"`
		JobID     int64          `db:"job_id"`
		Status    string         `db:"status"`
		Notes     sql.NullString `db:"notes"`
		CreatedAt string         `db:"created_at"`
		UpdatedAt string         `db:"updated_at"`
	}
	err := s.db.QueryRowxContext(ctx, `
		UPDATE user_jobs SET status = ?, notes = COALESCE(?, notes), updated_at = ?
		WHERE user_id = ? AND job_id = ?
		RETURNING id, user_id, job_id, status, notes, created_at, updated_at`,
		string(status), notes, formatTime(s.now()), userID, jobID,
	).StructScan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating match (%s, %d): %w", userID, jobID, err)
	}

	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &model.UserJobMatch{
		ID:        r.ID,
		UserID:    r.UserID,
		JobID:     r.JobID,
		Status:    model.MatchStatus(r.Status),
		Notes:     nullToPtr(r.Notes),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// --- preferences ---

type sqlitePrefRow struct {
	UserID          string         `db:"user_id"`
	Email           string         `db:"email"`
	Keywords        string         `db:"keywords"`
	Locations       string         `db:"locations"`
	RemoteOnly      bool           `db:"remote_only"`
	Sources         string         `db:"sources"`
	EmailEnabled    bool           `db:"email_enabled"`
	TelegramEnabled bool           `db:"telegram_enabled"`
	TelegramChatID  sql.NullString `db:"telegram_chat_id"`
	UpdatedAt       string         `db:"updated_at"`
}

const sqlitePrefColumns = `user_id, email, keywords, locations, remote_only, sources,
	email_enabled, telegram_enabled, telegram_chat_id, updated_at`

func (r sqlitePrefRow) toPreferences() (model.UserPreferences, error) {
	p := model.UserPreferences{
		UserID:          r.UserID,
		Email:           r.Email,
		RemoteOnly:      r.RemoteOnly,
		EmailEnabled:    r.EmailEnabled,
		TelegramEnabled: r.TelegramEnabled,
		TelegramChatID:  nullToPtr(r.TelegramChatID),
	}
	for _, col := range []struct {
		raw string
		dst *[]string
	}{
		{r.Keywords, &p.Keywords},
		{r.Locations, &p.Locations},
		{r.Sources, &p.Sources},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return model.UserPreferences{}, fmt.Errorf("decoding preferences of %s: %w", r.UserID, err)
		}
		*col.dst = nonNil(*col.dst)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return model.UserPreferences{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	p.UpdatedAt = updatedAt
	return p, nil
}

// ListPreferences returns every stored profile ordered by user id.
func (s *SQLiteStore) ListPreferences(ctx context.Context) ([]model.UserPreferences, error) {
	var rows []sqlitePrefRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+sqlitePrefColumns+" FROM user_preferences ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	out := make([]model.UserPreferences, 0, len(rows))
	for _, r := range rows {
		p, err := r.toPreferences()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetPreferences returns model.ErrNotFound when the user has no profile.
func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	var r sqlitePrefRow
	err := s.db.GetContext(ctx, &r,
		"SELECT "+sqlitePrefColumns+" FROM user_preferences WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting preferences of %s: %w", userID, err)
	}
	p, err := r.toPreferences()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPreferences replaces the user's profile.
func (s *SQLiteStore) PutPreferences(ctx context.Context, p model.UserPreferences) (*model.UserPreferences, error) {
	keywords, _ := json.Marshal(nonNil(p.Keywords))
	locations, _ := json.Marshal(nonNil(p.Locations))
	sources, _ := json.Marshal(nonNil(p.Sources))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (
			user_id, email, keywords, locations, remote_only, sources,
			email_enabled, telegram_enabled, telegram_chat_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = excluded.email,
			keywords = excluded.keywords,
			locations = excluded.locations,
			remote_only = excluded.remote_only,
			sources = excluded.sources,
			email_enabled = excluded.email_enabled,
			telegram_enabled = excluded.telegram_enabled,
			telegram_chat_id = excluded.telegram_chat_id,
			updated_at = excluded.updated_at`,
		p.UserID, p.Email, string(keywords), string(locations), p.RemoteOnly, string(sources),
		p.EmailEnabled, p.TelegramEnabled, p.TelegramChatID, formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("saving preferences of %s: %w", p.UserID, err)
	}
	return s.GetPreferences(ctx, p.UserID)
}

// SetTelegramChat links (chatID != nil) or unlinks the user's Telegram chat,
// toggling telegram_enabled to match.
func (s *SQLiteStore) SetTelegramChat(ctx context.Context, userID string, chatID *string) (*model.UserPreferences, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_preferences
		SET telegram_chat_id = ?, telegram_enabled = ?, updated_at = ?
		WHERE user_id = ?`,
		chatID, chatID != nil, formatTime(s.now()), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("setting telegram chat of %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	return s.GetPreferences(ctx, userID)
}

// --- run log ---

type sqliteFetchLogRow struct {
	ID           int64  `db:"id"`
	RunID        string `db:"run_id"`
	Status       string `db:"status"`
	JobsFetched  int    `db:"jobs_fetched"`
	JobsInserted int    `db:"jobs_inserted"`
	Sources      string `db:"sources"`
	Details      string `db:"details"`
	StartedAt    string `db:"started_at"`
	CompletedAt  string `db:"completed_at"`
}

// WriteFetchLog appends one run record.
func (s *SQLiteStore) WriteFetchLog(ctx context.Context, l model.FetchLog) error {
	sources, _ := json.Marshal(nonNil(l.Sources))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_logs (
			run_id, status, jobs_fetched, jobs_inserted, sources, details, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.RunID, string(l.Status), l.JobsFetched, l.JobsInserted, string(sources), l.Details,
		formatTime(l.StartedAt), formatTime(l.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("writing fetch log %s: %w", l.RunID, err)
	}
	return nil
}

// ListFetchLogs returns the most recent run records, newest first.
func (s *SQLiteStore) ListFetchLogs(ctx context.Context, limit int) ([]model.FetchLog, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	var rows []sqliteFetchLogRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, run_id, status, jobs_fetched, jobs_inserted, sources, details, started_at, completed_at
		FROM fetch_logs ORDER BY completed_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("listing fetch logs: %w", err)
	}

	out := make([]model.FetchLog, 0, len(rows))
	for _, r := range rows {
		l := model.FetchLog{
			ID:           r.ID,
			RunID:        r.RunID,
			Status:       model.RunStatus(r.Status),
			JobsFetched:  r.JobsFetched,
			JobsInserted: r.JobsInserted,
			Details:      r.Details,
		}
		if err := json.Unmarshal([]byte(r.Sources), &l.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources of run %s: %w", r.RunID, err)
		}
		var err error
		if l.StartedAt, err = parseTime(r.StartedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if l.CompletedAt, err = parseTime(r.CompletedAt); err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
