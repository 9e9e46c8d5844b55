package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duesjobs/duesjobs/internal/model"
)

// PostgresStore implements model.Store on PostgreSQL via pgxpool. List
// columns use native text[] arrays.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ model.Store = (*PostgresStore)(nil)

// NewPostgresStore connects, verifies the connection and ensures the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgJobColumns = `j.id, j.title, j.company, j.location, j.is_remote, j.job_type, j.source,
	j.apply_url, j.posted_at, j.description, j.salary, j.canonical_hash, j.created_at`

func scanPgJob(row pgx.Row, extra ...any) (model.Job, error) {
	var j model.Job
	dest := append([]any{
		&j.ID, &j.Title, &j.Company, &j.Location, &j.IsRemote, &j.JobType, &j.Source,
		&j.ApplyURL, &j.PostedAt, &j.Description, &j.Salary, &j.CanonicalHash, &j.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Job{}, err
	}
	j.PostedAt = j.PostedAt.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	return j, nil
}

func collectPgJobs(rows pgx.Rows) ([]model.Job, error) {
	defer rows.Close()
	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpsertJobs batches the inserts; conflicts on canonical_hash are ignored.
func (s *PostgresStore) UpsertJobs(ctx context.Context, jobs []model.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(`
			INSERT INTO jobs (
				title, company, location, is_remote, job_type, source,
				apply_url, posted_at, description, salary, canonical_hash
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (canonical_hash) DO NOTHING`,
			j.Title, j.Company, j.Location, j.IsRemote, j.JobType, j.Source,
			j.ApplyURL, j.PostedAt.UTC(), j.Description, j.Salary, j.CanonicalHash,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for _, j := range jobs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting job %s: %w", j.CanonicalHash, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// FindJobsByHashes returns the persisted rows for hashes, ordered by id.
func (s *PostgresStore) FindJobsByHashes(ctx context.Context, hashes []string) ([]model.Job, error) {
	hashes = dedupe(hashes)
	if len(hashes) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+pgJobColumns+" FROM jobs j WHERE j.canonical_hash = ANY($1) ORDER BY j.id", hashes)
	if err != nil {
		return nil, fmt.Errorf("querying jobs by hash: %w", err)
	}
	return collectPgJobs(rows)
}

// FindJobsPostedSince returns every persisted job with posted_at >= cutoff.
func (s *PostgresStore) FindJobsPostedSince(ctx context.Context, cutoff time.Time) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+pgJobColumns+" FROM jobs j WHERE j.posted_at >= $1 ORDER BY j.id", cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying jobs since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return collectPgJobs(rows)
}

// InsertMatches inserts all pairs in one statement and returns the job ids
// of the rows actually written.
func (s *PostgresStore) InsertMatches(ctx context.Context, userID string, jobIDs []int64) ([]int64, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		INSERT INTO user_jobs (user_id, job_id, status)
		SELECT $1::uuid, unnest($2::bigint[]), 'new'
		ON CONFLICT (user_id, job_id) DO NOTHING
		RETURNING job_id`, userID, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("inserting matches for %s: %w", userID, err)
	}
	written, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("reading inserted matches for %s: %w", userID, err)
	}
	return written, nil
}

// ListMatches returns a page of the user's matches joined with their jobs,
// most recently matched first.
func (s *PostgresStore) ListMatches(ctx context.Context, userID string, q model.MatchQuery) ([]model.MatchedJob, error) {
	conditions := []string{"uj.user_id = $1"}
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.Status != "" {
		conditions = append(conditions, "uj.status = "+next(string(q.Status)))
	}
	if q.Source != "" {
		conditions = append(conditions, "j.source = "+next(q.Source))
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "uj.created_at >= "+next(q.Since.UTC()))
	}
	limit, offset := pageBounds(q)
	query := `
		SELECT ` + pgJobColumns + `, uj.id, uj.status, uj.notes, uj.created_at
		FROM user_jobs uj
		JOIN jobs j ON j.id = uj.job_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY uj.created_at DESC, j.posted_at DESC, uj.id DESC
		LIMIT ` + next(limit) + ` OFFSET ` + next(offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing matches for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make([]model.MatchedJob, 0)
	for rows.Next() {
		var (
			m      model.MatchedJob
			status string
		)
		j, err := scanPgJob(rows, &m.UserJobID, &status, &m.Notes, &m.MatchedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		m.Job = j
		m.Status = model.MatchStatus(status)
		m.MatchedAt = m.MatchedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMatchStatus sets status (and notes, when non-nil) on one match.
func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, userID string, jobID int64, status model.MatchStatus, notes *string) (*model.UserJobMatch, error) {
	var (
		m  model.UserJobMatch
		st string
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE user_jobs SET status = $1, notes = COALESCE($2, notes), updated_at = now()
		WHERE user_id = $3 AND job_id = $4
		RETURNING id, user_id::text, job_id, status, notes, created_at, updated_at`,
		string(status), notes, userID, jobID,
	).Scan(&m.ID, &m.UserID, &m.JobID, &st, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating match (%s, %d): %w", userID, jobID, err)
	}
	m.Status = model.MatchStatus(st)
	return &m, nil
}

const pgPrefColumns = `user_id::text, email, keywords, locations, remote_only, sources,
	email_enabled, telegram_enabled, telegram_chat_id, updated_at`

func scanPgPreferences(row pgx.Row) (model.UserPreferences, error) {
	var p model.UserPreferences
	err := row.Scan(&p.UserID, &p.Email, &p.Keywords, &p.Locations, &p.RemoteOnly, &p.Sources,
		&p.EmailEnabled, &p.TelegramEnabled, &p.TelegramChatID, &p.UpdatedAt)
	if err != nil {
		return model.UserPreferences{}, err
	}
	p.Keywords = nonNil(p.Keywords)
	p.Locations = nonNil(p.Locations)
	p.Sources = nonNil(p.Sources)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// ListPreferences returns every stored profile ordered by user id.
func (s *PostgresStore) ListPreferences(ctx context.Context) ([]model.UserPreferences, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+pgPrefColumns+" FROM user_preferences ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	defer rows.Close()

	out := make([]model.UserPreferences, 0)
	for rows.Next() {
		p, err := scanPgPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning preferences row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPreferences returns model.ErrNotFound when the user has no profile.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	p, err := scanPgPreferences(s.pool.QueryRow(ctx,
		"SELECT "+pgPrefColumns+" FROM user_preferences WHERE user_id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting preferences of %s: %w", userID, err)
	}
	return &p, nil
}

// PutPreferences replaces the user's profile.
func (s *PostgresStore) PutPreferences(ctx context.Context, p model.UserPreferences) (*model.UserPreferences, error) {
	out, err := scanPgPreferences(s.pool.QueryRow(ctx, `
		INSERT INTO user_preferences (
			user_id, email, keywords, locations, remote_only, sources,
			email_enabled, telegram_enabled, telegram_chat_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			keywords = EXCLUDED.keywords,
			locations = EXCLUDED.locations,
			remote_only = EXCLUDED.remote_only,
			sources = EXCLUDED.sources,
			email_enabled = EXCLUDED.email_enabled,
			telegram_enabled = EXCLUDED.telegram_enabled,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			updated_at = now()
		RETURNING `+pgPrefColumns,
		p.UserID, p.Email, nonNil(p.Keywords), nonNil(p.Locations), p.RemoteOnly, nonNil(p.Sources),
		p.EmailEnabled, p.TelegramEnabled, p.TelegramChatID,
	))
	if err != nil {
		return nil, fmt.Errorf("saving preferences of %s: %w", p.UserID, err)
	}
	return &out, nil
}

// SetTelegramChat links (chatID != nil) or unlinks the user's Telegram chat.
func (s *PostgresStore) SetTelegramChat(ctx context.Context, userID string, chatID *string) (*model.UserPreferences, error) {
	p, err := scanPgPreferences(s.pool.QueryRow(ctx, `
		UPDATE user_preferences
		SET telegram_chat_id = $1, telegram_enabled = $2, updated_at = now()
		WHERE user_id = $3
		RETURNING `+pgPrefColumns,
		chatID, chatID != nil, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("setting telegram chat of %s: %w", userID, err)
	}
	return &p, nil
}

// WriteFetchLog appends one run record.
func (s *PostgresStore) WriteFetchLog(ctx context.Context, l model.FetchLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_logs (
			run_id, status, jobs_fetched, jobs_inserted, sources, details, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.RunID, string(l.Status), l.JobsFetched, l.JobsInserted, nonNil(l.Sources), l.Details,
		l.StartedAt.UTC(), l.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing fetch log %s: %w", l.RunID, err)
	}
	return nil
}

// ListFetchLogs returns the most recent run records, newest first.
func (s *PostgresStore) ListFetchLogs(ctx context.Context, limit int) ([]model.FetchLog, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, status, jobs_fetched, jobs_inserted, sources, details, started_at, completed_at
		FROM fetch_logs ORDER BY completed_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing fetch logs: %w", err)
	}
	defer rows.Close()

	out := make([]model.FetchLog, 0)
	for rows.Next() {
		var (
			l      model.FetchLog
			status string
		)
		if err := rows.Scan(&l.ID, &l.RunID, &status, &l.JobsFetched, &l.JobsInserted,
			&l.Sources, &l.Details, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning fetch log row: %w", err)
		}
		l.Status = model.RunStatus(status)
		l.StartedAt = l.StartedAt.UTC()
		l.CompletedAt = l.CompletedAt.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}
