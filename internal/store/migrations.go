package store

// migration is one forward-only schema step for the SQLite backend.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order; each records its version on success.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	title          TEXT NOT NULL,
	company        TEXT NOT NULL,
	location       TEXT,
	is_remote      INTEGER NOT NULL DEFAULT 0,
	job_type       TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	apply_url      TEXT NOT NULL DEFAULT '',
	posted_at      TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	salary         TEXT,
	canonical_hash TEXT NOT NULL UNIQUE,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_posted_at ON jobs(posted_at);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id          TEXT PRIMARY KEY,
	keywords         TEXT NOT NULL DEFAULT '[]',
	locations        TEXT NOT NULL DEFAULT '[]',
	remote_only      INTEGER NOT NULL DEFAULT 0,
	sources          TEXT NOT NULL DEFAULT '[]',
	email_enabled    INTEGER NOT NULL DEFAULT 1,
	telegram_enabled INTEGER NOT NULL DEFAULT 0,
	telegram_chat_id TEXT,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_jobs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	job_id     INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status     TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'applied', 'ignored')),
	notes      TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (user_id, job_id)
);

CREATE INDEX IF NOT EXISTS idx_user_jobs_user ON user_jobs(user_id, created_at);

CREATE TABLE IF NOT EXISTS fetch_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	status        TEXT NOT NULL,
	jobs_fetched  INTEGER NOT NULL DEFAULT 0,
	jobs_inserted INTEGER NOT NULL DEFAULT 0,
	sources       TEXT NOT NULL DEFAULT '[]',
	details       TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	completed_at  TEXT NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE user_preferences ADD COLUMN email TEXT NOT NULL DEFAULT '';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}

// postgresSchema is applied idempotently by PostgresStore on open.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id             BIGSERIAL PRIMARY KEY,
	title          TEXT NOT NULL,
	company        TEXT NOT NULL,
	location       TEXT,
	is_remote      BOOLEAN NOT NULL DEFAULT FALSE,
	job_type       TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	apply_url      TEXT NOT NULL DEFAULT '',
	posted_at      TIMESTAMPTZ NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	salary         TEXT,
	canonical_hash TEXT NOT NULL UNIQUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_posted_at ON jobs(posted_at);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id          UUID PRIMARY KEY,
	email            TEXT NOT NULL DEFAULT '',
	keywords         TEXT[] NOT NULL DEFAULT '{}',
	locations        TEXT[] NOT NULL DEFAULT '{}',
	remote_only      BOOLEAN NOT NULL DEFAULT FALSE,
	sources          TEXT[] NOT NULL DEFAULT '{}',
	email_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
	telegram_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	telegram_chat_id TEXT,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_jobs (
	id         BIGSERIAL PRIMARY KEY,
	user_id    UUID NOT NULL,
	job_id     BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	status     TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'applied', 'ignored')),
	notes      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, job_id)
);

CREATE INDEX IF NOT EXISTS idx_user_jobs_user ON user_jobs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS fetch_logs (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT NOT NULL,
	status        TEXT NOT NULL,
	jobs_fetched  INTEGER NOT NULL DEFAULT 0,
	jobs_inserted INTEGER NOT NULL DEFAULT 0,
	sources       TEXT[] NOT NULL DEFAULT '{}',
	details       TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL
);
`
