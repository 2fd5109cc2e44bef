package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/quicklearn/quicklearn/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS explanations (
	id           TEXT PRIMARY KEY,
	topic        TEXT NOT NULL UNIQUE,
	content      TEXT NOT NULL,
	source_model TEXT NOT NULL DEFAULT '',
	verified     INTEGER NOT NULL DEFAULT 0,
	uses         INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	last_used    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_explanations_uses ON explanations(uses DESC);
CREATE INDEX IF NOT EXISTS idx_explanations_verified ON explanations(verified);

CREATE TABLE IF NOT EXISTS verification_jobs (
	id           TEXT PRIMARY KEY,
	topic        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	worker_log   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	processed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_verification_jobs_topic ON verification_jobs(topic);
CREATE INDEX IF NOT EXISTS idx_verification_jobs_status ON verification_jobs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetExplanationByTopic(ctx context.Context, topic string) (*model.Explanation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, content, source_model, verified, uses, created_at, updated_at, last_used FROM explanations WHERE topic = ?`,
		topic,
	)
	e, err := scanExplanationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get explanation %s", topic)
	}
	return e, nil
}

// UpsertExplanation mirrors the Postgres upsert. SQLite supports the same
// ON CONFLICT clause but not RETURNING across driver versions, so the row
// is read back after the write.
func (s *SQLiteStore) UpsertExplanation(ctx context.Context, exp *model.Explanation) (*model.Explanation, error) {
	contentJSON, err := json.Marshal(exp.Content)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal content")
	}

	id := exp.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO explanations (id, topic, content, source_model, verified, uses, created_at, updated_at, last_used)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
		 ON CONFLICT (topic) DO UPDATE SET
			content = excluded.content,
			source_model = excluded.source_model,
			verified = excluded.verified,
			uses = explanations.uses + 1,
			updated_at = excluded.updated_at,
			last_used = excluded.last_used`,
		id, exp.Topic, string(contentJSON), exp.SourceModel, exp.Verified, now, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert explanation %s", exp.Topic)
	}

	return s.GetExplanationByTopic(ctx, exp.Topic)
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, topic string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE explanations SET uses = uses + 1, last_used = ? WHERE topic = ?`,
		time.Now().UTC(), topic,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment usage %s", topic)
	}
	return checkRowsAffected(res, "explanation", topic)
}

func (s *SQLiteStore) SetVerified(ctx context.Context, topic string, content model.ExplanationContent, sourceModel string) error {
	content.Verified = true
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verified content")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE explanations SET content = ?, source_model = ?, verified = 1, updated_at = ? WHERE topic = ?`,
		string(contentJSON), sourceModel, time.Now().UTC(), topic,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set verified %s", topic)
	}
	return checkRowsAffected(res, "explanation", topic)
}

func (s *SQLiteStore) TopExplanations(ctx context.Context, limit int) ([]model.Explanation, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, source_model, verified, uses, created_at, updated_at, last_used FROM explanations
		 ORDER BY uses DESC, last_used DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top explanations")
	}
	defer rows.Close()

	var out []model.Explanation
	for rows.Next() {
		e, err := scanExplanationRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan explanation")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top explanations iterate")
}

func (s *SQLiteStore) CreateVerificationJob(ctx context.Context, topic string) (*model.VerificationJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_jobs (id, topic, status, created_at) VALUES (?, ?, ?, ?)`,
		id, topic, string(model.JobStatusQueued), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert job for %s", topic)
	}

	return &model.VerificationJob{
		ID:        id,
		Topic:     topic,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetVerificationJob(ctx context.Context, jobID string) (*model.VerificationJob, error) {
	var j model.VerificationJob
	var processedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, worker_log, created_at, processed_at FROM verification_jobs WHERE id = ?`,
		jobID,
	).Scan(&j.ID, &j.Topic, &j.Status, &j.WorkerLog, &j.CreatedAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	if processedAt.Valid {
		j.ProcessedAt = &processedAt.Time
	}
	return &j, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, workerLog string) error {
	var processedAt any
	if status == model.JobStatusCompleted || status == model.JobStatusFailed {
		processedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_jobs SET status = ?, worker_log = ?, processed_at = ? WHERE id = ?`,
		string(status), workerLog, processedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExplanationRow(row rowScanner) (*model.Explanation, error) {
	var e model.Explanation
	var contentJSON string
	if err := row.Scan(&e.ID, &e.Topic, &contentJSON, &e.SourceModel, &e.Verified, &e.Uses, &e.CreatedAt, &e.UpdatedAt, &e.LastUsed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
		return nil, eris.Wrap(err, "unmarshal content")
	}
	return &e, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
