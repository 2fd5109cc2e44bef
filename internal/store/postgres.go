package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/quicklearn/quicklearn/internal/db"
	"github.com/quicklearn/quicklearn/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot read path.
var preparedStatements = map[string]string{
	"get_explanation": `SELECT id, topic, content, source_model, verified, uses, created_at, updated_at, last_used FROM explanations WHERE topic = $1`,
	"increment_usage": `UPDATE explanations SET uses = uses + 1, last_used = $1 WHERE topic = $2`,
	"get_job":         `SELECT id, topic, status, worker_log, created_at, processed_at FROM verification_jobs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS explanations (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	topic        TEXT NOT NULL UNIQUE,
	content      JSONB NOT NULL,
	source_model TEXT NOT NULL DEFAULT '',
	verified     BOOLEAN NOT NULL DEFAULT false,
	uses         BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_explanations_topic ON explanations(topic);
CREATE INDEX IF NOT EXISTS idx_explanations_uses ON explanations(uses DESC);
CREATE INDEX IF NOT EXISTS idx_explanations_verified ON explanations(verified);

CREATE TABLE IF NOT EXISTS verification_jobs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	topic        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	worker_log   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_verification_jobs_topic ON verification_jobs(topic);
CREATE INDEX IF NOT EXISTS idx_verification_jobs_status ON verification_jobs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetExplanationByTopic(ctx context.Context, topic string) (*model.Explanation, error) {
	var e model.Explanation
	var contentJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, topic, content, source_model, verified, uses, created_at, updated_at, last_used FROM explanations WHERE topic = $1`,
		topic,
	).Scan(&e.ID, &e.Topic, &contentJSON, &e.SourceModel, &e.Verified, &e.Uses, &e.CreatedAt, &e.UpdatedAt, &e.LastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get explanation %s", topic)
	}

	if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal content")
	}
	return &e, nil
}

// UpsertExplanation inserts or replaces the explanation for a topic in a
// single statement. A conflicting write refreshes the content and bumps
// the usage counter; two racing writers both land, last content wins.
func (s *PostgresStore) UpsertExplanation(ctx context.Context, exp *model.Explanation) (*model.Explanation, error) {
	contentJSON, err := json.Marshal(exp.Content)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal content")
	}

	id := exp.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	var out model.Explanation
	var outContent []byte
	err = s.pool.QueryRow(ctx,
		`INSERT INTO explanations (id, topic, content, source_model, verified, uses, created_at, updated_at, last_used)
		 VALUES ($1, $2, $3, $4, $5, 1, $6, $6, $6)
		 ON CONFLICT (topic) DO UPDATE SET
			content = EXCLUDED.content,
			source_model = EXCLUDED.source_model,
			verified = EXCLUDED.verified,
			uses = explanations.uses + 1,
			updated_at = EXCLUDED.updated_at,
			last_used = EXCLUDED.last_used
		 RETURNING id, topic, content, source_model, verified, uses, created_at, updated_at, last_used`,
		id, exp.Topic, contentJSON, exp.SourceModel, exp.Verified, now,
	).Scan(&out.ID, &out.Topic, &outContent, &out.SourceModel, &out.Verified, &out.Uses, &out.CreatedAt, &out.UpdatedAt, &out.LastUsed)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert explanation %s", exp.Topic)
	}

	if err := json.Unmarshal(outContent, &out.Content); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal upserted content")
	}
	return &out, nil
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, topic string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE explanations SET uses = uses + 1, last_used = $1 WHERE topic = $2`,
		time.Now().UTC(), topic,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment usage %s", topic)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("explanation not found: %s", topic)
	}
	return nil
}

// SetVerified promotes a topic's stored content to its verified form.
func (s *PostgresStore) SetVerified(ctx context.Context, topic string, content model.ExplanationContent, sourceModel string) error {
	content.Verified = true
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verified content")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE explanations SET content = $1, source_model = $2, verified = true, updated_at = $3 WHERE topic = $4`,
		contentJSON, sourceModel, time.Now().UTC(), topic,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set verified %s", topic)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("explanation not found: %s", topic)
	}
	return nil
}

func (s *PostgresStore) TopExplanations(ctx context.Context, limit int) ([]model.Explanation, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, topic, content, source_model, verified, uses, created_at, updated_at, last_used FROM explanations
		 ORDER BY uses DESC, last_used DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top explanations")
	}
	defer rows.Close()

	var out []model.Explanation
	for rows.Next() {
		var e model.Explanation
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Topic, &contentJSON, &e.SourceModel, &e.Verified, &e.Uses, &e.CreatedAt, &e.UpdatedAt, &e.LastUsed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan explanation")
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal content")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top explanations iterate")
}

func (s *PostgresStore) CreateVerificationJob(ctx context.Context, topic string) (*model.VerificationJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO verification_jobs (id, topic, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, topic, string(model.JobStatusQueued), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert job for %s", topic)
	}

	return &model.VerificationJob{
		ID:        id,
		Topic:     topic,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetVerificationJob(ctx context.Context, jobID string) (*model.VerificationJob, error) {
	var j model.VerificationJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, topic, status, worker_log, created_at, processed_at FROM verification_jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &j.Topic, &j.Status, &j.WorkerLog, &j.CreatedAt, &j.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return &j, nil
}

// UpdateJobStatus advances a job's state. Terminal states stamp
// processed_at.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, workerLog string) error {
	var processedAt *time.Time
	if status == model.JobStatusCompleted || status == model.JobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE verification_jobs SET status = $1, worker_log = $2, processed_at = $3 WHERE id = $4`,
		string(status), workerLog, processedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}
