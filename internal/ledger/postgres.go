package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the ledger. pgxmock's pool
// satisfies it, which keeps the Postgres ledger unit-testable without a
// database.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresLedger implements Ledger using pgxpool.
type PostgresLedger struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresLedger, error) {
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresLedger{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	stage      TEXT NOT NULL DEFAULT 'cold',
	score      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	prospect_id  TEXT NOT NULL REFERENCES prospects(id),
	number       INTEGER NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	results      JSONB NOT NULL,
	UNIQUE(prospect_id, number)
);

CREATE TABLE IF NOT EXISTS attempt_claims (
	prospect_id TEXT PRIMARY KEY,
	claimed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_attempts_prospect ON attempts(prospect_id, number);
CREATE INDEX IF NOT EXISTS idx_prospects_stage ON prospects(stage);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (l *PostgresLedger) Ping(ctx context.Context) error {
	return eris.Wrap(l.pool.Ping(ctx), "postgres: ping")
}

func (l *PostgresLedger) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}

func (l *PostgresLedger) BeginAttempt(ctx context.Context, prospectID string) (int, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO attempt_claims (prospect_id, claimed_at) VALUES ($1, $2)
		 ON CONFLICT (prospect_id) DO NOTHING`,
		prospectID, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: claim attempt")
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrAttemptInFlight
	}

	var next int
	err = l.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM attempts WHERE prospect_id = $1`,
		prospectID,
	).Scan(&next)
	if err != nil {
		_, _ = l.pool.Exec(ctx, `DELETE FROM attempt_claims WHERE prospect_id = $1`, prospectID)
		return 0, eris.Wrap(err, "postgres: next attempt number")
	}
	return next, nil
}

func (l *PostgresLedger) Append(ctx context.Context, prospectID string, attempt *model.Attempt) error {
	resultsJSON, err := json.Marshal(attempt.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	// The insert and the claim release must land together: an attempt row
	// without its claim removed blocks every later attempt for the prospect.
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO attempts (id, prospect_id, number, started_at, completed_at, results)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.ID, prospectID, attempt.Number,
		attempt.StartedAt.UTC(), attempt.CompletedAt.UTC(), resultsJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert attempt %d", attempt.Number)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM attempt_claims WHERE prospect_id = $1`, prospectID); err != nil {
		return eris.Wrap(err, "postgres: release claim")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit append")
}

func (l *PostgresLedger) ReleaseAttempt(ctx context.Context, prospectID string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM attempt_claims WHERE prospect_id = $1`, prospectID)
	return eris.Wrap(err, "postgres: release claim")
}

func (l *PostgresLedger) LatestAttempt(ctx context.Context, prospectID string) (*model.Attempt, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, prospect_id, number, started_at, completed_at, results
		 FROM attempts WHERE prospect_id = $1 ORDER BY number DESC LIMIT 1`,
		prospectID,
	)
	a, err := scanAttemptPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest attempt")
	}
	return a, nil
}

func (l *PostgresLedger) ListAttempts(ctx context.Context, prospectID string) ([]model.Attempt, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, prospect_id, number, started_at, completed_at, results
		 FROM attempts WHERE prospect_id = $1 ORDER BY number ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttemptPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: iterate attempts")
}

func (l *PostgresLedger) AllSucceededOutputs(ctx context.Context, prospectID string) (map[string]any, error) {
	attempts, err := l.ListAttempts(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	for _, a := range attempts {
		for k, v := range a.SucceededOutputs() {
			merged[k] = v
		}
	}
	return merged, nil
}

func (l *PostgresLedger) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	var data []byte
	err := l.pool.QueryRow(ctx,
		`SELECT data FROM prospects WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProspectNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prospect %s", id)
	}
	var p model.Prospect
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal prospect")
	}
	return &p, nil
}

func (l *PostgresLedger) SaveProspect(ctx context.Context, p *model.Prospect) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prospect")
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO prospects (id, data, stage, score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, stage = EXCLUDED.stage,
		   score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`,
		p.ID, data, string(p.PipelineStage), p.QualificationScore, p.CreatedAt.UTC(), now,
	)
	return eris.Wrapf(err, "postgres: save prospect %s", p.ID)
}

func (l *PostgresLedger) DeleteStaleClaims(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM attempt_claims WHERE claimed_at <= $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale claims")
	}
	return int(tag.RowsAffected()), nil
}

func scanAttemptPG(row pgx.Row) (*model.Attempt, error) {
	var a model.Attempt
	var resultsJSON []byte
	if err := row.Scan(&a.ID, &a.ProspectID, &a.Number, &a.StartedAt, &a.CompletedAt, &resultsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resultsJSON, &a.Results); err != nil {
		return nil, eris.Wrap(err, "unmarshal results")
	}
	return &a, nil
}
