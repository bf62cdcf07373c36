package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	stage      TEXT NOT NULL DEFAULT 'cold',
	score      INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	prospect_id  TEXT NOT NULL REFERENCES prospects(id),
	number       INTEGER NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME NOT NULL,
	results      TEXT NOT NULL,
	UNIQUE(prospect_id, number)
);

CREATE TABLE IF NOT EXISTS attempt_claims (
	prospect_id TEXT PRIMARY KEY,
	claimed_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_attempts_prospect ON attempts(prospect_id, number);
CREATE INDEX IF NOT EXISTS idx_prospects_stage ON prospects(stage);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) BeginAttempt(ctx context.Context, prospectID string) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO attempt_claims (prospect_id, claimed_at) VALUES (?, ?)`,
		prospectID, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: claim attempt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: claim rows affected")
	}
	if n == 0 {
		return 0, ErrAttemptInFlight
	}

	var next int
	err = l.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM attempts WHERE prospect_id = ?`,
		prospectID,
	).Scan(&next)
	if err != nil {
		// Release the claim so a failed allocation does not wedge the prospect.
		_, _ = l.db.ExecContext(ctx, `DELETE FROM attempt_claims WHERE prospect_id = ?`, prospectID)
		return 0, eris.Wrap(err, "sqlite: next attempt number")
	}
	return next, nil
}

func (l *SQLiteLedger) Append(ctx context.Context, prospectID string, attempt *model.Attempt) error {
	resultsJSON, err := json.Marshal(attempt.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, prospect_id, number, started_at, completed_at, results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.ID, prospectID, attempt.Number,
		attempt.StartedAt.UTC(), attempt.CompletedAt.UTC(), string(resultsJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert attempt %d", attempt.Number)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM attempt_claims WHERE prospect_id = ?`, prospectID,
	); err != nil {
		return eris.Wrap(err, "sqlite: release claim")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append")
}

func (l *SQLiteLedger) ReleaseAttempt(ctx context.Context, prospectID string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM attempt_claims WHERE prospect_id = ?`, prospectID)
	return eris.Wrap(err, "sqlite: release claim")
}

func (l *SQLiteLedger) LatestAttempt(ctx context.Context, prospectID string) (*model.Attempt, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, prospect_id, number, started_at, completed_at, results
		 FROM attempts WHERE prospect_id = ? ORDER BY number DESC LIMIT 1`,
		prospectID,
	)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest attempt")
	}
	return a, nil
}

func (l *SQLiteLedger) ListAttempts(ctx context.Context, prospectID string) ([]model.Attempt, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, prospect_id, number, started_at, completed_at, results
		 FROM attempts WHERE prospect_id = ? ORDER BY number ASC`,
		prospectID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close() //nolint:errcheck

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		attempts = append(attempts, *a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: iterate attempts")
}

func (l *SQLiteLedger) AllSucceededOutputs(ctx context.Context, prospectID string) (map[string]any, error) {
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

func (l *SQLiteLedger) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	var data string
	err := l.db.QueryRowContext(ctx,
		`SELECT data FROM prospects WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrProspectNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", id)
	}
	var p model.Prospect
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal prospect")
	}
	return &p, nil
}

func (l *SQLiteLedger) SaveProspect(ctx context.Context, p *model.Prospect) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prospect")
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO prospects (id, data, stage, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, stage = excluded.stage,
		   score = excluded.score, updated_at = excluded.updated_at`,
		p.ID, string(data), string(p.PipelineStage), p.QualificationScore, p.CreatedAt.UTC(), now,
	)
	return eris.Wrapf(err, "sqlite: save prospect %s", p.ID)
}

func (l *SQLiteLedger) DeleteStaleClaims(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM attempt_claims WHERE claimed_at <= ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete stale claims")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: stale claims rows affected")
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.Attempt, error) {
	var a model.Attempt
	var resultsJSON string
	if err := row.Scan(&a.ID, &a.ProspectID, &a.Number, &a.StartedAt, &a.CompletedAt, &resultsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultsJSON), &a.Results); err != nil {
		return nil, eris.Wrap(err, "unmarshal results")
	}
	return &a, nil
}
