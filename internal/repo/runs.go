// Package repo stores the agent run audit log in PostgreSQL.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is the metadata of one agent run. The message text and the reply are
// never stored.
type Run struct {
	ID           string        `json:"id"`
	Category     string        `json:"category"`
	SourceLang   string        `json:"source_lang"`
	TargetLang   string        `json:"target_lang"`
	FromDate     string        `json:"from"`
	ToDate       string        `json:"to"`
	ArticleCount int           `json:"article_count"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id            UUID PRIMARY KEY,
	category      TEXT NOT NULL,
	source_lang   TEXT NOT NULL DEFAULT '',
	target_lang   TEXT NOT NULL DEFAULT '',
	from_date     TEXT NOT NULL DEFAULT '',
	to_date       TEXT NOT NULL DEFAULT '',
	article_count INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS agent_runs_created_at_idx ON agent_runs (created_at DESC);`

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the agent_runs table when it does not exist yet.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

func (r *RunRepository) RecordRun(ctx context.Context, run Run) error {
	const query = `
INSERT INTO agent_runs
	(id, category, source_lang, target_lang, from_date, to_date, article_count, status, error, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Category, run.SourceLang, run.TargetLang, run.FromDate, run.ToDate,
		run.ArticleCount, run.Status, run.Error, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("RecordRun: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	const query = `
SELECT id, category, source_lang, target_lang, from_date, to_date, article_count, status, error, duration_ms, created_at
FROM agent_runs
ORDER BY created_at DESC
LIMIT $1`

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentRuns: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run        Run
			durationMS int64
		)
		if err := rows.Scan(
			&run.ID, &run.Category, &run.SourceLang, &run.TargetLang, &run.FromDate, &run.ToDate,
			&run.ArticleCount, &run.Status, &run.Error, &durationMS, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("RecentRuns: scan: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentRuns: %w", err)
	}
	return runs, nil
}

// PruneRuns deletes runs created before cutoff and reports how many were removed.
func (r *RunRepository) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM agent_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("PruneRuns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PruneRuns: %w", err)
	}
	return n, nil
}
