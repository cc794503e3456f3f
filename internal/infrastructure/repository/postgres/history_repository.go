package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/book-qa/internal/core/domain"
)

// HistoryRepository persists the question history of one session. Every
// session gets its own rows so a reset only clears the caller's history.
type HistoryRepository struct {
	db        *sql.DB
	sessionID string
}

func NewHistoryRepository(db *sql.DB, sessionID string) *HistoryRepository {
	if sessionID == "" {
		sessionID = "default"
	}
	return &HistoryRepository{db: db, sessionID: sessionID}
}

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS query_history (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	matched BOOLEAN NOT NULL DEFAULT FALSE,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_history_session ON query_history(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, record domain.QueryRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	sources := record.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_history (id, session_id, question, answer, matched, sources, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, uuid.NewString(), r.sessionID, record.Question, record.Answer, record.Matched, sourcesJSON, record.Timestamp)
	if err != nil {
		return fmt.Errorf("append query record: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]domain.QueryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, answer, matched, sources, created_at
FROM query_history
WHERE session_id = $1
ORDER BY created_at ASC
`, r.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list query history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueryRecord, 0)
	for rows.Next() {
		var (
			rec        domain.QueryRecord
			sourcesRaw []byte
		)
		if err := rows.Scan(&rec.Question, &rec.Answer, &rec.Matched, &sourcesRaw, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		if len(sourcesRaw) > 0 {
			if err := json.Unmarshal(sourcesRaw, &rec.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query history: %w", err)
	}
	return out, nil
}

func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM query_history WHERE session_id = $1`, r.sessionID); err != nil {
		return fmt.Errorf("clear query history: %w", err)
	}
	return nil
}
