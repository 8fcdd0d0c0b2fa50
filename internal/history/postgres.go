// Package history persists finished upload and reindex sessions. The
// Postgres store is used when a database is configured; the memory store
// keeps recent sessions for the lifetime of the process otherwise.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS upload_history (
	session_id   TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	job_id       TEXT NOT NULL DEFAULT '',
	file_name    TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	table_id     TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	ip_address   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS upload_history_finished_at_idx ON upload_history (finished_at DESC);
`

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps history in the upload_history table.
type PostgresStore struct {
	db DB
}

var _ core.HistoryStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store over db. Call Migrate before first use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the history table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate upload_history: %w", err)
	}
	return nil
}

// Record inserts an entry, replacing any earlier entry for the session.
func (s *PostgresStore) Record(ctx context.Context, e core.HistoryEntry) error {
	const query = `
		INSERT INTO upload_history (
			session_id, kind, job_id, file_name, display_name, table_id,
			state, message, ip_address, user_agent, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			table_id = EXCLUDED.table_id,
			state = EXCLUDED.state,
			message = EXCLUDED.message,
			finished_at = EXCLUDED.finished_at`

	_, err := s.db.Exec(ctx, query,
		e.SessionID, e.Kind, e.JobID, e.FileName, e.DisplayName, e.TableID,
		e.State, e.Message, e.IPAddress, e.UserAgent, e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record history %s: %w", e.SessionID, err)
	}
	return nil
}

// List returns up to limit entries, most recently finished first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `
		SELECT session_id, kind, job_id, file_name, display_name, table_id,
			state, message, ip_address, user_agent, started_at, finished_at
		FROM upload_history
		ORDER BY finished_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]core.HistoryEntry, 0)
	for rows.Next() {
		var e core.HistoryEntry
		if err := rows.Scan(
			&e.SessionID, &e.Kind, &e.JobID, &e.FileName, &e.DisplayName, &e.TableID,
			&e.State, &e.Message, &e.IPAddress, &e.UserAgent, &e.StartedAt, &e.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Purge deletes entries that finished before the cutoff.
func (s *PostgresStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM upload_history WHERE finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return tag.RowsAffected(), nil
}
