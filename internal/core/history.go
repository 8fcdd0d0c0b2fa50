package core

import (
	"context"
	"time"
)

// History kinds beyond the session kinds.
const (
	HistoryRename = "rename"
	HistoryDelete = "delete"
)

// HistoryEntry records one finished upload or reindex session, or a table
// rename or delete.
type HistoryEntry struct {
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"` // upload, reindex, rename or delete
	JobID       string    `json:"job_id,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	TableID     string    `json:"table_id,omitempty"`
	State       string    `json:"state"`
	Message     string    `json:"message,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns how long the session ran.
func (e HistoryEntry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// HistoryStore persists session outcomes.
type HistoryStore interface {
	Record(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, limit int) ([]HistoryEntry, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}
