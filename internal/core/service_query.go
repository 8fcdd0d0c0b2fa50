package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListTables returns table metadata in backend order.
func (s *Service) ListTables(ctx context.Context) ([]Table, error) {
	return s.backend.ListTables(ctx)
}

// FetchSlice returns rows [rowFrom, rowTo) of a table, optionally limited
// to columns.
func (s *Service) FetchSlice(ctx context.Context, tableID string, rowFrom, rowTo int, columns ...string) (*Slice, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, errorf(KindInvalid, "fetch slice", "missing table id")
	}
	return s.backend.FetchSlice(ctx, tableID, rowFrom, rowTo, columns...)
}

// Preview returns the default preview window of a table.
func (s *Service) Preview(ctx context.Context, tableID string) (*Slice, error) {
	return s.FetchSlice(ctx, tableID, 0, s.orchestrator.Config().PreviewRows)
}

// Project maps a citation onto a fetched window.
func (s *Service) Project(ctx context.Context, c Citation) (*Projection, error) {
	return s.projector.Project(ctx, c)
}

// ProjectHighlight resolves a highlight id and projects its citation.
func (s *Service) ProjectHighlight(ctx context.Context, highlightID string) (*Projection, error) {
	if strings.TrimSpace(highlightID) == "" {
		return nil, errorf(KindInvalid, "project highlight", "missing highlight id")
	}
	c, err := s.backend.GetCitation(ctx, highlightID)
	if err != nil {
		return nil, fmt.Errorf("load highlight %s: %w", highlightID, err)
	}
	return s.projector.Project(ctx, *c)
}

// RenameTable changes a table's display name.
func (s *Service) RenameTable(ctx context.Context, tableID, name string) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errorf(KindInvalid, "rename table", "Name cannot be empty")
	}
	table, err := s.backend.RenameTable(ctx, tableID, name)
	if err != nil {
		return nil, err
	}
	s.recordMutation(ctx, HistoryRename, tableID, name)
	return table, nil
}

// DeleteTable removes a table and everything derived from it.
func (s *Service) DeleteTable(ctx context.Context, tableID string) error {
	if strings.TrimSpace(tableID) == "" {
		return errorf(KindInvalid, "delete table", "missing table id")
	}
	if err := s.backend.DeleteTable(ctx, tableID); err != nil {
		return err
	}
	s.recordMutation(ctx, HistoryDelete, tableID, "")
	return nil
}

// recordMutation adds a successful rename or delete to history so the
// dashboard shows who changed which table.
func (s *Service) recordMutation(ctx context.Context, kind, tableID, name string) {
	if s.history == nil {
		return
	}
	now := time.Now()
	entry := HistoryEntry{
		SessionID:   uuid.New().String(),
		Kind:        kind,
		TableID:     tableID,
		DisplayName: name,
		State:       PollSucceeded.String(),
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
		StartedAt:   now,
		FinishedAt:  now,
	}
	if err := s.history.Record(ctx, entry); err != nil {
		slog.Warn("record table change failed", "kind", kind, "table_id", tableID, "error", err)
	}
}
