package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// handleDashboard renders the upload form and the table list. A backend
// failure is shown inline so the upload form stays usable.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := DashboardData{BackendURL: s.cfg.Backend.URL}
	tables, err := s.service.ListTables(ctx)
	if err != nil {
		slog.Warn("list tables for dashboard failed", "error", err)
		msg := core.MapError(err)
		data.TablesErr = &msg
	}
	data.Tables = tables

	// History is best effort
	if history, err := s.service.History(ctx, 10); err == nil {
		data.History = history
	}

	s.renderPage(w, r, "Tables", Dashboard(data))
}

// handleTableView renders the preview grid of one table.
func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")
	rowFrom := parseIntParam(r, "from", 0)
	rowTo := parseIntParam(r, "to", rowFrom+s.cfg.Viewer.PreviewRows)

	slice, err := s.service.FetchSlice(r.Context(), tableID, rowFrom, rowTo)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.renderPage(w, r, tableID, SliceGrid(slice))
}

// handleHighlightView renders a highlighted window.
func (s *Server) handleHighlightView(w http.ResponseWriter, r *http.Request) {
	highlightID := chi.URLParam(r, "highlightID")

	proj, err := s.service.ProjectHighlight(r.Context(), highlightID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.renderPage(w, r, "Highlight "+highlightID, HighlightGrid(proj))
}

// handleListTables returns table metadata in backend order.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.service.ListTables(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if tables == nil {
		tables = []core.Table{}
	}
	writeJSON(w, tables)
}

// handleSlice proxies a slice read.
//
// Query: from, to (row range, to defaults to from+PREVIEW_ROWS) and cols
// (comma-separated column names).
func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")
	rowFrom := parseIntParam(r, "from", 0)
	rowTo := parseIntParam(r, "to", rowFrom+s.cfg.Viewer.PreviewRows)
	if rowTo <= rowFrom {
		s.badRequest(w, r, "fetch slice", "to must be greater than from")
		return
	}

	slice, err := s.service.FetchSlice(r.Context(), tableID, rowFrom, rowTo, parseColumns(r)...)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, slice)
}

// handleHighlight returns the projection of a highlight: window, cited
// cells and the fetched slice.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	highlightID := chi.URLParam(r, "highlightID")

	proj, err := s.service.ProjectHighlight(r.Context(), highlightID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, highlightResponse{
		Window:    proj.Window,
		Highlight: proj.Highlight,
		Columns:   proj.Slice.Columns,
		Rows:      proj.View(),
		Unmatched: proj.Unmatched(),
	})
}

type highlightResponse struct {
	Window    core.Window    `json:"window"`
	Highlight core.Highlight `json:"highlight"`
	Columns   []string       `json:"columns"`
	Rows      []core.ViewRow `json:"rows"`
	Unmatched []int          `json:"unmatched,omitempty"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// handleRenameTable changes a table's display name.
func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.badRequest(w, r, "rename table", "invalid request body")
		return
	}

	table, err := s.service.RenameTable(WithRequestMetadata(r.Context(), r), tableID, req.Name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	slog.Info("table renamed", "table_id", tableID, "name", table.Name)
	writeJSON(w, table)
}

// handleDeleteTable removes a table.
func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	if err := s.service.DeleteTable(WithRequestMetadata(r.Context(), r), tableID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	slog.Info("table deleted", "table_id", tableID)
	writeJSON(w, map[string]any{"ok": true, "table_id": tableID})
}

// handleReindexTable starts a reindex session and returns its id.
func (s *Server) handleReindexTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	ctx := WithRequestMetadata(r.Context(), r)
	sessionID, err := s.service.StartReindex(ctx, tableID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// renderPage renders a full page, logging render failures since headers
// are already sent.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Page(title, body).Render(r.Context(), w); err != nil {
		slog.Error("render page", "title", title, "error", err)
	}
}

// parseIntParam parses a non-negative integer query parameter with a
// default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseColumns reads the comma-separated cols parameter.
func parseColumns(r *http.Request) []string {
	raw := r.URL.Query().Get("cols")
	if raw == "" {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
