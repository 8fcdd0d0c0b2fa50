package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tablerag/internal/core"
)

type acceptedResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// SubmitUpload posts file as multipart field "file". An empty name lets the
// backend derive one from the file name.
func (c *Client) SubmitUpload(ctx context.Context, file *core.UploadFile, name string) (string, error) {
	const op = "submit upload"
	if file == nil {
		return "", core.NewError(core.KindInvalid, op, "no file provided", nil)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	h.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", core.NewError(core.KindInvalid, op, "build form", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", core.NewError(core.KindInvalid, op, "build form", err)
	}
	if err := mw.Close(); err != nil {
		return "", core.NewError(core.KindInvalid, op, "build form", err)
	}

	q := url.Values{}
	if name = strings.TrimSpace(name); name != "" {
		q.Set("name", name)
	}

	var resp acceptedResponse
	err = c.call(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/upload",
		query:       q,
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, &resp)
	if err != nil {
		// The backend refuses files it cannot ingest with 400.
		var e *core.Error
		if errors.As(err, &e) && e.Kind == core.KindInvalid {
			e.Kind = core.KindUploadRejected
		}
		return "", err
	}
	if strings.TrimSpace(resp.JobID) == "" {
		return "", core.NewError(core.KindUploadRejected, op, "no job id returned", nil)
	}
	return resp.JobID, nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := c.call(ctx, request{
		op:     "get job",
		method: http.MethodGet,
		path:   "/jobs/" + url.PathEscape(jobID),
	}, &job)
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

// tableRecord is the wire form of a table. created_at is an ISO timestamp
// that may lack a zone.
type tableRecord struct {
	ID               string `json:"table_id"`
	Name             string `json:"name"`
	OriginalFilename string `json:"original_filename"`
	CreatedAt        string `json:"created_at"`
	RowCount         int    `json:"row_count"`
	ColCount         int    `json:"col_count"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp reads zone-less timestamps as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (r tableRecord) table() core.Table {
	t := core.Table{
		ID:               r.ID,
		Name:             r.Name,
		OriginalFilename: r.OriginalFilename,
		RowCount:         r.RowCount,
		ColCount:         r.ColCount,
	}
	if ts, ok := parseTimestamp(r.CreatedAt); ok {
		t.CreatedAt = ts
	} else if r.CreatedAt != "" {
		slog.Debug("unparsed table timestamp", "table_id", r.ID, "created_at", r.CreatedAt)
	}
	return t
}

// ListTables returns all tables in backend order (newest first).
func (c *Client) ListTables(ctx context.Context) ([]core.Table, error) {
	var recs []tableRecord
	err := c.call(ctx, request{op: "list tables", method: http.MethodGet, path: "/tables"}, &recs)
	if err != nil {
		return nil, err
	}
	tables := make([]core.Table, 0, len(recs))
	for _, r := range recs {
		tables = append(tables, r.table())
	}
	return tables, nil
}

type sliceResponse struct {
	TableID  string   `json:"table_id"`
	Columns  []string `json:"columns"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	RowCount int      `json:"row_count"`
	Rows     []struct {
		RowIndex *int           `json:"row_index"`
		Data     map[string]any `json:"data"`
	} `json:"rows"`
}

// FetchSlice requests rows [rowFrom, rowTo). rowFrom is clamped to 0 and at
// least one row is requested. No columns means all columns.
func (c *Client) FetchSlice(ctx context.Context, tableID string, rowFrom, rowTo int, columns ...string) (*core.Slice, error) {
	offset := max(0, rowFrom)
	limit := max(1, rowTo-offset)

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if cols := compactColumns(columns); len(cols) > 0 {
		q.Set("cols", strings.Join(cols, ","))
	}

	var resp sliceResponse
	err := c.call(ctx, request{
		op:     "fetch slice",
		method: http.MethodGet,
		path:   "/tables/" + url.PathEscape(tableID) + "/slice",
		query:  q,
	}, &resp)
	if err != nil {
		return nil, err
	}

	s := &core.Slice{
		TableID:  resp.TableID,
		Columns:  resp.Columns,
		Offset:   resp.Offset,
		RowCount: resp.RowCount,
		Rows:     make([]core.Row, 0, len(resp.Rows)),
	}
	if s.TableID == "" {
		s.TableID = tableID
	}
	for i, r := range resp.Rows {
		idx := resp.Offset + i
		if r.RowIndex != nil {
			idx = *r.RowIndex
		}
		s.Rows = append(s.Rows, core.Row{Index: idx, Values: r.Data})
	}
	return s, nil
}

func compactColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		if col = strings.TrimSpace(col); col != "" {
			out = append(out, col)
		}
	}
	return out
}

// RenameTable sets a table's display name and returns the updated record.
func (c *Client) RenameTable(ctx context.Context, tableID, name string) (*core.Table, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, core.NewError(core.KindInvalid, "rename table", "encode body", err)
	}
	var rec tableRecord
	err = c.call(ctx, request{
		op:          "rename table",
		method:      http.MethodPatch,
		path:        "/tables/" + url.PathEscape(tableID),
		body:        body,
		contentType: "application/json",
	}, &rec)
	if err != nil {
		return nil, err
	}
	t := rec.table()
	return &t, nil
}

// DeleteTable removes a table with its rows, highlights and jobs.
func (c *Client) DeleteTable(ctx context.Context, tableID string) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	err := c.call(ctx, request{
		op:     "delete table",
		method: http.MethodDelete,
		path:   "/tables/" + url.PathEscape(tableID),
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		return core.NewError(core.KindTransient, "delete table", "backend did not confirm deletion", nil)
	}
	return nil
}

// ReindexTable starts a re-embedding job and returns its id.
func (c *Client) ReindexTable(ctx context.Context, tableID string) (string, error) {
	var resp acceptedResponse
	err := c.call(ctx, request{
		op:     "reindex table",
		method: http.MethodPost,
		path:   "/tables/" + url.PathEscape(tableID) + "/reindex",
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.JobID) == "" {
		return "", core.NewError(core.KindUploadRejected, "reindex table", "no job id returned", nil)
	}
	return resp.JobID, nil
}

// Ping checks that the backend answers its status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, request{op: "ping", method: http.MethodGet, path: "/mcp-status"}, &resp); err != nil {
		return err
	}
	if resp.Status != "online" {
		return core.NewError(core.KindTransient, "ping", fmt.Sprintf("backend status %q", resp.Status), nil)
	}
	return nil
}
