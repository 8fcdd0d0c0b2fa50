package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// Table is the backend's metadata record for an ingested table.
type Table struct {
	ID               string    `json:"table_id"`
	Name             string    `json:"name"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	RowCount         int       `json:"row_count"`
	ColCount         int       `json:"col_count"`
}

// Row is a single record of a slice. Values maps column name to cell value;
// a missing key or a nil value means the cell is absent.
type Row struct {
	Index  int            `json:"row_index"`
	Values map[string]any `json:"data"`
}

// Cell returns the value for column and whether it is present.
func (r Row) Cell(column string) (any, bool) {
	v, ok := r.Values[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// CellString formats a cell for display. Absent cells render as "".
func (r Row) CellString(column string) string {
	v, ok := r.Cell(column)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; keep integers free of ".0"
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Slice is a contiguous, possibly column-filtered window of a table.
// Immutable once fetched; refetch to refresh.
type Slice struct {
	TableID  string   `json:"table_id"`
	Columns  []string `json:"columns"`
	Offset   int      `json:"offset"`
	Rows     []Row    `json:"rows"`
	RowCount int      `json:"row_count"` // total rows in the table, 0 if unknown
}

// RowAt returns the row whose absolute index is abs.
func (s *Slice) RowAt(abs int) (Row, bool) {
	if s == nil {
		return Row{}, false
	}
	i := abs - s.Offset
	if i >= 0 && i < len(s.Rows) && s.Rows[i].Index == abs {
		return s.Rows[i], true
	}
	for _, r := range s.Rows {
		if r.Index == abs {
			return r, true
		}
	}
	return Row{}, false
}

// JobStatus is the backend-defined job status string.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobProcessing JobStatus = "processing"
	JobIndexing   JobStatus = "indexing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// Succeeded reports whether the status ends the job successfully.
// Indexing counts as success: the table is queryable while embeddings
// finish in the background.
func (s JobStatus) Succeeded() bool {
	return s == JobDone || s == JobIndexing
}

// Failed reports whether the status ends the job with an error.
func (s JobStatus) Failed() bool {
	return s == JobError
}

// Job is a snapshot of a backend ingestion job.
type Job struct {
	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	TableID  string    `json:"table_id,omitempty"`
}

// UploadFile is a file selected for upload.
type UploadFile struct {
	Name string // file name sent in the multipart form
	Data []byte
}

// Reader returns a fresh reader over the file contents.
func (f *UploadFile) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// SliceReader is the read side of the backend used by the projector and
// the orchestrator.
type SliceReader interface {
	FetchSlice(ctx context.Context, tableID string, rowFrom, rowTo int, columns ...string) (*Slice, error)
	ListTables(ctx context.Context) ([]Table, error)
}

// JobSource fetches the current state of a job.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// Uploader submits a file for ingestion and returns the job id.
type Uploader interface {
	SubmitUpload(ctx context.Context, file *UploadFile, name string) (string, error)
}

// CitationSource resolves a highlight id to its citation.
type CitationSource interface {
	GetCitation(ctx context.Context, highlightID string) (*Citation, error)
}

// TableEditor holds the table mutations exposed by the backend.
type TableEditor interface {
	RenameTable(ctx context.Context, tableID, name string) (*Table, error)
	DeleteTable(ctx context.Context, tableID string) error
	ReindexTable(ctx context.Context, tableID string) (string, error)
}

// Backend is the full backend surface the service needs.
type Backend interface {
	SliceReader
	JobSource
	Uploader
	CitationSource
	TableEditor
}
