// Package coretest provides an in-memory core.Backend for tests.
package coretest

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/JonMunkholm/tablerag/internal/core"
)

// JobStep is one scripted GetJob response.
type JobStep struct {
	Job core.Job
	Err error
}

// SliceRequest records one FetchSlice call.
type SliceRequest struct {
	TableID string
	From    int
	To      int
	Columns []string
}

// Submission records one SubmitUpload call.
type Submission struct {
	FileName string
	Name     string
	Data     []byte
}

// Backend is a scripted, thread-safe core.Backend.
//
// Job responses are consumed in order per job id; the last step repeats.
// Slices are cut from Rows, so a short table returns a short slice.
type Backend struct {
	mu sync.Mutex

	Tables    []core.Table
	Columns   map[string][]string
	Rows      map[string][]core.Row
	Jobs      map[string][]JobStep
	Citations map[string]core.Citation

	JobID        string // returned by SubmitUpload
	ReindexJobID string // returned by ReindexTable
	SubmitErr    error
	ListErr      error
	SliceErr     error

	// JobGate, when set, blocks every GetJob until a value is received or
	// the call's context ends.
	JobGate chan struct{}

	jobCalls    map[string]int
	slices      []SliceRequest
	submissions []Submission
	listCalls   int
}

var _ core.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		Columns:   make(map[string][]string),
		Rows:      make(map[string][]core.Row),
		Jobs:      make(map[string][]JobStep),
		Citations: make(map[string]core.Citation),
		jobCalls:  make(map[string]int),
	}
}

// AddTable registers a table with n rows. Cell values are "<col>-<row>".
func (b *Backend) AddTable(t core.Table, columns []string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]core.Row, n)
	for i := range rows {
		values := make(map[string]any, len(columns))
		for _, c := range columns {
			values[c] = c + "-" + strconv.Itoa(i)
		}
		rows[i] = core.Row{Index: i, Values: values}
	}
	t.RowCount = n
	t.ColCount = len(columns)
	b.Tables = append(b.Tables, t)
	b.Columns[t.ID] = columns
	b.Rows[t.ID] = rows
}

// Script sets the GetJob responses for jobID.
func (b *Backend) Script(jobID string, steps ...JobStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Jobs[jobID] = steps
}

// Step builds a successful JobStep.
func Step(status core.JobStatus, progress int) JobStep {
	return JobStep{Job: core.Job{Status: status, Progress: progress}}
}

func (b *Backend) SubmitUpload(ctx context.Context, file *core.UploadFile, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions = append(b.submissions, Submission{FileName: file.Name, Name: name, Data: slices.Clone(file.Data)})
	if b.SubmitErr != nil {
		return "", b.SubmitErr
	}
	return b.JobID, nil
}

func (b *Backend) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	if b.JobGate != nil {
		select {
		case <-b.JobGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	steps, ok := b.Jobs[jobID]
	if !ok || len(steps) == 0 {
		return nil, core.NewError(core.KindNotFound, "get job", "Job not found", nil)
	}
	i := min(b.jobCalls[jobID], len(steps)-1)
	b.jobCalls[jobID]++
	step := steps[i]
	if step.Err != nil {
		return nil, step.Err
	}
	job := step.Job
	job.ID = jobID
	return &job, nil
}

func (b *Backend) ListTables(ctx context.Context) ([]core.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	return slices.Clone(b.Tables), nil
}

func (b *Backend) FetchSlice(ctx context.Context, tableID string, rowFrom, rowTo int, columns ...string) (*core.Slice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slices = append(b.slices, SliceRequest{TableID: tableID, From: rowFrom, To: rowTo, Columns: slices.Clone(columns)})
	if b.SliceErr != nil {
		return nil, b.SliceErr
	}
	rows, ok := b.Rows[tableID]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "fetch slice", "Table not found", nil)
	}

	cols := columns
	if len(cols) == 0 {
		cols = b.Columns[tableID]
	}
	out := &core.Slice{TableID: tableID, Columns: slices.Clone(cols), Offset: max(0, rowFrom), RowCount: len(rows)}
	for _, r := range rows {
		if r.Index < rowFrom || r.Index >= rowTo {
			continue
		}
		values := make(map[string]any, len(cols))
		for _, c := range cols {
			if v, ok := r.Values[c]; ok {
				values[c] = v
			}
		}
		out.Rows = append(out.Rows, core.Row{Index: r.Index, Values: values})
	}
	return out, nil
}

func (b *Backend) GetCitation(ctx context.Context, highlightID string) (*core.Citation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.Citations[highlightID]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "get citation", "Highlight not found", nil)
	}
	c.HighlightID = highlightID
	return &c, nil
}

func (b *Backend) RenameTable(ctx context.Context, tableID, name string) (*core.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Tables {
		if b.Tables[i].ID == tableID {
			b.Tables[i].Name = name
			t := b.Tables[i]
			return &t, nil
		}
	}
	return nil, core.NewError(core.KindNotFound, "rename table", "Table not found", nil)
}

func (b *Backend) DeleteTable(ctx context.Context, tableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Tables {
		if b.Tables[i].ID == tableID {
			b.Tables = slices.Delete(b.Tables, i, i+1)
			delete(b.Rows, tableID)
			delete(b.Columns, tableID)
			return nil
		}
	}
	return core.NewError(core.KindNotFound, "delete table", "Table not found", nil)
}

func (b *Backend) ReindexTable(ctx context.Context, tableID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.Rows[tableID]; !ok {
		return "", core.NewError(core.KindNotFound, "reindex table", "Table not found", nil)
	}
	return b.ReindexJobID, nil
}

// SliceRequests returns every FetchSlice call so far.
func (b *Backend) SliceRequests() []SliceRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.slices)
}

// Submissions returns every SubmitUpload call so far.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.submissions)
}

// JobCalls returns the number of GetJob calls for jobID.
func (b *Backend) JobCalls(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jobCalls[jobID]
}

// ListCalls returns the number of ListTables calls.
func (b *Backend) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}
