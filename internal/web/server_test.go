package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tablerag/internal/config"
	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/core/coretest"
	"github.com/JonMunkholm/tablerag/internal/history"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{URL: "http://backend.test"},
		Viewer:  config.ViewerConfig{PreviewRows: 50, ContextRows: 5},
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second},
		History: config.HistoryConfig{ListLimit: 50},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
	}
}

// newTestServer wires a server over a scripted backend with table t1
// (columns date and amount, 43 rows) and highlight h1 citing row 42.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *coretest.Backend) {
	t.Helper()
	b := coretest.New()
	b.AddTable(core.Table{ID: "t1", Name: "Sales"}, []string{"date", "amount"}, 43)
	b.Citations["h1"] = core.Citation{TableID: "t1", Rows: []int{42}, Cols: []string{"amount"}}

	svc := core.NewService(b, core.ServiceConfig{
		Poll:          core.PollConfig{Interval: time.Millisecond, PreviewRows: cfg.Viewer.PreviewRows},
		ContextRows:   cfg.Viewer.ContextRows,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
	}, history.NewMemoryStore(0))

	s := NewServer(svc, nil, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, b
}

func do(s *Server, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestListTables(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/tables", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var tables []core.Table
	decode(t, rec, &tables)
	if len(tables) != 1 || tables[0].ID != "t1" || tables[0].RowCount != 43 {
		t.Errorf("tables = %+v", tables)
	}
}

func TestListTables_EmptyIsArray(t *testing.T) {
	b := coretest.New()
	s := NewServer(core.NewService(b, core.ServiceConfig{}, nil), nil, testConfig())
	defer s.Shutdown(context.Background())

	rec := do(s, http.MethodGet, "/api/tables", nil, nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestSlice(t *testing.T) {
	s, b := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/tables/t1/slice?from=2&to=5&cols=amount", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var slice core.Slice
	decode(t, rec, &slice)
	if len(slice.Rows) != 3 || slice.Offset != 2 {
		t.Errorf("slice = %+v, want 3 rows from 2", slice)
	}

	reqs := b.SliceRequests()
	if last := reqs[len(reqs)-1]; len(last.Columns) != 1 || last.Columns[0] != "amount" {
		t.Errorf("columns requested = %v, want [amount]", last.Columns)
	}
}

func TestSlice_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"empty range", "/api/tables/t1/slice?from=5&to=5", http.StatusBadRequest},
		{"unknown table", "/api/tables/nope/slice", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodGet, tt.target, nil, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp ErrorResponse
			decode(t, rec, &resp)
			if resp.Message == "" || resp.Code == "" {
				t.Errorf("error response = %+v, want message and code", resp)
			}
		})
	}
}

func TestHighlight(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/highlights/h1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Window core.Window    `json:"window"`
		Rows   []core.ViewRow `json:"rows"`
	}
	decode(t, rec, &resp)
	if want := (core.Window{From: 37, To: 48}); resp.Window != want {
		t.Errorf("window = %v, want %v", resp.Window, want)
	}
	if len(resp.Rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(resp.Rows))
	}
	for _, vr := range resp.Rows {
		if vr.Marked != (vr.Absolute == 42) {
			t.Errorf("row %d marked = %v", vr.Absolute, vr.Marked)
		}
	}

	if rec := do(s, http.MethodGet, "/api/highlights/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown highlight status = %d, want 404", rec.Code)
	}
}

func TestRenameTable(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"renamed", `{"name":"Q1 Sales"}`, http.StatusOK},
		{"empty name", `{"name":"  "}`, http.StatusBadRequest},
		{"bad body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPatch, "/api/tables/t1", []byte(tt.body), nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
		})
	}

	rec := do(s, http.MethodGet, "/api/tables", nil, nil)
	if !strings.Contains(rec.Body.String(), "Q1 Sales") {
		t.Errorf("renamed table missing from list: %s", rec.Body)
	}
}

func TestDeleteTable(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodDelete, "/api/tables/t1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["ok"] != true || resp["table_id"] != "t1" {
		t.Errorf("response = %v", resp)
	}

	if rec := do(s, http.MethodDelete, "/api/tables/t1", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func multipartUpload(t *testing.T, fileName, content, name string) ([]byte, http.Header) {
	t.Helper()
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mpw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if name != "" {
		_ = mpw.WriteField("name", name)
	}
	if err := mpw.Close(); err != nil {
		t.Fatal(err)
	}
	h := http.Header{}
	h.Set("Content-Type", mpw.FormDataContentType())
	return buf.Bytes(), h
}

type resultBody struct {
	Done     bool   `json:"done"`
	Error    string `json:"error"`
	Code     string `json:"code"`
	Progress struct {
		State    string `json:"state"`
		Progress int    `json:"progress"`
	} `json:"progress"`
	Outcome *struct {
		TableID string `json:"table_id"`
	} `json:"outcome"`
}

func startUpload(t *testing.T, s *Server, b *coretest.Backend) string {
	t.Helper()
	b.JobID = "j1"
	done := coretest.Step(core.JobDone, 100)
	done.Job.TableID = "t1"
	b.Script("j1", coretest.Step(core.JobProcessing, 50), done)

	body, h := multipartUpload(t, "sales.csv", "date,amount\n2024-01-01,10\n", "Sales")
	rec := do(s, http.MethodPost, "/api/upload", body, h)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["session_id"] == "" {
		t.Fatalf("no session id in %v", resp)
	}
	return resp["session_id"]
}

func TestUpload_WaitForResult(t *testing.T) {
	s, b := newTestServer(t, testConfig())
	id := startUpload(t, s, b)

	rec := do(s, http.MethodGet, "/api/upload/"+id+"/result?wait=true", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body %s", rec.Code, rec.Body)
	}
	var res resultBody
	decode(t, rec, &res)
	if !res.Done || res.Error != "" || res.Progress.State != "succeeded" || res.Progress.Progress != 100 {
		t.Errorf("result = %+v", res)
	}
	if res.Outcome == nil || res.Outcome.TableID != "t1" {
		t.Errorf("outcome = %+v", res.Outcome)
	}

	subs := b.Submissions()
	if len(subs) != 1 || subs[0].Name != "Sales" {
		t.Errorf("submissions = %+v", subs)
	}

	rec = do(s, http.MethodGet, "/api/history", nil, nil)
	var entries []core.HistoryEntry
	decode(t, rec, &entries)
	if len(entries) != 1 || entries[0].State != "succeeded" || entries[0].IPAddress != "192.0.2.1" {
		t.Errorf("history = %+v", entries)
	}
}

func TestUpload_Rejected(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		fileName string
		content  string
	}{
		{"no file", "", ""},
		{"unsupported type", "notes.pdf", "%PDF"},
		{"empty file", "x.csv", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, h := multipartUpload(t, tt.fileName, tt.content, "")
			rec := do(s, http.MethodPost, "/api/upload", body, h)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestUploadProgress_StreamsFinalState(t *testing.T) {
	s, b := newTestServer(t, testConfig())
	id := startUpload(t, s, b)
	do(s, http.MethodGet, "/api/upload/"+id+"/result?wait=true", nil, nil)

	rec := do(s, http.MethodGet, "/api/upload/"+id+"/progress", nil, nil)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	out := rec.Body.String()
	if !eventID.MatchString(out) || !strings.Contains(out, `"state":"succeeded"`) {
		t.Errorf("missing final progress event:\n%s", out)
	}
	if !strings.HasSuffix(out, "event: complete\ndata: {}\n\n") {
		t.Errorf("stream not completed:\n%s", out)
	}
}

var eventID = regexp.MustCompile(`id: (\d+)\nevent: progress\n`)

func TestUploadProgress_ResumeBySequence(t *testing.T) {
	s, b := newTestServer(t, testConfig())
	id := startUpload(t, s, b)
	do(s, http.MethodGet, "/api/upload/"+id+"/result?wait=true", nil, nil)

	m := eventID.FindStringSubmatch(do(s, http.MethodGet, "/api/upload/"+id+"/progress", nil, nil).Body.String())
	if m == nil {
		t.Fatal("no progress event")
	}
	last, _ := strconv.Atoi(m[1])
	if last < 2 {
		t.Fatalf("final event id = %d, want a sequence past the submitted event", last)
	}

	tests := []struct {
		name      string
		lastID    int
		wantEvent bool
	}{
		{"already seen", last, false},
		{"one behind", last - 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/upload/"+id+"/progress", nil)
			req.Header.Set("Last-Event-ID", strconv.Itoa(tt.lastID))
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			out := rec.Body.String()
			if got := eventID.MatchString(out); got != tt.wantEvent {
				t.Errorf("progress event sent = %v, want %v:\n%s", got, tt.wantEvent, out)
			}
			if !strings.HasSuffix(out, "event: complete\ndata: {}\n\n") {
				t.Errorf("stream not completed:\n%s", out)
			}
		})
	}
}

func TestUploadSession_Unknown(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	for _, target := range []string{"/api/upload/nope/result", "/api/upload/nope/progress"} {
		if rec := do(s, http.MethodGet, target, nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
	if rec := do(s, http.MethodPost, "/api/upload/nope/cancel", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
}

func TestCancelUpload(t *testing.T) {
	s, b := newTestServer(t, testConfig())
	b.JobGate = make(chan struct{})
	b.JobID = "j1"
	b.Script("j1", coretest.Step(core.JobRunning, 10))

	body, h := multipartUpload(t, "x.csv", "a\n1\n", "")
	rec := do(s, http.MethodPost, "/api/upload", body, h)
	var resp map[string]string
	decode(t, rec, &resp)
	id := resp["session_id"]

	if rec := do(s, http.MethodPost, "/api/upload/"+id+"/cancel", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	rec = do(s, http.MethodGet, "/api/upload/"+id+"/result?wait=true", nil, nil)
	var res resultBody
	decode(t, rec, &res)
	if !res.Done || res.Code != "UPL004" {
		t.Errorf("result = %+v, want cancelled", res)
	}
}

func TestReindex(t *testing.T) {
	s, b := newTestServer(t, testConfig())
	b.ReindexJobID = "r1"
	done := coretest.Step(core.JobDone, 100)
	done.Job.TableID = "t1"
	b.Script("r1", done)

	rec := do(s, http.MethodPost, "/api/tables/t1/reindex", nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	decode(t, rec, &resp)

	rec = do(s, http.MethodGet, "/api/upload/"+resp["session_id"]+"/result?wait=true", nil, nil)
	var res resultBody
	decode(t, rec, &res)
	if !res.Done || res.Progress.State != "succeeded" {
		t.Errorf("reindex result = %+v", res)
	}

	if rec := do(s, http.MethodPost, "/api/tables/nope/reindex", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown table reindex status = %d, want 404", rec.Code)
	}
}

func TestUploadQueueStatus(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/upload/status", nil, nil)
	var st core.UploadLimiterStatus
	decode(t, rec, &st)
	if st.Active != 0 || st.Available != 2 {
		t.Errorf("status = %+v, want 0 active of 2", st)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		pinger  Pinger
		status  int
		backend string
	}{
		{"no backend", nil, http.StatusOK, "unknown"},
		{"online", fakePinger{}, http.StatusOK, "online"},
		{"offline", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "offline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(core.NewService(coretest.New(), core.ServiceConfig{}, nil), tt.pinger, testConfig())
			defer s.Shutdown(context.Background())

			rec := do(s, http.MethodGet, "/healthz", nil, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp map[string]string
			decode(t, rec, &resp)
			if resp["backend"] != tt.backend {
				t.Errorf("backend = %q, want %q", resp["backend"], tt.backend)
			}
		})
	}
}

func TestAPIKeyProtectsMutations(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	tests := []struct {
		name   string
		method string
		target string
		key    string
		status int
	}{
		{"read needs no key", http.MethodGet, "/api/tables", "", http.StatusOK},
		{"missing key", http.MethodDelete, "/api/tables/t1", "", http.StatusUnauthorized},
		{"wrong key", http.MethodDelete, "/api/tables/t1", "guess", http.StatusForbidden},
		{"upload without key", http.MethodPost, "/api/upload", "", http.StatusUnauthorized},
		{"valid key", http.MethodDelete, "/api/tables/t1", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.key != "" {
				h.Set("X-API-Key", tt.key)
			}
			rec := do(s, tt.method, tt.target, nil, h)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/healthz", nil, nil)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("header %s not set", h)
		}
	}
}

func TestHighlightGrid_UnmatchedRows(t *testing.T) {
	b := coretest.New()
	b.AddTable(core.Table{ID: "t1"}, []string{"a"}, 5)
	p := core.NewProjector(b, 1)

	tests := []struct {
		name string
		rows []int
		want []string
	}{
		{"empty window", []int{9}, []string{"no rows for this window", "Cited rows not returned by the backend: [9]"}},
		{"partial window", []int{2, 9}, []string{"<table>", "Cited rows not returned by the backend: [9]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: tt.rows})
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			var buf bytes.Buffer
			if err := HighlightGrid(proj).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestPages(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		target string
		status int
		want   []string
	}{
		{"dashboard", "/", http.StatusOK, []string{"Sales", `href="/tables/t1"`, `name="file"`}},
		{"table preview", "/tables/t1?from=0&to=3", http.StatusOK, []string{"Showing 3 of 43 rows"}},
		{"highlight", "/highlights/h1", http.StatusOK, []string{`class="mark"`, `class="cited"`, "rows [37, 48)"}},
		{"missing table", "/tables/nope", http.StatusNotFound, []string{`role="alert"`, "TBL001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodGet, tt.target, nil, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
			body := rec.Body.String()
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
		})
	}
}

func TestDashboard_BackendDown(t *testing.T) {
	b := coretest.New()
	b.ListErr = core.NewError(core.KindTransient, "list tables", "", nil)
	s := NewServer(core.NewService(b, core.ServiceConfig{}, nil), nil, testConfig())
	defer s.Shutdown(context.Background())

	rec := do(s, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with inline error", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "NET001") || !strings.Contains(body, `name="file"`) {
		t.Errorf("dashboard should show the backend error and keep the upload form:\n%s", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"too many uploads", core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{"session", core.ErrSessionNotFound, http.StatusNotFound},
		{"cancelled", context.Canceled, http.StatusRequestTimeout},
		{"not found", core.NewError(core.KindNotFound, "op", "", nil), http.StatusNotFound},
		{"invalid", core.NewError(core.KindInvalid, "op", "", nil), http.StatusBadRequest},
		{"citation", core.NewError(core.KindInvalidCitation, "op", "", nil), http.StatusUnprocessableEntity},
		{"rejected", core.NewError(core.KindUploadRejected, "op", "", nil), http.StatusUnprocessableEntity},
		{"job failed", core.JobFailedError("j1", "bad"), http.StatusUnprocessableEntity},
		{"transient", core.NewError(core.KindTransient, "op", "", nil), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Error("third request in the window should be limited")
	}
	if !rl.allow("b") {
		t.Error("other clients have their own budget")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Error("budget should reset after the window")
	}

	now = now.Add(3 * time.Minute)
	rl.sweep()
	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("visitors after sweep = %d, want 0", n)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	s, _ := newTestServer(t, cfg)

	if rec := do(s, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := do(s, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if resp.Code != "RATE001" || rec.Header().Get("Retry-After") == "" {
		t.Errorf("response = %+v", resp)
	}
}
