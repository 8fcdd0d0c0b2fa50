package ui

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/core/coretest"
	tea "github.com/charmbracelet/bubbletea"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestRenderProjection_MarksCitedCells(t *testing.T) {
	b := coretest.New()
	b.AddTable(core.Table{ID: "t1"}, []string{"date", "amount"}, 43)
	p := core.NewProjector(b, core.DefaultContextRows)

	proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{42}, Cols: []string{"amount"}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	out := plain(RenderProjection(proj))
	if !strings.Contains(out, "rows [37, 48)") {
		t.Errorf("missing window header:\n%s", out)
	}
	if !strings.Contains(out, Marker+"amount-42") {
		t.Errorf("cited cell not marked:\n%s", out)
	}
	if strings.Count(out, Marker) != 1 {
		t.Errorf("want exactly one marked cell:\n%s", out)
	}

	var cited []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "> ") {
			cited = append(cited, line)
		}
	}
	if len(cited) != 1 || !strings.Contains(cited[0], "42") {
		t.Errorf("cited rows = %q, want only row 42", cited)
	}
}

func TestRenderProjection_Unmatched(t *testing.T) {
	b := coretest.New()
	b.AddTable(core.Table{ID: "t1"}, []string{"a"}, 5)
	proj, err := core.NewProjector(b, 1).Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{9}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	out := plain(RenderProjection(proj))
	if !strings.Contains(out, "[9]") {
		t.Errorf("unmatched row not reported:\n%s", out)
	}
}

func TestRenderSlice(t *testing.T) {
	tests := []struct {
		name  string
		slice *core.Slice
		want  []string
	}{
		{"nil", nil, []string{"No rows."}},
		{
			name: "rows",
			slice: &core.Slice{
				Columns:  []string{"region", "amount"},
				RowCount: 10,
				Rows: []core.Row{
					{Index: 0, Values: map[string]any{"region": "north", "amount": float64(12)}},
					{Index: 1, Values: map[string]any{"region": "south"}},
				},
			},
			want: []string{"region", "north", "12", "rows 0-1 of 10"},
		},
		{
			name: "long values truncated",
			slice: &core.Slice{
				Columns: []string{"note"},
				Rows:    []core.Row{{Index: 0, Values: map[string]any{"note": strings.Repeat("x", 40)}}},
			},
			want: []string{strings.Repeat("x", maxCellWidth-1) + "…"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := plain(RenderSlice(tt.slice))
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if strings.Contains(out, Marker) {
				t.Errorf("plain grid should have no marks:\n%s", out)
			}
		})
	}
}

type fakeUploader struct {
	steps   []int
	outcome *core.UploadOutcome
	err     error
	block   bool
}

func (f *fakeUploader) Upload(ctx context.Context, form *core.UploadForm, onProgress core.ProgressFunc) (*core.UploadOutcome, error) {
	for _, p := range f.steps {
		onProgress(core.Observation{State: core.PollPolling, Progress: p})
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.outcome, f.err
}

func newModel(u Uploader) *UploadModel {
	form := &core.UploadForm{File: &core.UploadFile{Name: "sales.csv", Data: []byte("a\n1\n")}}
	return NewUploadModel(context.Background(), u, form)
}

// drive feeds the model's own commands back into it until it quits.
func drive(t *testing.T, m *UploadModel) {
	t.Helper()
	cmd := m.start()
	for i := 0; i < 100; i++ {
		msg := cmd()
		if _, ok := msg.(tea.QuitMsg); ok {
			return
		}
		_, cmd = m.Update(msg)
		if cmd == nil {
			t.Fatal("model stopped without quitting")
		}
	}
	t.Fatal("model did not finish")
}

func TestUploadModel_Success(t *testing.T) {
	u := &fakeUploader{
		steps:   []int{30, 70},
		outcome: &core.UploadOutcome{State: core.PollSucceeded, TableID: "t9"},
	}
	m := newModel(u)
	drive(t, m)

	outcome, err := m.Result()
	if err != nil || outcome.TableID != "t9" {
		t.Fatalf("Result() = %+v, %v", outcome, err)
	}
	if view := plain(m.View()); !strings.Contains(view, "Uploaded sales.csv as table t9") {
		t.Errorf("View() = %q", view)
	}
}

func TestUploadModel_Failure(t *testing.T) {
	u := &fakeUploader{err: core.JobFailedError("j1", "bad header row")}
	m := newModel(u)
	drive(t, m)

	if _, err := m.Result(); !errors.Is(err, core.ErrJobFailed) {
		t.Errorf("Result() error = %v", err)
	}
	if view := plain(m.View()); !strings.Contains(view, "bad header row (JOB001)") {
		t.Errorf("View() = %q", view)
	}
}

func TestUploadModel_ProgressView(t *testing.T) {
	m := newModel(&fakeUploader{})
	token := m.gen.Advance()

	m.Update(progressMsg{token: token, obs: core.Observation{State: core.PollPolling, Progress: 40}})
	if view := plain(m.View()); !strings.Contains(view, "Uploading sales.csv") || !strings.Contains(view, "polling 40%") {
		t.Errorf("View() = %q", view)
	}
}

func TestUploadModel_DropsStaleMessages(t *testing.T) {
	m := newModel(&fakeUploader{})
	stale := m.gen.Advance()
	m.gen.Advance()

	_, cmd := m.Update(progressMsg{token: stale, obs: core.Observation{State: core.PollPolling, Progress: 90}})
	if cmd != nil || m.last.Progress != 0 {
		t.Errorf("stale progress applied: %+v", m.last)
	}
	_, cmd = m.Update(doneMsg{token: stale, outcome: &core.UploadOutcome{TableID: "late"}})
	if cmd != nil || m.finished || m.outcome != nil {
		t.Error("stale result applied")
	}
}

func TestUploadModel_Cancel(t *testing.T) {
	m := newModel(&fakeUploader{block: true})
	cmd := m.start()

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if quit == nil {
		t.Fatal("ctrl+c should quit")
	}

	// The blocked upload now returns under a superseded token.
	msg := cmd()
	if _, next := m.Update(msg); next != nil {
		t.Errorf("late result after cancel produced a command")
	}
	if _, err := m.Result(); !errors.Is(err, context.Canceled) {
		t.Errorf("Result() error = %v, want context.Canceled", err)
	}
	if view := plain(m.View()); !strings.Contains(view, "Upload cancelled") {
		t.Errorf("View() = %q", view)
	}
}
