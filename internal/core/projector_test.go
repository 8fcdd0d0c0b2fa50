package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/core/coretest"
)

func TestComputeWindow(t *testing.T) {
	tests := []struct {
		name string
		rows []int
		pad  int
		want core.Window
	}{
		{"single row", []int{42}, 5, core.Window{From: 37, To: 48}},
		{"clamped at zero", []int{2}, 5, core.Window{From: 0, To: 8}},
		{"spread rows", []int{10, 3, 20}, 5, core.Window{From: 0, To: 26}},
		{"no padding", []int{7, 9}, 0, core.Window{From: 7, To: 10}},
		{"negative pad treated as zero", []int{4}, -3, core.Window{From: 4, To: 5}},
		{"row zero", []int{0}, 5, core.Window{From: 0, To: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.ComputeWindow(tt.rows, tt.pad)
			if err != nil {
				t.Fatalf("ComputeWindow() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputeWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeWindow_ContainsEveryCitedRow(t *testing.T) {
	sets := [][]int{{0}, {1, 2, 3}, {100}, {5, 500}, {7, 7, 7}, {49, 3, 18}}
	for _, rows := range sets {
		w, err := core.ComputeWindow(rows, core.DefaultContextRows)
		if err != nil {
			t.Fatalf("ComputeWindow(%v) error = %v", rows, err)
		}
		lo, hi := rows[0], rows[0]
		for _, r := range rows {
			lo, hi = min(lo, r), max(hi, r)
			if !w.Contains(r) {
				t.Errorf("window %v does not contain cited row %d", w, r)
			}
		}
		if w.From != max(0, lo-5) || w.To != hi+6 {
			t.Errorf("window %v for rows %v, want [%d, %d)", w, rows, max(0, lo-5), hi+6)
		}
	}
}

func TestComputeWindow_NoRows(t *testing.T) {
	if _, err := core.ComputeWindow(nil, 5); !errors.Is(err, core.ErrInvalidCitation) {
		t.Errorf("ComputeWindow(nil) error = %v, want InvalidCitation", err)
	}
}

func TestCitationValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       *core.Citation
		wantErr bool
	}{
		{"valid", &core.Citation{TableID: "t1", Rows: []int{1}, Cols: []string{"a"}}, false},
		{"no columns is valid", &core.Citation{TableID: "t1", Rows: []int{1}}, false},
		{"nil", nil, true},
		{"missing table", &core.Citation{Rows: []int{1}}, true},
		{"no rows", &core.Citation{TableID: "t1", Cols: []string{"a"}}, true},
		{"negative row", &core.Citation{TableID: "t1", Rows: []int{-1}}, true},
		{"blank column", &core.Citation{TableID: "t1", Rows: []int{1}, Cols: []string{" "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidCitation) {
				t.Errorf("Validate() error = %v, want InvalidCitation kind", err)
			}
		})
	}
}

func TestCitationNormalized(t *testing.T) {
	c := core.Citation{TableID: "t1", Rows: []int{9, 2, 9, 4}, Cols: []string{"b", "a", "b"}}
	n := c.Normalized()
	if !reflect.DeepEqual(n.Rows, []int{2, 4, 9}) {
		t.Errorf("Rows = %v", n.Rows)
	}
	if !reflect.DeepEqual(n.Cols, []string{"b", "a"}) {
		t.Errorf("Cols = %v", n.Cols)
	}
	if !reflect.DeepEqual(c.Rows, []int{9, 2, 9, 4}) {
		t.Error("Normalized() mutated the receiver")
	}
}

func newBackendWithTable(id string, columns []string, rows int) *coretest.Backend {
	b := coretest.New()
	b.AddTable(core.Table{ID: id, Name: id}, columns, rows)
	return b
}

func TestProjector_ShortTableScenario(t *testing.T) {
	// Table t1 has 43 rows, so only rows 37..42 come back.
	b := newBackendWithTable("t1", []string{"date", "amount"}, 43)
	p := core.NewProjector(b, core.DefaultContextRows)

	proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{42}, Cols: []string{"amount"}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	if want := (core.Window{From: 37, To: 48}); proj.Window != want {
		t.Errorf("Window = %v, want %v", proj.Window, want)
	}

	reqs := b.SliceRequests()
	if len(reqs) != 1 {
		t.Fatalf("FetchSlice called %d times, want 1", len(reqs))
	}
	if got := reqs[0]; got.TableID != "t1" || got.From != 37 || got.To != 48 || !reflect.DeepEqual(got.Columns, []string{"amount"}) {
		t.Errorf("FetchSlice(%+v), want t1 [37,48) [amount]", got)
	}

	view := proj.View()
	if len(view) != 6 {
		t.Fatalf("View() returned %d rows, want 6", len(view))
	}
	for i, vr := range view {
		if vr.Absolute != 37+i || vr.Local != i {
			t.Errorf("row %d = abs %d local %d", i, vr.Absolute, vr.Local)
		}
		wantMarked := vr.Absolute == 42
		if vr.Marked != wantMarked || vr.Cells[0].Marked != wantMarked {
			t.Errorf("row %d marked = %v, cell marked = %v, want %v", vr.Absolute, vr.Marked, vr.Cells[0].Marked, wantMarked)
		}
	}
	if missing := proj.Unmatched(); len(missing) != 0 {
		t.Errorf("Unmatched() = %v, want none", missing)
	}
	for r := 43; r < 48; r++ {
		if _, ok := proj.Slice.RowAt(r); ok {
			t.Errorf("row %d should be absent", r)
		}
	}
}

func TestProjector_CitedRowBeyondTable(t *testing.T) {
	b := newBackendWithTable("t1", []string{"a"}, 10)
	p := core.NewProjector(b, 2)

	proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{8, 12}, Cols: []string{"a"}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if got := proj.Unmatched(); !reflect.DeepEqual(got, []int{12}) {
		t.Errorf("Unmatched() = %v, want [12]", got)
	}
}

func TestProjector_MarkRule(t *testing.T) {
	b := newBackendWithTable("t1", []string{"a", "b", "c"}, 30)
	p := core.NewProjector(b, 1)

	cited := map[int]bool{10: true, 12: true}
	proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{12, 10}, Cols: []string{"c", "a"}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	for _, vr := range proj.View() {
		if vr.Marked != cited[vr.Absolute] {
			t.Errorf("row %d marked = %v", vr.Absolute, vr.Marked)
		}
		for _, c := range vr.Cells {
			want := cited[vr.Absolute] && (c.Column == "a" || c.Column == "c")
			if c.Marked != want {
				t.Errorf("cell (%d, %s) marked = %v, want %v", vr.Absolute, c.Column, c.Marked, want)
			}
			if proj.Highlight.CellMarked(vr.Absolute, c.Column) != want {
				t.Errorf("CellMarked(%d, %s) disagrees with View()", vr.Absolute, c.Column)
			}
		}
	}
}

func TestProjector_NoColumnsStillMarksRows(t *testing.T) {
	b := newBackendWithTable("t1", []string{"a", "b"}, 20)
	p := core.NewProjector(b, 0)

	proj, err := p.Project(context.Background(), core.Citation{TableID: "t1", Rows: []int{5}})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(b.SliceRequests()[0].Columns) != 0 {
		t.Error("empty column list should request all columns")
	}

	view := proj.View()
	if len(view) != 1 || !view[0].Marked {
		t.Fatalf("View() = %+v, want one marked row", view)
	}
	for _, c := range view[0].Cells {
		if c.Marked {
			t.Errorf("cell %s marked without cited columns", c.Column)
		}
	}
}

func TestProjector_Idempotent(t *testing.T) {
	b := newBackendWithTable("t1", []string{"a", "b"}, 100)
	p := core.NewProjector(b, core.DefaultContextRows)
	c := core.Citation{TableID: "t1", Rows: []int{50, 44}, Cols: []string{"b"}}

	first, err := p.Project(context.Background(), c)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	second, err := p.Project(context.Background(), c)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	if first.Window != second.Window {
		t.Errorf("windows differ: %v vs %v", first.Window, second.Window)
	}
	if !reflect.DeepEqual(first.View(), second.View()) {
		t.Error("highlight sets differ between projections")
	}
}

func TestProjector_Errors(t *testing.T) {
	b := newBackendWithTable("t1", []string{"a"}, 10)
	p := core.NewProjector(b, 5)

	if _, err := p.Project(context.Background(), core.Citation{TableID: "t1"}); !errors.Is(err, core.ErrInvalidCitation) {
		t.Errorf("empty rows error = %v, want InvalidCitation", err)
	}
	if len(b.SliceRequests()) != 0 {
		t.Error("invalid citation should not fetch")
	}

	if _, err := p.Project(context.Background(), core.Citation{TableID: "nope", Rows: []int{1}}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown table error = %v, want NotFound", err)
	}
}
