package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// DefaultContextRows is the number of rows shown before and after the
// cited rows.
const DefaultContextRows = 5

// Citation is a set of absolute rows and column names within one table.
// Every (row, column) pair of the cross product is cited.
type Citation struct {
	HighlightID string   `json:"highlight_id,omitempty"`
	TableID     string   `json:"table_id"`
	Rows        []int    `json:"rows"`
	Cols        []string `json:"cols"`
}

// Validate rejects citations that cannot be projected.
func (c *Citation) Validate() error {
	const op = "validate citation"
	if c == nil {
		return errorf(KindInvalidCitation, op, "missing citation")
	}
	if strings.TrimSpace(c.TableID) == "" {
		return errorf(KindInvalidCitation, op, "missing table id")
	}
	if len(c.Rows) == 0 {
		return errorf(KindInvalidCitation, op, "no cited rows")
	}
	for _, r := range c.Rows {
		if r < 0 {
			return errorf(KindInvalidCitation, op, "negative row index %d", r)
		}
	}
	for _, col := range c.Cols {
		if strings.TrimSpace(col) == "" {
			return errorf(KindInvalidCitation, op, "empty column name")
		}
	}
	return nil
}

// Normalized returns a copy with sorted, de-duplicated rows and columns in
// first-seen order without duplicates.
func (c Citation) Normalized() Citation {
	rows := slices.Clone(c.Rows)
	slices.Sort(rows)
	rows = slices.Compact(rows)

	seen := make(map[string]struct{}, len(c.Cols))
	cols := make([]string, 0, len(c.Cols))
	for _, col := range c.Cols {
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	c.Rows = rows
	c.Cols = cols
	return c
}

// Window is the half-open absolute row range [From, To).
type Window struct {
	From int `json:"row_from"`
	To   int `json:"row_to"`
}

// Contains reports whether the absolute row falls inside the window.
func (w Window) Contains(row int) bool {
	return row >= w.From && row < w.To
}

// Len returns the number of rows requested by the window.
func (w Window) Len() int {
	return w.To - w.From
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d)", w.From, w.To)
}

// ComputeWindow pads the cited rows by pad rows on each side.
// A negative pad is treated as zero.
func ComputeWindow(rows []int, pad int) (Window, error) {
	if len(rows) == 0 {
		return Window{}, errorf(KindInvalidCitation, "compute window", "no cited rows")
	}
	if pad < 0 {
		pad = 0
	}
	lo, hi := slices.Min(rows), slices.Max(rows)
	return Window{From: max(0, lo-pad), To: hi + pad + 1}, nil
}

// Highlight is the projected citation: absolute rows and columns paired
// with the window origin so renderers can compute local offsets.
type Highlight struct {
	TableID string   `json:"table_id"`
	Rows    []int    `json:"rows"`
	Cols    []string `json:"cols"`
	From    int      `json:"row_from"`

	rows map[int]struct{}
	cols map[string]struct{}
}

func newHighlight(c Citation, from int) Highlight {
	h := Highlight{
		TableID: c.TableID,
		Rows:    c.Rows,
		Cols:    c.Cols,
		From:    from,
		rows:    make(map[int]struct{}, len(c.Rows)),
		cols:    make(map[string]struct{}, len(c.Cols)),
	}
	for _, r := range c.Rows {
		h.rows[r] = struct{}{}
	}
	for _, col := range c.Cols {
		h.cols[col] = struct{}{}
	}
	return h
}

// Local converts an absolute row index to a window-relative offset.
func (h Highlight) Local(absRow int) int {
	return absRow - h.From
}

// RowMarked reports whether the absolute row is cited, regardless of column.
func (h Highlight) RowMarked(absRow int) bool {
	_, ok := h.rows[absRow]
	return ok
}

// CellMarked reports whether the cell at (absRow, col) is cited.
func (h Highlight) CellMarked(absRow int, col string) bool {
	if !h.RowMarked(absRow) {
		return false
	}
	_, ok := h.cols[col]
	return ok
}

// Projection is a citation mapped onto a fetched window.
type Projection struct {
	Window    Window    `json:"window"`
	Highlight Highlight `json:"highlight"`
	Slice     *Slice    `json:"slice"`
}

// ViewCell is one rendered cell.
type ViewCell struct {
	Column  string `json:"column"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
	Marked  bool   `json:"marked"`
}

// ViewRow is one rendered row.
type ViewRow struct {
	Absolute int        `json:"row_index"`
	Local    int        `json:"local"`
	Marked   bool       `json:"marked"`
	Cells    []ViewCell `json:"cells"`
}

// View returns render-ready rows for every row the backend returned.
// Cited rows the backend did not return are simply absent.
func (p *Projection) View() []ViewRow {
	if p == nil || p.Slice == nil {
		return nil
	}
	out := make([]ViewRow, 0, len(p.Slice.Rows))
	for _, r := range p.Slice.Rows {
		vr := ViewRow{
			Absolute: r.Index,
			Local:    p.Highlight.Local(r.Index),
			Marked:   p.Highlight.RowMarked(r.Index),
			Cells:    make([]ViewCell, 0, len(p.Slice.Columns)),
		}
		for _, col := range p.Slice.Columns {
			_, present := r.Cell(col)
			vr.Cells = append(vr.Cells, ViewCell{
				Column:  col,
				Value:   r.CellString(col),
				Present: present,
				Marked:  p.Highlight.CellMarked(r.Index, col),
			})
		}
		out = append(out, vr)
	}
	return out
}

// Unmatched returns cited rows that the backend did not return.
func (p *Projection) Unmatched() []int {
	if p == nil {
		return nil
	}
	var out []int
	for _, r := range p.Highlight.Rows {
		if _, ok := p.Slice.RowAt(r); !ok {
			out = append(out, r)
		}
	}
	return out
}

// Projector turns citations into fetched, highlighted windows.
type Projector struct {
	reader SliceReader
	pad    int
}

// NewProjector creates a projector padding windows by pad rows.
func NewProjector(reader SliceReader, pad int) *Projector {
	if pad < 0 {
		pad = DefaultContextRows
	}
	return &Projector{reader: reader, pad: pad}
}

// Pad returns the context row count.
func (p *Projector) Pad() int {
	return p.pad
}

// Plan computes the window and highlight without fetching.
func (p *Projector) Plan(c Citation) (Window, Highlight, error) {
	if err := c.Validate(); err != nil {
		return Window{}, Highlight{}, err
	}
	c = c.Normalized()
	w, err := ComputeWindow(c.Rows, p.pad)
	if err != nil {
		return Window{}, Highlight{}, err
	}
	return w, newHighlight(c, w.From), nil
}

// Project computes the window for c, fetches it and pairs it with the
// highlight set. An empty column list fetches all columns.
func (p *Projector) Project(ctx context.Context, c Citation) (*Projection, error) {
	w, h, err := p.Plan(c)
	if err != nil {
		return nil, err
	}

	slice, err := p.reader.FetchSlice(ctx, h.TableID, w.From, w.To, h.Cols...)
	if err != nil {
		return nil, fmt.Errorf("project citation: %w", err)
	}

	proj := &Projection{Window: w, Highlight: h, Slice: slice}
	if missing := proj.Unmatched(); len(missing) > 0 {
		slog.Debug("cited rows beyond returned slice",
			"table_id", h.TableID,
			"window", w.String(),
			"returned", len(slice.Rows),
			"unmatched", len(missing),
		)
	}
	return proj, nil
}
