// Package ui renders tables and upload progress for the terminal client.
package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/charmbracelet/lipgloss"
)

// Marker prefixes cited cells so highlights survive on terminals without
// color.
const Marker = "*"

const maxCellWidth = 24

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#888888"))

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	markStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFAA00"))

	citedRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	absentStyle = lipgloss.NewStyle().
			Faint(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)
)

type gridCell struct {
	text   string
	marked bool
	absent bool
}

type gridRow struct {
	index int
	cited bool
	cells []gridCell
}

// RenderTables renders table metadata in backend order.
func RenderTables(tables []core.Table) string {
	if len(tables) == 0 {
		return footerStyle.Render("No tables yet.") + "\n"
	}
	columns := []string{"table_id", "name", "file", "rows", "cols", "created"}
	rows := make([]gridRow, 0, len(tables))
	for i, t := range tables {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, gridRow{index: i, cells: []gridCell{
			{text: t.ID},
			{text: t.Name},
			{text: t.OriginalFilename},
			{text: strconv.Itoa(t.RowCount)},
			{text: strconv.Itoa(t.ColCount)},
			{text: created},
		}})
	}
	var sb strings.Builder
	writeGrid(&sb, columns, rows)
	return sb.String()
}

// RenderSlice renders a plain preview grid.
func RenderSlice(s *core.Slice) string {
	if s == nil || len(s.Rows) == 0 {
		return footerStyle.Render("No rows.") + "\n"
	}

	rows := make([]gridRow, 0, len(s.Rows))
	for _, r := range s.Rows {
		gr := gridRow{index: r.Index}
		for _, col := range s.Columns {
			_, ok := r.Cell(col)
			gr.cells = append(gr.cells, gridCell{text: r.CellString(col), absent: !ok})
		}
		rows = append(rows, gr)
	}

	var sb strings.Builder
	writeGrid(&sb, s.Columns, rows)
	footer := fmt.Sprintf("rows %d-%d", s.Rows[0].Index, s.Rows[len(s.Rows)-1].Index)
	if s.RowCount > 0 {
		footer += fmt.Sprintf(" of %d", s.RowCount)
	}
	sb.WriteString(footerStyle.Render(footer))
	sb.WriteString("\n")
	return sb.String()
}

// RenderProjection renders a highlighted window. Cited rows are flagged
// with ">" and cited cells carry Marker.
func RenderProjection(p *core.Projection) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("table %s, rows %s", p.Highlight.TableID, p.Window)))
	sb.WriteString("\n")

	view := p.View()
	if len(view) == 0 {
		sb.WriteString(footerStyle.Render("The backend returned no rows for this window."))
		sb.WriteString("\n")
		writeUnmatched(&sb, p)
		return sb.String()
	}

	rows := make([]gridRow, 0, len(view))
	for _, vr := range view {
		gr := gridRow{index: vr.Absolute, cited: vr.Marked}
		for _, c := range vr.Cells {
			text := c.Value
			if c.Marked {
				text = Marker + text
			}
			gr.cells = append(gr.cells, gridCell{text: text, marked: c.Marked, absent: !c.Present})
		}
		rows = append(rows, gr)
	}
	writeGrid(&sb, p.Slice.Columns, rows)
	writeUnmatched(&sb, p)
	return sb.String()
}

func writeUnmatched(sb *strings.Builder, p *core.Projection) {
	if missing := p.Unmatched(); len(missing) > 0 {
		sb.WriteString(footerStyle.Render(fmt.Sprintf("cited rows not returned by the backend: %v", missing)))
		sb.WriteString("\n")
	}
}

// writeGrid pads every cell to its column width before styling, so ANSI
// sequences never skew the alignment.
func writeGrid(sb *strings.Builder, columns []string, rows []gridRow) {
	idxWidth := 1
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = lipgloss.Width(truncate(col))
	}
	for _, r := range rows {
		idxWidth = max(idxWidth, len(strconv.Itoa(r.index)))
		for i, c := range r.cells {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(truncate(c.text)))
			}
		}
	}

	sb.WriteString("  ")
	sb.WriteString(strings.Repeat(" ", idxWidth))
	for i, col := range columns {
		sb.WriteString("  ")
		sb.WriteString(headerStyle.Render(pad(truncate(col), widths[i])))
	}
	sb.WriteString("\n")

	for _, r := range rows {
		flag := "  "
		if r.cited {
			flag = "> "
		}
		sb.WriteString(flag)
		sb.WriteString(indexStyle.Render(pad(strconv.Itoa(r.index), idxWidth)))
		for i, c := range r.cells {
			if i >= len(widths) {
				break
			}
			text := pad(truncate(c.text), widths[i])
			switch {
			case c.marked:
				text = markStyle.Render(text)
			case c.absent:
				text = absentStyle.Render(pad("-", widths[i]))
			case r.cited:
				text = citedRowStyle.Render(text)
			}
			sb.WriteString("  ")
			sb.WriteString(text)
		}
		sb.WriteString("\n")
	}
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxCellWidth {
		return s
	}
	return string(r[:maxCellWidth-1]) + "…"
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
