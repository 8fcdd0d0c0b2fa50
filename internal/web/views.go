package web

// views.go holds the HTML components of the viewer. Components are plain
// templ.Component values so pages compose the same way as generated
// templates; every dynamic value goes through templ.EscapeString.

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;font-size:.9rem}
th,td{border:1px solid #cbd2d9;padding:.25rem .5rem;text-align:left}
th{background:#f0f4f8}
tr.cited td.idx{font-weight:bold}
td.mark{background:#fde68a;font-weight:bold}
td.absent{color:#9aa5b1}
.alert{border:1px solid #e12d39;background:#ffe3e3;padding:.75rem;margin:1rem 0}
.muted{color:#7b8794}
nav a{margin-right:1rem}`

const uploadScript = `document.getElementById('upload').addEventListener('submit', async (ev) => {
  ev.preventDefault();
  const status = document.getElementById('upload-status');
  const res = await fetch('/api/upload', {method: 'POST', body: new FormData(ev.target)});
  const body = await res.json();
  if (!res.ok) { status.textContent = body.message + ' (' + body.code + ')'; return; }
  const es = new EventSource('/api/upload/' + body.session_id + '/progress');
  es.addEventListener('progress', (e) => {
    const p = JSON.parse(e.data);
    status.textContent = p.state + ' ' + p.progress + '% ' + (p.message || '');
  });
  es.addEventListener('complete', async () => {
    es.close();
    const r = await (await fetch('/api/upload/' + body.session_id + '/result')).json();
    if (r.error) { status.textContent = r.error; return; }
    window.location = '/tables/' + encodeURIComponent(r.outcome.table_id);
  });
});`

// render writes pre-escaped fragments in order.
func render(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// Page wraps body in the shared layout.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := render(w,
			`<!doctype html><html><head><meta charset="utf-8"><title>`, esc(title), ` · tablerag</title>`,
			`<style>`, pageStyle, `</style></head><body>`,
			`<nav><a href="/">Tables</a></nav><h1>`, esc(title), `</h1>`,
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		return render(w, `</body></html>`)
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := render(w, `<div class="alert" role="alert"><strong>`, esc(message), `</strong>`); err != nil {
			return err
		}
		if action != "" {
			if err := render(w, `<p>`, esc(action), `</p>`); err != nil {
				return err
			}
		}
		return render(w, `<p class="muted">Code: `, esc(code), `</p></div>`)
	})
}

// DashboardData is what the dashboard shows.
type DashboardData struct {
	Tables     []core.Table
	History    []core.HistoryEntry
	TablesErr  *core.UserMessage
	BackendURL string
}

// Dashboard renders the upload form, the table list and recent uploads.
func Dashboard(d DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := render(w,
			`<section><h2>Upload</h2><form id="upload" enctype="multipart/form-data">`,
			`<input type="file" name="file" accept=".csv,.tsv,.tab,.xlsx" required> `,
			`<input type="text" name="name" placeholder="Display name (optional)"> `,
			`<button type="submit">Upload</button></form><p id="upload-status" class="muted"></p></section>`,
		); err != nil {
			return err
		}

		if err := render(w, `<section><h2>Tables</h2>`); err != nil {
			return err
		}
		switch {
		case d.TablesErr != nil:
			if err := ErrorAlert(d.TablesErr.Message, d.TablesErr.Action, d.TablesErr.Code).Render(ctx, w); err != nil {
				return err
			}
		case len(d.Tables) == 0:
			if err := render(w, `<p class="muted">No tables yet.</p>`); err != nil {
				return err
			}
		default:
			if err := tableList(w, d.Tables); err != nil {
				return err
			}
		}
		if err := render(w, `</section>`); err != nil {
			return err
		}

		if len(d.History) > 0 {
			if err := historyList(w, d.History); err != nil {
				return err
			}
		}
		return render(w, `<p class="muted">Backend: `, esc(d.BackendURL), `</p><script>`, uploadScript, `</script>`)
	})
}

func tableList(w io.Writer, tables []core.Table) error {
	if err := render(w, `<table><tr><th>Name</th><th>File</th><th>Rows</th><th>Cols</th><th>Created</th></tr>`); err != nil {
		return err
	}
	for _, t := range tables {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Format("2006-01-02 15:04")
		}
		if err := render(w,
			`<tr><td><a href="/tables/`, esc(url.PathEscape(t.ID)), `">`, esc(t.Name), `</a></td>`,
			`<td>`, esc(t.OriginalFilename), `</td>`,
			`<td>`, strconv.Itoa(t.RowCount), `</td><td>`, strconv.Itoa(t.ColCount), `</td>`,
			`<td>`, esc(created), `</td></tr>`,
		); err != nil {
			return err
		}
	}
	return render(w, `</table>`)
}

func historyList(w io.Writer, entries []core.HistoryEntry) error {
	if err := render(w, `<section><h2>Recent uploads</h2><table><tr><th>Finished</th><th>Kind</th><th>Name</th><th>State</th><th>Message</th></tr>`); err != nil {
		return err
	}
	for _, e := range entries {
		if err := render(w,
			`<tr><td>`, esc(e.FinishedAt.Format("2006-01-02 15:04:05")), `</td>`,
			`<td>`, esc(e.Kind), `</td><td>`, esc(e.DisplayName), `</td>`,
			`<td>`, esc(e.State), `</td><td>`, esc(e.Message), `</td></tr>`,
		); err != nil {
			return err
		}
	}
	return render(w, `</table></section>`)
}

// SliceGrid renders a plain preview grid.
func SliceGrid(slice *core.Slice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if slice == nil || len(slice.Rows) == 0 {
			return render(w, `<p class="muted">No rows.</p>`)
		}
		if err := gridHeader(w, slice.Columns); err != nil {
			return err
		}
		for _, row := range slice.Rows {
			if err := render(w, `<tr><td class="idx">`, strconv.Itoa(row.Index), `</td>`); err != nil {
				return err
			}
			for _, col := range slice.Columns {
				if err := cell(w, row.CellString(col), rowHas(row, col), false); err != nil {
					return err
				}
			}
			if err := render(w, `</tr>`); err != nil {
				return err
			}
		}
		if err := render(w, `</table>`); err != nil {
			return err
		}
		if slice.RowCount > 0 {
			return render(w, `<p class="muted">Showing `, strconv.Itoa(len(slice.Rows)), ` of `, strconv.Itoa(slice.RowCount), ` rows.</p>`)
		}
		return nil
	})
}

// HighlightGrid renders a projected window with cited cells marked.
func HighlightGrid(p *core.Projection) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := render(w,
			`<p>Table <a href="/tables/`, esc(url.PathEscape(p.Highlight.TableID)), `">`, esc(p.Highlight.TableID), `</a>, `,
			`rows `, esc(p.Window.String()), `</p>`,
		); err != nil {
			return err
		}
		rows := p.View()
		if len(rows) == 0 {
			if err := render(w, `<p class="muted">The backend returned no rows for this window.</p>`); err != nil {
				return err
			}
			return unmatchedNote(w, p)
		}
		if err := gridHeader(w, p.Slice.Columns); err != nil {
			return err
		}
		for _, vr := range rows {
			class := ""
			if vr.Marked {
				class = ` class="cited"`
			}
			if err := render(w, `<tr`, class, `><td class="idx">`, strconv.Itoa(vr.Absolute), `</td>`); err != nil {
				return err
			}
			for _, c := range vr.Cells {
				if err := cell(w, c.Value, c.Present, c.Marked); err != nil {
					return err
				}
			}
			if err := render(w, `</tr>`); err != nil {
				return err
			}
		}
		if err := render(w, `</table>`); err != nil {
			return err
		}
		return unmatchedNote(w, p)
	})
}

func unmatchedNote(w io.Writer, p *core.Projection) error {
	if missing := p.Unmatched(); len(missing) > 0 {
		return render(w, `<p class="muted">`, esc(fmt.Sprintf("Cited rows not returned by the backend: %v", missing)), `</p>`)
	}
	return nil
}

func gridHeader(w io.Writer, columns []string) error {
	if err := render(w, `<table><tr><th>#</th>`); err != nil {
		return err
	}
	for _, col := range columns {
		if err := render(w, `<th>`, esc(col), `</th>`); err != nil {
			return err
		}
	}
	return render(w, `</tr>`)
}

func cell(w io.Writer, value string, present, marked bool) error {
	switch {
	case marked:
		return render(w, `<td class="mark">`, esc(value), `</td>`)
	case !present:
		return render(w, `<td class="absent"></td>`)
	default:
		return render(w, `<td>`, esc(value), `</td>`)
	}
}

func rowHas(r core.Row, col string) bool {
	_, ok := r.Cell(col)
	return ok
}
