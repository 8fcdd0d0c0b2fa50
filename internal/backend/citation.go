package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/tablerag/internal/core"
)

// highlightResponse is the stored highlight. Evidence entries are the
// citations produced by a query, each with a rectangular range and the
// individual cells it was built from.
type highlightResponse struct {
	HighlightID string         `json:"highlight_id"`
	TableID     string         `json:"table_id"`
	Rows        []any          `json:"rows"`
	Cols        []any          `json:"cols"`
	Evidence    []evidenceItem `json:"evidence"`
}

type evidenceItem struct {
	TableID string `json:"table_id"`
	Range   struct {
		Rows []any `json:"rows"`
		Cols []any `json:"cols"`
	} `json:"range"`
	Cells []struct {
		Row any `json:"row"`
		Col any `json:"col"`
	} `json:"evidence"`
}

// GetCitation resolves a highlight into a citation. Rows and columns are
// the union over all evidence entries; the top-level rows and cols are used
// only when there is no evidence. Anything that is not a non-negative
// integer row or a string column is InvalidCitation.
func (c *Client) GetCitation(ctx context.Context, highlightID string) (*core.Citation, error) {
	var resp highlightResponse
	err := c.call(ctx, request{
		op:     "get citation",
		method: http.MethodGet,
		path:   "/highlights/" + url.PathEscape(highlightID),
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.validated(highlightID)
}

// validated builds, checks and normalizes the citation.
func (h highlightResponse) validated(highlightID string) (*core.Citation, error) {
	cit, err := h.citation()
	if err != nil {
		return nil, err
	}
	if cit.HighlightID == "" {
		cit.HighlightID = highlightID
	}
	if err := cit.Validate(); err != nil {
		return nil, err
	}
	n := cit.Normalized()
	return &n, nil
}

func (h highlightResponse) citation() (core.Citation, error) {
	cit := core.Citation{HighlightID: h.HighlightID, TableID: h.TableID}
	var rows, cols []any

	if len(h.Evidence) == 0 {
		rows, cols = h.Rows, h.Cols
	}
	for _, ev := range h.Evidence {
		if cit.TableID == "" {
			cit.TableID = ev.TableID
		}
		rows = append(rows, ev.Range.Rows...)
		cols = append(cols, ev.Range.Cols...)
		for _, cell := range ev.Cells {
			if cell.Row != nil {
				rows = append(rows, cell.Row)
			}
			if cell.Col != nil {
				cols = append(cols, cell.Col)
			}
		}
	}

	for _, v := range rows {
		r, err := rowIndex(v)
		if err != nil {
			return core.Citation{}, err
		}
		cit.Rows = append(cit.Rows, r)
	}
	for _, v := range cols {
		s, ok := v.(string)
		if !ok {
			return core.Citation{}, core.NewError(core.KindInvalidCitation, "get citation", fmt.Sprintf("column %v is not a name", v), nil)
		}
		cit.Cols = append(cit.Cols, s)
	}
	return cit, nil
}

func rowIndex(v any) (int, error) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, core.NewError(core.KindInvalidCitation, "get citation", fmt.Sprintf("row %v is not a row index", v), nil)
	}
	return int(f), nil
}

// ParseCitation decodes a saved highlight body with the same rules as
// GetCitation.
func ParseCitation(data []byte) (*core.Citation, error) {
	var resp highlightResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, core.NewError(core.KindInvalidCitation, "parse citation", "malformed highlight", err)
	}
	return resp.validated("")
}
