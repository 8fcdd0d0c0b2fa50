// Package tabular prepares local spreadsheet files for upload. The table
// backend only ingests CSV, so other formats are converted client-side.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupported is returned for file types that cannot be converted.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrEmpty is returned for files without any content.
	ErrEmpty = errors.New("file is empty")
	// ErrNoHeader is returned when the first row has no column names.
	ErrNoHeader = errors.New("file has no header row")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".csv", ".tsv", ".tab", ".xlsx"}

// File is an upload-ready CSV document.
type File struct {
	Name   string   // original base name with a .csv extension
	Data   []byte   // UTF-8 CSV without BOM
	Header []string // column names from the first row
	Rows   int      // data rows, header excluded
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Prepare converts data to CSV based on the extension of name. Valid UTF-8
// CSV is passed through byte for byte apart from a leading BOM; everything
// else is re-encoded.
func Prepare(name string, data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		records, err = readDelimited(data, ',')
	case ".tsv", ".tab":
		records, err = readDelimited(data, '\t')
	case ".xlsx":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%s: %w %q (accepted: %s)", name, ErrUnsupported, ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	records = trimTrailingBlank(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	header := records[0]
	if !hasName(header) {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}

	out := bytes.TrimPrefix(data, utf8BOM)
	if strings.ToLower(filepath.Ext(name)) != ".csv" || !utf8.Valid(out) {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(records); err != nil {
			return nil, fmt.Errorf("%s: write csv: %w", name, err)
		}
		out = buf.Bytes()
	}

	base := filepath.Base(name)
	return &File{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)) + ".csv",
		Data:   out,
		Header: header,
		Rows:   len(records) - 1,
	}, nil
}

func readDelimited(data []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(NewCleanReader(bytes.NewReader(data)))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		records = append(records, rec)
	}
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	// GetRows trims trailing empty cells; pad to the header width so every
	// record has the same shape.
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows, nil
}

func trimTrailingBlank(records [][]string) [][]string {
	for len(records) > 0 && blank(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	return records
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func hasName(header []string) bool {
	return !blank(header)
}
