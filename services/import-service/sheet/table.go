// Package sheet turns uploaded CSV and Excel files into rows of strings.
package sheet

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedFile is returned before any row is read when the upload is not CSV/XLSX/XLS.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrFileRead wraps any failure to read or decode the upload.
	ErrFileRead = errors.New("failed to read file")
	// ErrEmptyFile means the upload has no header row.
	ErrEmptyFile = errors.New("file has no header row")
)

// Table is a rectangular sheet; row 0 holds the headers.
type Table [][]string

// Header returns the header row.
func (t Table) Header() []string {
	if len(t) == 0 {
		return nil
	}
	return t[0]
}

// DataRows returns every row after the header.
func (t Table) DataRows() [][]string {
	if len(t) < 2 {
		return nil
	}
	return t[1:]
}

// Cell returns the trimmed value at idx, or "" when idx is absent or out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalize drops blank rows and pads every row to the widest row so index access is safe.
func normalize(rows [][]string) Table {
	out := make(Table, 0, len(rows))
	width := 0
	for _, r := range rows {
		if blankRow(r) {
			continue
		}
		if len(r) > width {
			width = len(r)
		}
		out = append(out, r)
	}
	for i, r := range out {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			out[i] = padded
		}
	}
	return out
}
