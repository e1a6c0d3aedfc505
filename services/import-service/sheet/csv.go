package sheet

import (
	"bytes"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// detectDelimiter picks tab when the header line is tab separated and has no commas.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.IndexByte(line, '\t') >= 0 && bytes.IndexByte(line, ',') < 0 {
		return '\t'
	}
	return ','
}

// ParseCSV scans comma- or tab-separated text. Quoted fields may contain the
// delimiter, newlines and doubled quotes. Blank lines are dropped.
func ParseCSV(data []byte) Table {
	data = bytes.TrimPrefix(data, utf8BOM)
	delim := detectDelimiter(data)
	src := []rune(string(data))

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		touched  bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
		touched = false
	}
	endRow := func() {
		endField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(src); i++ {
		ch := src[i]
		if inQuotes {
			if ch == '"' {
				if i+1 < len(src) && src[i+1] == '"' {
					field.WriteRune('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			field.WriteRune(ch)
			continue
		}

		switch {
		case ch == '"' && !touched && field.Len() == 0:
			inQuotes = true
			touched = true
		case ch == delim:
			endField()
		case ch == '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			endRow()
		case ch == '\n':
			endRow()
		default:
			field.WriteRune(ch)
			touched = true
		}
	}
	if touched || field.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return normalize(rows)
}
