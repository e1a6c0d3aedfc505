package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

const sniffLen = 3072

// Parse reads an upload, picks the reader by extension (or content), and
// returns a table whose first row is the header.
func Parse(name string, r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	format, err := DetectFormat(name, head)
	if err != nil {
		return nil, err
	}

	var t Table
	switch format {
	case FormatCSV:
		t = ParseCSV(data)
	case FormatXLSX:
		t, err = ReadXLSX(bytes.NewReader(data))
	case FormatXLS:
		t, err = ReadXLS(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, ErrEmptyFile
	}
	return t, nil
}

// WriteCSV renders a table as comma separated text.
func WriteCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
