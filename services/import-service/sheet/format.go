package sheet

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
)

var extFormats = map[string]Format{
	".csv":  FormatCSV,
	".txt":  FormatCSV,
	".tsv":  FormatCSV,
	".xlsx": FormatXLSX,
	".xls":  FormatXLS,
}

// SupportedExtension reports whether name carries an extension the parser accepts.
func SupportedExtension(name string) bool {
	_, ok := extFormats[strings.ToLower(filepath.Ext(name))]
	return ok
}

// DetectFormat decides how to read an upload. The extension wins; content
// sniffing is used only when the name carries no extension.
func DetectFormat(name string, head []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	if ext != "" {
		return "", fmt.Errorf("%w: %q (expected .csv, .xlsx or .xls)", ErrUnsupportedFile, ext)
	}

	mt := mimetype.Detect(head)
	switch {
	case mt.Is(mimeXLSX):
		return FormatXLSX, nil
	case mt.Is(mimeXLS):
		return FormatXLS, nil
	case mt.Is("text/csv"), mt.Is("text/tab-separated-values"), mt.Is("text/plain"):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: detected %s (expected .csv, .xlsx or .xls)", ErrUnsupportedFile, mt.String())
}
