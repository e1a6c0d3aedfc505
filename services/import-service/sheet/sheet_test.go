package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV_QuotedFieldsAndBlankLines(t *testing.T) {
	input := "Type,Activities,Unit\r\n" +
		"heading,\"Foundation, East\",\n" +
		"\n" +
		",,\n" +
		"activites,\"Excavation \"\"deep\"\"\",Cum\n" +
		"activites,\"Multi\nline\",Sqm"

	table := ParseCSV([]byte(input))

	require.Len(t, table, 4)
	assert.Equal(t, []string{"Type", "Activities", "Unit"}, table.Header())
	assert.Equal(t, "Foundation, East", table[1][1])
	assert.Equal(t, `Excavation "deep"`, table[2][1])
	assert.Equal(t, "Multi\nline", table[3][1])
	assert.Equal(t, "Sqm", table[3][2])
}

func TestParseCSV_TabDelimited(t *testing.T) {
	input := "name\ttype\tphone\nRavi\tskilled\t98400\n"

	table := ParseCSV([]byte(input))

	require.Len(t, table, 2)
	assert.Equal(t, []string{"Ravi", "skilled", "98400"}, table[1])
}

func TestParseCSV_BOMAndPadding(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b,c\n1\n")...)

	table := ParseCSV(input)

	require.Len(t, table, 2)
	assert.Equal(t, "a", table[0][0])
	assert.Len(t, table[1], 3)
	assert.Equal(t, "", Cell(table[1], 2))
	assert.Equal(t, "", Cell(table[1], 9))
	assert.Equal(t, "", Cell(table[1], -1))
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		want Format
	}{
		{"upload.csv", FormatCSV},
		{"UPLOAD.CSV", FormatCSV},
		{"labours.xlsx", FormatXLSX},
		{"legacy.xls", FormatXLS},
	}
	for _, tc := range cases {
		got, err := DetectFormat(tc.name, nil)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}

	_, err := DetectFormat("report.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
	assert.Contains(t, err.Error(), ".pdf")
}

func TestDetectFormat_SniffsWhenNoExtension(t *testing.T) {
	got, err := DetectFormat("upload", []byte("type,activities\nheading,Foundation\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, got)
}

func TestParse_XLSXRoundTrip(t *testing.T) {
	src := Table{
		{"Type", "SL No", "Activities"},
		{"heading", "1", "Foundation"},
		{"activites", "1.1", "Excavation"},
	}
	data, err := WriteXLSX(src, "Activities")
	require.NoError(t, err)

	got, err := Parse("template.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestParse_XLSXDateCellsAreSerials(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Type", "SL No", "Activities", "Start Date", "End Date", "Rate"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{
		"heading", "1", "Foundation",
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		1200.5,
	}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := Parse("boq.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"heading", "1", "Foundation", "45689", "45698", "1200.5"}, got[1])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("notes.docx", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = Parse("broken.xlsx", strings.NewReader("not a zip"))
	assert.ErrorIs(t, err, ErrFileRead)

	_, err = Parse("empty.csv", strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestWriteCSV(t *testing.T) {
	out, err := WriteCSV(Table{{"name", "type"}, {"Ravi, Jr", "skilled"}})
	require.NoError(t, err)
	assert.Equal(t, "name,type\n\"Ravi, Jr\",skilled\n", string(out))

	back := ParseCSV(out)
	assert.Equal(t, "Ravi, Jr", back[1][0])
}
