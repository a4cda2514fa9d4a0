package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sampleTable = Table{
	HasHeader: true,
	Rows: []Row{
		{"ID", "Name", "City", "Salary"},
		{"1", "Alice", "NYC", "5000"},
		{"2", "Bob", "LA", "6000"},
	},
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatDelimited, f)
	assert.Equal(t, "text/csv", f.ContentType())
	assert.Equal(t, "csv", f.Extension())

	f, err = ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, FormatSpreadsheet, f)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", f.ContentType())
	assert.Equal(t, "xlsx", f.Extension())

	_, err = ParseFormat("xlsx")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestExport_Delimited(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(sampleTable, FormatDelimited, &buf))

	assert.Equal(t, "ID,Name,City,Salary\n1,Alice,NYC,5000\n2,Bob,LA,6000\n", buf.String())
}

func TestExport_DelimitedDoesNotQuote(t *testing.T) {
	table := Table{Rows: []Row{{"1", "Smith, J", "NYC", "5"}}}

	var buf bytes.Buffer
	require.NoError(t, Export(table, FormatDelimited, &buf))
	assert.Equal(t, "1,Smith, J,NYC,5\n", buf.String())
}

func TestExport_DelimitedEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(Table{}, FormatDelimited, &buf))
	assert.Zero(t, buf.Len())
}

func TestExport_WriteFailureIsIOError(t *testing.T) {
	for _, format := range []Format{FormatDelimited, FormatSpreadsheet} {
		t.Run(string(format), func(t *testing.T) {
			err := Export(sampleTable, format, failingWriter{})
			require.Error(t, err)
			assert.Equal(t, KindIO, KindOf(err))
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	err := Export(sampleTable, Format("pdf"), &bytes.Buffer{})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestExport_Spreadsheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(sampleTable, FormatSpreadsheet, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Name", "City", "Salary"},
		{"1", "Alice", "NYC", "5000"},
		{"2", "Bob", "LA", "6000"},
	}, rows)

	// Numeric-looking fields stay text.
	typ, err := f.GetCellType(SheetName, "D2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ)
}

func TestExport_SpreadsheetEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(Table{}, FormatSpreadsheet, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBuild_SpreadsheetLimits(t *testing.T) {
	wide := make(Row, excelize.MaxColumns+1)
	for i := range wide {
		wide[i] = "c"
	}

	tests := []struct {
		name  string
		table Table
	}{
		{name: "too many columns", table: Table{Rows: []Row{wide, {"1", "a", "b", "2"}}}},
		{name: "cell too long", table: Table{Rows: []Row{{"1", strings.Repeat("x", excelize.TotalCellChars+1), "b", "2"}}}},
		{name: "cell too long in utf16 units", table: Table{Rows: []Row{{strings.Repeat("\U0001F600", excelize.TotalCellChars/2+1)}}}},
		{name: "too many rows", table: Table{Rows: make([]Row, excelize.TotalRows+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Build(tt.table, FormatSpreadsheet)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, KindParse, KindOf(err))
			assert.Contains(t, err.Error(), "spreadsheet limit")
		})
	}
}

func TestBuild_SpreadsheetCellAtLimitIsKept(t *testing.T) {
	long := strings.Repeat("x", excelize.TotalCellChars)
	table := Table{Rows: []Row{{"1", long, "b", "2"}}}

	var buf bytes.Buffer
	require.NoError(t, Export(table, FormatSpreadsheet, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(SheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestBuild_DelimitedHasNoSheetLimits(t *testing.T) {
	wide := make(Row, excelize.MaxColumns+1)
	for i := range wide {
		wide[i] = "c"
	}

	out, err := Build(Table{Rows: []Row{wide}}, FormatDelimited)
	require.NoError(t, err)
	defer out.Close()

	var buf bytes.Buffer
	n, err := out.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
}
