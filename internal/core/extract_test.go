package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `\t`, want: "\t"},
		{in: `\n`, want: "\n"},
		{in: `\r`, want: "\r"},
		{in: "|", want: "|"},
		{in: "\t", want: "\t"},
		{in: `\t\t`, want: `\t\t`},
		{in: "", want: ""},
		{in: `\\t`, want: `\\t`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeDelimiter(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeDelimiter(got), "normalization must be idempotent")
		})
	}
}

func TestExtract_HeaderAndRecords(t *testing.T) {
	input := "ID,Name,City,Salary\n1,Alice,NYC,5000\n2,Bob,LA,6000"

	table, err := Extract([]byte(input), ",")
	require.NoError(t, err)

	require.Equal(t, 3, table.Len())
	assert.True(t, table.HasHeader)

	header, ok := table.Header()
	require.True(t, ok)
	assert.Equal(t, Row{"ID", "Name", "City", "Salary"}, header)
	assert.Equal(t, []Row{
		{"1", "Alice", "NYC", "5000"},
		{"2", "Bob", "LA", "6000"},
	}, table.Records())
}

func TestExtract_PipeDelimitedWithoutNewlines(t *testing.T) {
	// Records are found by pattern, so they do not need to be on their own lines.
	input := "ID|Name|City|Salary 1|Alice|NYC|5000 2|Bob|LA|6000"

	table, err := Extract([]byte(input), "|")
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{"ID", "Name", "City", "Salary"},
		{"1", "Alice", "NYC", "5000"},
		{"2", "Bob", "LA", "6000"},
	}, table.Rows)
}

func TestExtract_TabDelimiterFromEscape(t *testing.T) {
	input := "ID\tName\tCity\tSalary\n1\tAlice\tNYC\t5000\n"

	table, err := Extract([]byte(input), NormalizeDelimiter(`\t`))
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{"ID", "Name", "City", "Salary"},
		{"1", "Alice", "NYC", "5000"},
	}, table.Rows)
}

func TestExtract_NoMatchYieldsEmptyTable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "header only", input: "ID,Name,City,Salary"},
		{name: "three fields", input: "1,Alice,5000\n2,Bob,6000"},
		{name: "non numeric bounds", input: "a,Alice,NYC,b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Extract([]byte(tt.input), ",")
			require.NoError(t, err)
			assert.True(t, table.Empty())
			assert.False(t, table.HasHeader)
		})
	}
}

func TestExtract_LeadingTextWithoutDelimiterIsNotHeader(t *testing.T) {
	input := "Employee report\n1|Alice|NYC|5000"

	table, err := Extract([]byte(input), "|")
	require.NoError(t, err)

	assert.False(t, table.HasHeader)
	assert.Equal(t, []Row{{"1", "Alice", "NYC", "5000"}}, table.Rows)
}

func TestExtract_HeaderKeptRegardlessOfShape(t *testing.T) {
	input := "  a,b  \n1,x,y,2"

	table, err := Extract([]byte(input), ",")
	require.NoError(t, err)

	require.True(t, table.HasHeader)
	assert.Equal(t, Row{"a", "b"}, table.Rows[0])
}

func TestExtract_ExtraFieldsAreNotCaptured(t *testing.T) {
	// A five-field line never matches; it only survives as the header because
	// it happens to precede the first record.
	input := "1,a,b,c,2\n3,x,y,4"

	table, err := Extract([]byte(input), ",")
	require.NoError(t, err)

	assert.Equal(t, []Row{{"3", "x", "y", "4"}}, table.Records())
	header, ok := table.Header()
	require.True(t, ok)
	assert.Equal(t, Row{"1", "a", "b", "c", "2"}, header)
}

func TestExtract_RegexMetacharactersAreLiteral(t *testing.T) {
	delimiters := []string{".", "*", "+", "?", "(", ")", "[", "]", "^", "$", "\\", "{", "}", "-", "||", ".*"}

	for _, d := range delimiters {
		t.Run(d, func(t *testing.T) {
			var b bytes.Buffer
			b.WriteString("A" + d + "B" + d + "C" + d + "D\n")
			b.WriteString("1" + d + "Alice" + d + "NYC" + d + "5000\n")

			table, err := Extract(b.Bytes(), d)
			require.NoError(t, err)
			require.Equal(t, 2, table.Len(), "rows: %q", table.Rows)
			assert.Equal(t, Row{"1", "Alice", "NYC", "5000"}, table.Rows[1])
			assert.Equal(t, Row{"A", "B", "C", "D"}, table.Rows[0])
		})
	}
}

func TestExtract_EmptyDelimiterIsParseError(t *testing.T) {
	_, err := Extract([]byte("1,a,b,2"), "")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func TestExtract_InvalidUTF8IsEncodingError(t *testing.T) {
	_, err := Extract([]byte{'1', ',', 0xff, 0xfe, ',', 'b', ',', '2'}, ",")
	require.Error(t, err)
	assert.Equal(t, KindEncoding, KindOf(err))
}

func TestExtract_StripsByteOrderMark(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ID,Name,City,Salary\n1,Alice,NYC,5000")...)

	table, err := Extract(input, ",")
	require.NoError(t, err)
	assert.Equal(t, "ID", table.Rows[0][0])
}

func TestExtract_TrailingEmptyHeaderFieldsDropped(t *testing.T) {
	table, err := Extract([]byte("A|B||\n1|x|y|2"), "|")
	require.NoError(t, err)
	assert.Equal(t, Row{"A", "B"}, table.Rows[0])
}

func TestExtract_LenientMode(t *testing.T) {
	input := "ID,Name,Dept,City,Salary\n1,Alice,Eng,NYC,5000\n2,Bob,LA,6000\n3,Carol,7000"

	table, err := NewExtractor(false).Extract([]byte(input), ",")
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{"ID", "Name", "Dept", "City", "Salary"},
		{"1", "Alice", "Eng", "NYC", "5000"},
		{"2", "Bob", "LA", "6000"},
		{"3", "Carol", "7000"},
	}, table.Rows)
}

func TestExtract_RoundTripThroughDelimitedExport(t *testing.T) {
	input := "ID,Name,City,Salary\n1,Alice,NYC,5000\n2,Bob,LA,6000\n"

	original, err := Extract([]byte(input), ",")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Export(original, FormatDelimited, &out))

	again, err := Extract(out.Bytes(), ",")
	require.NoError(t, err)
	assert.Equal(t, original, again)
}
