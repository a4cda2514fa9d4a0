package core

// extract.go turns loosely structured delimited text into a Table.
//
// The whole upload is treated as one blob. Records are found by pattern, not
// by line: a record is
//
//	<digits> SEP <text> SEP <text> SEP <digits>
//
// where <text> is one or more characters that do not appear in the
// delimiter. Matches are taken leftmost first and never overlap. Whatever
// precedes the first record becomes the header row if it contains the
// delimiter.
//
// Known limitations, kept on purpose because they define the output format:
//   - no quoting or escaping of delimiters inside fields
//   - only the four-field numeric/text/text/numeric shape is captured in
//     strict mode; other lines are dropped or swept into the header
//   - in strict mode <text> may span line breaks

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Row is one extracted record. Fields are positional.
type Row []string

// Table is the ordered result of one extraction. When HasHeader is set,
// Rows[0] is the text that preceded the first record.
type Table struct {
	Rows      []Row
	HasHeader bool
}

// Len returns the number of rows, header included.
func (t Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether no record was found.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Header returns the header row, if any.
func (t Table) Header() (Row, bool) {
	if !t.HasHeader || len(t.Rows) == 0 {
		return nil, false
	}
	return t.Rows[0], true
}

// Records returns the data rows without the header.
func (t Table) Records() []Row {
	if t.HasHeader && len(t.Rows) > 0 {
		return t.Rows[1:]
	}
	return t.Rows
}

// NormalizeDelimiter converts the escape notations \t, \n and \r into the
// characters they name. Any other input is returned unchanged, so applying
// it twice is the same as applying it once.
func NormalizeDelimiter(s string) string {
	switch s {
	case `\t`:
		return "\t"
	case `\n`:
		return "\n"
	case `\r`:
		return "\r"
	default:
		return s
	}
}

// Extractor finds records in uploaded text. The zero value is a strict
// four-field extractor.
type Extractor struct {
	// Lenient accepts one or more text fields between the numeric bounds.
	// Text fields may not span line breaks in this mode, otherwise a single
	// record would swallow every following line.
	Lenient bool
}

// NewExtractor returns an extractor; strict selects the four-field shape.
func NewExtractor(strict bool) *Extractor {
	return &Extractor{Lenient: !strict}
}

// Extract runs a strict extractor over content.
func Extract(content []byte, delimiter string) (Table, error) {
	return (&Extractor{}).Extract(content, delimiter)
}

// Extract parses content using delimiter as the field separator. The
// delimiter is used literally; callers normalize escape notation first.
func (x *Extractor) Extract(content []byte, delimiter string) (Table, error) {
	re, err := x.recordPattern(delimiter)
	if err != nil {
		return Table{}, err
	}

	if !utf8.Valid(content) {
		return Table{}, encodingErr(errors.New("encoding error: content is not valid UTF-8"))
	}
	decoded, err := unicode.UTF8BOM.NewDecoder().Bytes(content)
	if err != nil {
		return Table{}, encodingErr(fmt.Errorf("encoding error: %w", err))
	}
	text := string(decoded)

	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return Table{}, nil
	}

	table := Table{Rows: make([]Row, 0, len(matches)+1)}

	leading := strings.TrimSpace(text[:matches[0][0]])
	if strings.Contains(leading, delimiter) {
		table.Rows = append(table.Rows, splitFields(leading, delimiter))
		table.HasHeader = true
	}

	for _, m := range matches {
		table.Rows = append(table.Rows, splitFields(text[m[0]:m[1]], delimiter))
	}
	return table, nil
}

// recordPattern compiles the record expression for delimiter.
func (x *Extractor) recordPattern(delimiter string) (*regexp.Regexp, error) {
	if delimiter == "" {
		return nil, parseErr(errors.New("delimiter is empty"))
	}
	if !utf8.ValidString(delimiter) {
		return nil, parseErr(errors.New("delimiter is not valid UTF-8"))
	}

	sep := regexp.QuoteMeta(delimiter)
	field := fieldClass(delimiter, x.Lenient) + "+"

	var expr string
	if x.Lenient {
		expr = `\d+(?:` + sep + field + `)+` + sep + `\d+`
	} else {
		expr = `\d+` + sep + field + sep + field + sep + `\d+`
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, parseErr(fmt.Errorf("compile record pattern: %w", err))
	}
	return re, nil
}

// fieldClass builds a negated character class of every rune in delimiter.
// Runes are written as \x{...} so no delimiter can break out of the class.
func fieldClass(delimiter string, noLineBreaks bool) string {
	var b strings.Builder
	b.WriteString("[^")
	seen := make(map[rune]bool, len(delimiter))
	for _, r := range delimiter {
		if seen[r] {
			continue
		}
		seen[r] = true
		fmt.Fprintf(&b, `\x{%x}`, r)
	}
	if noLineBreaks {
		b.WriteString(`\r\n`)
	}
	b.WriteString("]")
	return b.String()
}

// splitFields splits s on the literal delimiter and drops trailing empty
// fields, so "a|b||" yields [a b].
func splitFields(s, delimiter string) Row {
	fields := strings.Split(s, delimiter)
	n := len(fields)
	for n > 0 && fields[n-1] == "" {
		n--
	}
	return Row(fields[:n])
}
