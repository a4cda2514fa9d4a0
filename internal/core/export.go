package core

// export.go serializes a Table into one of the supported output formats.
//
// Delimited output joins fields with a comma and performs no quoting: a
// field that contains a comma produces a line with extra columns. This is
// the established output format and consumers depend on it.
//
// Spreadsheets are assembled in memory by Build and checked against the xlsx
// row, column and cell-length limits, so an oversized table is rejected
// before a response is committed.

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format selects the serialization written by Export.
type Format string

const (
	FormatDelimited   Format = "csv"
	FormatSpreadsheet Format = "excel"
)

// SheetName is the name of the single worksheet in spreadsheet output.
const SheetName = "Data"

// ParseFormat maps the request's type field onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDelimited, FormatSpreadsheet:
		return Format(s), nil
	}
	return "", validationErr("type", "invalid output type %q, want csv or excel", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatSpreadsheet {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension of the format, without the dot.
func (f Format) Extension() string {
	if f == FormatSpreadsheet {
		return "xlsx"
	}
	return "csv"
}

// Output is a table serialized far enough that only writing it to a sink
// can still fail.
type Output interface {
	io.WriterTo
	Close() error
}

// Build prepares table for writing in the given format. Every failure that
// does not come from the sink happens here, before any byte is written.
func Build(table Table, format Format) (Output, error) {
	switch format {
	case FormatDelimited:
		return delimitedOutput{table: table}, nil
	case FormatSpreadsheet:
		return buildSpreadsheet(table)
	default:
		return nil, validationErr("type", "invalid output type %q", string(format))
	}
}

// Export builds table and writes it to w. Write failures are reported as
// KindIO; bytes already written are not retracted.
func Export(table Table, format Format, w io.Writer) error {
	out, err := Build(table, format)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = out.WriteTo(w)
	return err
}

type delimitedOutput struct {
	table Table
}

func (o delimitedOutput) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, row := range o.table.Rows {
		line := strings.Join(row, ",")
		if _, err := bw.WriteString(line); err != nil {
			return n, ioErr("export csv", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, ioErr("export csv", err)
		}
		n += int64(len(line)) + 1
	}
	if err := bw.Flush(); err != nil {
		return n, ioErr("export csv", err)
	}
	return n, nil
}

func (delimitedOutput) Close() error { return nil }

type spreadsheetOutput struct {
	f *excelize.File
}

func (o spreadsheetOutput) WriteTo(w io.Writer) (int64, error) {
	n, err := o.f.WriteTo(w)
	if err != nil {
		return n, ioErr("export excel", err)
	}
	return n, nil
}

func (o spreadsheetOutput) Close() error {
	return o.f.Close()
}

// checkSheetLimits rejects tables the xlsx format cannot hold. excelize
// would otherwise fail mid-build on rows and columns and silently truncate
// long cells.
func checkSheetLimits(table Table) error {
	if len(table.Rows) > excelize.TotalRows {
		return limitErr(fmt.Errorf("%d rows exceeds spreadsheet limit of %d", len(table.Rows), excelize.TotalRows))
	}
	for r, row := range table.Rows {
		if len(row) > excelize.MaxColumns {
			return limitErr(fmt.Errorf("row %d has %d fields, exceeds spreadsheet limit of %d",
				r+1, len(row), excelize.MaxColumns))
		}
		for c, value := range row {
			if n := utf16Len(value); n > excelize.TotalCellChars {
				return limitErr(fmt.Errorf("row %d field %d has %d characters, exceeds spreadsheet limit of %d",
					r+1, c+1, n, excelize.TotalCellChars))
			}
		}
	}
	return nil
}

// utf16Len counts UTF-16 code units, the unit of the xlsx cell limit. The
// byte length is an upper bound, so short strings skip the scan.
func utf16Len(s string) int {
	if len(s) <= excelize.TotalCellChars {
		return len(s)
	}
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2 // surrogate pair
		} else {
			n++
		}
	}
	return n
}

func buildSpreadsheet(table Table) (_ Output, err error) {
	if err := checkSheetLimits(table); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("export excel: rename sheet: %w", err)
	}

	for r, row := range table.Rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("export excel: %w", err)
			}
			// SetCellStr keeps numeric-looking fields as text.
			if err := f.SetCellStr(SheetName, cell, value); err != nil {
				return nil, fmt.Errorf("export excel: set %s: %w", cell, err)
			}
		}
	}
	return spreadsheetOutput{f: f}, nil
}
