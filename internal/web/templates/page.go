// Package templates renders the HTML pages of the converter.
//
// Pages are written in .templ files. The generated *_templ.go files are
// committed, so a plain go build needs no templ binary; run go generate
// after editing a .templ file.
package templates

//go:generate templ generate

import (
	"fmt"
	"strconv"
)

// SeparatorHint is a quick-select button under the separator input.
type SeparatorHint struct {
	Label string
	Value string // value put into the input, escape notation allowed
}

// DefaultHints are the separators offered on the upload page.
var DefaultHints = []SeparatorHint{
	{Label: "|", Value: "|"},
	{Label: ",", Value: ","},
	{Label: ";", Value: ";"},
	{Label: "Tab", Value: `\t`},
}

// IndexData is the upload page model.
type IndexData struct {
	MaxFileSize     int64
	RateCapacity    int
	RateWindow      string
	RateLimited     bool
	StrictFourField bool
	Hints           []SeparatorHint
}

func (d IndexData) hints() []SeparatorHint {
	if d.Hints == nil {
		return DefaultHints
	}
	return d.Hints
}

// limits is the line under the drop zone, e.g. "Max size 10 MB · 5 files per 1m0s".
func (d IndexData) limits() string {
	s := "Max size " + formatSize(d.MaxFileSize)
	if d.RateLimited {
		s += " · " + strconv.Itoa(d.RateCapacity) + " files per " + d.RateWindow
	}
	return s
}

func errorTitle(status int, message string) string {
	return strconv.Itoa(status) + " " + message
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%d MB", n/mb)
	}
	return fmt.Sprintf("%d KB", n/1024)
}
