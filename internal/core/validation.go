package core

// validation.go checks conversion requests before any parsing happens.
//
// Validation is fail-fast: the first problem found is returned as a
// KindValidation *Error naming the offending field.

import (
	"path/filepath"
	"strings"
)

// AllowedExtension is the only upload extension accepted for conversion.
const AllowedExtension = ".txt"

// ConvertRequest carries one upload to convert.
type ConvertRequest struct {
	FileName  string
	Content   []byte
	Separator string // raw form value, escape notation allowed
	Type      string // "csv" or "excel"
	ClientID  string
}

// Validate checks the request and returns the parsed output format.
func (r ConvertRequest) Validate() (Format, error) {
	if len(r.Content) == 0 {
		return "", validationErr("file", "empty file")
	}
	if !strings.HasSuffix(strings.ToLower(r.FileName), AllowedExtension) {
		return "", validationErr("file", "only %s files are allowed", AllowedExtension)
	}
	if strings.TrimSpace(r.Separator) == "" {
		return "", validationErr("separator", "separator is required")
	}
	return ParseFormat(r.Type)
}

// OutputName returns the download name for the converted file: the upload
// name with its extension replaced.
func (r ConvertRequest) OutputName(f Format) string {
	base := filepath.Base(r.FileName)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + "." + f.Extension()
}
