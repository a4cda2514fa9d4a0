package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "empty file",
			err:      validationErr("file", "empty file"),
			wantCode: "VAL001",
		},
		{
			name:     "wrong extension",
			err:      validationErr("file", "only .txt files are allowed"),
			wantCode: "VAL002",
		},
		{
			name:     "blank separator",
			err:      validationErr("separator", "separator is required"),
			wantCode: "VAL003",
		},
		{
			name:     "invalid type",
			err:      validationErr("type", "invalid output type %q, want csv or excel", "pdf"),
			wantCode: "VAL004",
		},
		{
			name:     "other validation error falls back to form message",
			err:      validationErr("file", "no file provided"),
			wantCode: "VAL005",
		},
		{
			name:     "parse error",
			err:      parseErr(errors.New("delimiter is empty")),
			wantCode: "PARSE001",
		},
		{
			name:     "encoding error",
			err:      encodingErr(errors.New("bad bytes")),
			wantCode: "FILE003",
		},
		{
			name:     "io error wrapped further",
			err:      fmt.Errorf("handler: %w", ioErr("export csv", errors.New("broken pipe"))),
			wantCode: "IO001",
		},
		{
			name:     "rate limited",
			err:      ErrRateLimited,
			wantCode: "RATE001",
		},
		{
			name:     "limiter busy",
			err:      ErrTooManyConversions,
			wantCode: "UPL002",
		},
		{
			name:     "unclassified body too large",
			err:      errors.New("http: request body too large"),
			wantCode: "FILE001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
		{
			name:     "context cancelled is unknown",
			err:      context.Canceled,
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_SheetLimit(t *testing.T) {
	err := limitErr(errors.New("row 1 has 17001 fields, exceeds spreadsheet limit of 16384"))
	if got := MapError(err).Code; got != "PARSE002" {
		t.Errorf("MapError() code = %q, want PARSE002", got)
	}
}

func TestRateLimitAction(t *testing.T) {
	tests := []struct {
		capacity int
		window   time.Duration
		want     string
	}{
		{capacity: 5, window: time.Minute, want: "You can upload only 5 files per minute. Please wait."},
		{capacity: 10, window: time.Minute, want: "You can upload only 10 files per minute. Please wait."},
		{capacity: 1, window: 30 * time.Second, want: "You can upload only 1 file per 30 seconds. Please wait."},
		{capacity: 20, window: time.Hour, want: "You can upload only 20 files per 60 minutes. Please wait."},
		{capacity: 3, window: 1500 * time.Millisecond, want: "You can upload only 3 files per 1.5s. Please wait."},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := RateLimitAction(tt.capacity, tt.window); got != tt.want {
				t.Errorf("RateLimitAction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", encodingErr(errors.New("inner")))

	if got := KindOf(wrapped); got != KindEncoding {
		t.Errorf("KindOf() = %v, want %v", got, KindEncoding)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}
	if !errors.Is(wrapped, &Error{Kind: KindEncoding}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(wrapped, &Error{Kind: KindParse}) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := validationErr("separator", "separator is required")
	want := "validate: separator: separator is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
