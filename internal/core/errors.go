package core

// errors.go defines the error taxonomy shared by the conversion pipeline.
//
// Every failure that leaves this package is a *Error carrying a Kind. The web
// layer maps kinds to HTTP status codes; MapError maps them to user-facing
// messages with support codes.

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate here.
	KindUnknown Kind = iota

	// KindValidation: missing or malformed upload parameters.
	KindValidation

	// KindParse: the delimiter could not be turned into a record pattern,
	// or the extracted table does not fit the output format.
	KindParse

	// KindEncoding: the upload is not valid UTF-8 text.
	KindEncoding

	// KindIO: writing to the output sink failed.
	KindIO

	// KindRateLimited: the client exhausted its conversion budget.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is a classified conversion error.
type Error struct {
	Kind  Kind
	Op    string // operation that failed, e.g. "extract"
	Field string // offending request field, validation only
	Err   error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Err != nil && e.Field != "":
		msg = fmt.Sprintf("%s: %v", e.Field, e.Err)
	case e.Err != nil:
		msg = e.Err.Error()
	default:
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same kind, so callers can
// write errors.Is(err, &core.Error{Kind: core.KindParse}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// ValidationError classifies a request problem found before Validate can
// run, such as an unreadable upload form.
func ValidationError(field string, err error) error {
	return &Error{Kind: KindValidation, Op: "upload", Field: field, Err: err}
}

func validationErr(field, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: "validate", Field: field, Err: fmt.Errorf(format, args...)}
}

func parseErr(err error) error {
	return &Error{Kind: KindParse, Op: "extract", Err: err}
}

func limitErr(err error) error {
	return &Error{Kind: KindParse, Op: "export excel", Err: err}
}

func encodingErr(err error) error {
	return &Error{Kind: KindEncoding, Op: "extract", Err: err}
}

func ioErr(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// ErrRateLimited is returned when a client has no tokens left.
var ErrRateLimited = &Error{Kind: KindRateLimited, Op: "throttle", Err: errors.New("rate limit exceeded")}
