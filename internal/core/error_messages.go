package core

// error_messages.go maps conversion errors to user-facing messages with
// support codes.
//
// # Error Codes Reference
//
// Validation (VAL001-VAL099), request parameters:
//
//	VAL001 - Empty file: The uploaded file is empty
//	VAL002 - Wrong extension: Only .txt files can be converted
//	VAL003 - Missing separator: A separator is required
//	VAL004 - Invalid type: Output type must be csv or excel
//	VAL005 - Invalid upload: The upload form could not be read
//
// Parsing and encoding:
//
//	PARSE001 - Invalid separator: The separator cannot be used to split records
//	PARSE002 - Sheet limit: The table does not fit in a spreadsheet
//	FILE001  - File too large: File exceeds the maximum upload size
//	FILE003  - Encoding error: File is not UTF-8 text
//
// Output and throttling:
//
//	IO001   - Write failed: The converted file could not be sent
//	UPL002  - System busy: Too many conversions in progress
//	RATE001 - Rate limited: Too many conversions from this client
//
// Fallback:
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Matching
//
// Classified errors (*Error) are matched on Kind first and then on message
// patterns within that kind. Unclassified errors fall through to the plain
// pattern table, matched case-insensitively with strings.Contains; the first
// match wins.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a .txt file with data rows",
		Code:    "VAL001",
	}
	msgExtension = UserMessage{
		Message: "Only .txt files can be converted",
		Action:  "Save the file with a .txt extension and upload it again",
		Code:    "VAL002",
	}
	msgSeparator = UserMessage{
		Message: "A separator is required",
		Action:  "Enter the character that separates fields, e.g. | or \\t",
		Code:    "VAL003",
	}
	msgType = UserMessage{
		Message: "Output type must be csv or excel",
		Action:  "Choose CSV or Excel as the output format",
		Code:    "VAL004",
	}
	msgForm = UserMessage{
		Message: "The upload form could not be read",
		Action:  "Select a file and submit the form again",
		Code:    "VAL005",
	}
	msgParse = UserMessage{
		Message: "The separator cannot be used to split records",
		Action:  "Use a non-empty separator that appears between fields",
		Code:    "PARSE001",
	}
	msgSheetLimit = UserMessage{
		Message: "The table does not fit in a spreadsheet",
		Action:  "Convert to CSV instead, or split the file",
		Code:    "PARSE002",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8 text",
		Code:    "FILE003",
	}
	msgIO = UserMessage{
		Message: "The converted file could not be sent",
		Action:  "Please try again",
		Code:    "IO001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "You can upload only 5 files per minute. Please wait.",
		Code:    "RATE001",
	}
)

// validationPatterns refine KindValidation errors by message.
var validationPatterns = []errorPattern{
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "files are allowed", msg: msgExtension},
	{pattern: "separator is required", msg: msgSeparator},
	{pattern: "invalid output type", msg: msgType},
	{pattern: "file too large", msg: msgTooLarge},
}

// errorPatterns cover errors that were never classified.
var errorPatterns = []errorPattern{
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "encoding error", msg: msgEncoding},
	{pattern: "too many concurrent conversions", msg: msgBusy},
	{pattern: "rate limit", msg: msgRateLimited},
	{pattern: "multipart", msg: msgForm},
	{pattern: "no file provided", msg: msgForm},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	switch KindOf(err) {
	case KindValidation:
		if msg, ok := matchPattern(errStr, validationPatterns); ok {
			return msg
		}
		return msgForm
	case KindParse:
		if strings.Contains(errStr, "spreadsheet limit") {
			return msgSheetLimit
		}
		return msgParse
	case KindEncoding:
		return msgEncoding
	case KindIO:
		return msgIO
	case KindRateLimited:
		return msgRateLimited
	}

	if errors.Is(err, ErrTooManyConversions) {
		return msgBusy
	}
	if msg, ok := matchPattern(errStr, errorPatterns); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(errStr string, patterns []errorPattern) (UserMessage, bool) {
	for _, ep := range patterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// RateLimitAction is the RATE001 action text for a bucket shape. The
// default shape keeps the established wording; other shapes name their own
// numbers.
func RateLimitAction(capacity int, window time.Duration) string {
	if capacity == 5 && window == time.Minute {
		return msgRateLimited.Action
	}

	files := "files"
	if capacity == 1 {
		files = "file"
	}

	var per string
	switch {
	case window == time.Minute:
		per = "minute"
	case window%time.Minute == 0:
		per = fmt.Sprintf("%d minutes", int(window/time.Minute))
	case window == time.Second:
		per = "second"
	case window%time.Second == 0:
		per = fmt.Sprintf("%d seconds", int(window/time.Second))
	default:
		per = window.String()
	}
	return fmt.Sprintf("You can upload only %d %s per %s. Please wait.", capacity, files, per)
}
