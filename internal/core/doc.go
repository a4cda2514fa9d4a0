// Package core provides the business logic for text-to-table conversion.
//
// This package contains all conversion logic independent of the HTTP layer.
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
//   - Extraction: [Extractor] finds numeric-bounded records in delimited text
//     and returns a [Table]. The text before the first record becomes the
//     header row when it contains the delimiter.
//   - Export: [Build] prepares a Table as comma-joined lines or as a
//     single-sheet spreadsheet; [Export] builds and writes in one call.
//   - Service: [Service] validates a [ConvertRequest], bounds concurrency with
//     a [ConversionLimiter], and records each finished conversion in a
//     [HistoryStore].
//
// # Conversion flow
//
//  1. Handler builds a ConvertRequest from the multipart upload
//  2. [Service.Prepare] validates it, takes a slot, extracts the table and
//     builds the output with [Build]
//  3. Handler sets response headers from the returned [Conversion]
//  4. [Service.Export] streams the output and records the conversion
//
// Only sink write failures can happen after step 3.
//
// # Error Handling
//
// Failures are returned as [*Error] with a [Kind] (validation, parse,
// encoding, io, rate limited). [MapError] turns any error into a
// [UserMessage] with a support code.
package core
