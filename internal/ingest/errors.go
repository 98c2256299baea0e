// Package ingest turns uploaded delimited-text and JSON documents into an
// ascending, validated bar series.
package ingest

import (
	"errors"
	"fmt"
)

var (
	ErrMissingColumns = errors.New("missing required columns: time/open/high/low/close/volume")
	ErrNotEnoughRows  = errors.New("need a header and at least one data row")
	ErrBadTimestamp   = errors.New("invalid timestamp")
	ErrBadNumber      = errors.New("invalid number")
	ErrBadDocument    = errors.New("malformed document")
	ErrUnordered      = errors.New("bars not ordered by timestamp")
	ErrUnknownFormat  = errors.New("unknown file format")
)

// IngestError describes why an input document was rejected
type IngestError struct {
	Source string // "csv", "json", "file"
	Line   int    // 1-based line or item number, 0 when not applicable
	Field  string
	Err    error
}

func (e *IngestError) Error() string {
	msg := e.Source
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Field != "" {
		msg += " " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsIngestError reports whether err came from parsing or validating input
func IsIngestError(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie)
}
