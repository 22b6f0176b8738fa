package types

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat indicates a file extension no adapter accepts.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// ErrEmptyInput indicates an adapter read the file but found no rows.
var ErrEmptyInput = errors.New("input contains no rows")

// ErrNoRecognizedRows indicates the transcriber matched no rule on any row.
var ErrNoRecognizedRows = errors.New("no recognizable rows found in input")

// AdapterError wraps a decode, open or parse failure of an input adapter.
type AdapterError struct {
	Format Format
	Source string
	Stage  string // "open", "decode", "parse"
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed to %s %q: %v", e.Format, e.Stage, e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError.
func NewAdapterError(format Format, source, stage string, err error) *AdapterError {
	return &AdapterError{
		Format: format,
		Source: source,
		Stage:  stage,
		Err:    err,
	}
}
