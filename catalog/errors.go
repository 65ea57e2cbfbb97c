package catalog

import (
	"errors"
	"fmt"
)

// ErrDuplicateCode is wrapped by RowError when a course code appears twice.
var ErrDuplicateCode = errors.New("duplicate course code")

// RowError describes a row that failed to load.
type RowError struct {
	Source string // file name or "-" for a reader
	Line   int    // 1-based, header included
	Field  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s:%d: field %s: %v", e.Source, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
