package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every typed error below unwraps to exactly one of these, so
// callers can test with errors.Is.
var (
	ErrMalformedRow            = errors.New("malformed row")
	ErrDuplicateColumn         = errors.New("duplicate column")
	ErrMissingColumn           = errors.New("missing required column")
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrMissingPeakListFile     = errors.New("missing peak list file")
	ErrScanNotFound            = errors.New("scan not found")
	ErrInvalidSpectrumIDFormat = errors.New("invalid spectrum id format")
	ErrInconsistentListLengths = errors.New("inconsistent list lengths")
	ErrUnpairedCrossLink       = errors.New("unpaired cross-link")
	ErrModificationCollision   = errors.New("modification name collision")
)

// RowError reports a bad field in a 1-based input row.
type RowError struct {
	Row    int
	Column string
	Detail string
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Detail)
	}
	return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Detail)
}

func (e *RowError) Unwrap() error { return ErrMalformedRow }

// ColumnError reports a header problem.
type ColumnError struct {
	Kind error
	Name string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Name)
}

func (e *ColumnError) Unwrap() error { return e.Kind }

// ListLengthError reports two list fields of different length in one row.
type ListLengthError struct {
	Row    int
	FieldA string
	FieldB string
	LenA   int
	LenB   int
}

func (e *ListLengthError) Error() string {
	return fmt.Sprintf("row %d: %s has %d entries but %s has %d",
		e.Row, e.FieldB, e.LenB, e.FieldA, e.LenA)
}

func (e *ListLengthError) Unwrap() error { return ErrInconsistentListLengths }

// FileError ties a file-level kind to a path.
type FileError struct {
	Kind error
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Path)
}

func (e *FileError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// ScanError reports a scan key absent from a peak list index.
type ScanError struct {
	Path string
	Key  string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s not found in %s", e.Key, e.Path)
}

func (e *ScanError) Unwrap() error { return ErrScanNotFound }

// SpectrumIDError reports a spectrum identifier that cannot be resolved.
type SpectrumIDError struct {
	RawID  string
	Format string
}

func (e *SpectrumIDError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("%v: %q", ErrInvalidSpectrumIDFormat, e.RawID)
	}
	return fmt.Sprintf("%v: %q (format %s)", ErrInvalidSpectrumIDFormat, e.RawID, e.Format)
}

func (e *SpectrumIDError) Unwrap() error { return ErrInvalidSpectrumIDFormat }
