// Package peaklist indexes raw peak-list files and retrieves individual
// scans by spectrum identifier.
//
// Three container formats are supported: boundary-delimited text (MGF,
// BEGIN IONS/END IONS blocks), header-line text (MS2, one S line per
// spectrum, with a numeric-block fallback for unlabeled files) and the
// structured mzML container. An index is built once per file in a single
// sequential pass; lookups afterwards are direct.
package peaklist

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// Format is the container format of a peak-list file.
type Format int

const (
	FormatUnknown Format = iota
	FormatBoundary
	FormatHeaderLine
	FormatStructured
)

// PSI-MS file format accessions.
const (
	AccessionMGF  = "MS:1001062"
	AccessionMS2  = "MS:1001466"
	AccessionMzML = "MS:1000584"
)

func (f Format) String() string {
	switch f {
	case FormatBoundary:
		return "mgf"
	case FormatHeaderLine:
		return "ms2"
	case FormatStructured:
		return "mzml"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format accession, name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch v {
	case "mgf", strings.ToLower(AccessionMGF):
		return FormatBoundary, nil
	case "ms2", strings.ToLower(AccessionMS2):
		return FormatHeaderLine, nil
	case "mzml", strings.ToLower(AccessionMzML):
		return FormatStructured, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, s)
}

// FormatForFile derives the format from a file name, ignoring a trailing
// .gz extension.
func FormatForFile(name string) (Format, error) {
	base := strings.TrimSuffix(strings.ToLower(filepath.Base(name)), ".gz")
	f, err := ParseFormat(filepath.Ext(base))
	if err != nil {
		return FormatUnknown, &core.FileError{Kind: core.ErrUnsupportedFormat, Path: name}
	}
	return f, nil
}
