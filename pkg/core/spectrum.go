// Package core provides the normalized record model, error kinds and
// modification bookkeeping shared by the psmload readers and writers.
package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Spectrum is one scan referenced by at least one identification.
// Identity is (PeakListFile, ScanID).
type Spectrum struct {
	ID                int64
	PeakListFile      string
	ScanID            string
	PeakList          *string // nil when peak lists are not materialized
	FragmentTolerance string  // "<value> <ppm|Da>"
	PrecursorMZ       float64
	PrecursorCharge   int
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// SpectrumKey is the identity of a Spectrum record.
type SpectrumKey struct {
	PeakListFile string
	ScanID       string
}

// Key returns the identity of the spectrum.
func (s *Spectrum) Key() SpectrumKey {
	return SpectrumKey{PeakListFile: s.PeakListFile, ScanID: s.ScanID}
}

// ValidationError represents an error found during record validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum record is complete enough to persist.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.ID < 0 {
		errs = append(errs, "id must not be negative")
	}
	if s.ScanID == "" {
		errs = append(errs, "scan id is required")
	}
	if _, _, err := ParseTolerance(s.FragmentTolerance); err != nil {
		errs = append(errs, err.Error())
	}
	if math.IsNaN(s.PrecursorMZ) || math.IsInf(s.PrecursorMZ, 0) {
		errs = append(errs, "precursor m/z is not finite")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func ArePeaksSorted(peaks []Peak) bool {
	for i := 1; i < len(peaks); i++ {
		if peaks[i].MZ < peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func SortPeaks(peaks []Peak) {
	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].MZ < peaks[j].MZ
	})
}

// FormatPeakList renders peaks as newline separated "mz intensity" lines.
func FormatPeakList(peaks []Peak) string {
	var b strings.Builder
	for i, p := range peaks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.FormatFloat(p.MZ, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Intensity, 'f', -1, 64))
	}
	return b.String()
}

// ParseTolerance splits a "<value> <ppm|Da>" string. Whitespace between value
// and unit is optional on input.
func ParseTolerance(s string) (float64, string, error) {
	m := toleranceRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, "", fmt.Errorf("invalid tolerance %q, expected '<number> ppm' or '<number> Da'", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid tolerance value %q: %w", m[1], err)
	}
	return v, m[2], nil
}

// NormalizeTolerance returns the canonical "<value> <unit>" form.
func NormalizeTolerance(s string) (string, error) {
	v, unit, err := ParseTolerance(s)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + unit, nil
}
