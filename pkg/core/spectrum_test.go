package core

import (
	"errors"
	"math"
	"testing"
)

func TestSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &Spectrum{
				ID:                1,
				PeakListFile:      "run1.mgf",
				ScanID:            "3",
				FragmentTolerance: "10 ppm",
				PrecursorMZ:       400.5,
				PrecursorCharge:   2,
			},
			wantErr: false,
		},
		{
			name: "missing scan id",
			spec: &Spectrum{
				ID:                1,
				PeakListFile:      "run1.mgf",
				FragmentTolerance: "10 ppm",
			},
			wantErr: true,
		},
		{
			name: "no peak list file",
			spec: &Spectrum{
				ScanID:            "-1",
				FragmentTolerance: "10 ppm",
			},
			wantErr: false,
		},
		{
			name: "negative id",
			spec: &Spectrum{
				ID:                -1,
				ScanID:            "3",
				FragmentTolerance: "10 ppm",
			},
			wantErr: true,
		},
		{
			name: "bad tolerance",
			spec: &Spectrum{
				ID:                1,
				PeakListFile:      "run1.mgf",
				ScanID:            "3",
				FragmentTolerance: "10 mmu",
			},
			wantErr: true,
		},
		{
			name: "NaN precursor",
			spec: &Spectrum{
				ID:                1,
				PeakListFile:      "run1.mgf",
				ScanID:            "3",
				FragmentTolerance: "0.02 Da",
				PrecursorMZ:       math.NaN(),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSortPeaks(t *testing.T) {
	peaks := []Peak{
		{MZ: 300.0, Intensity: 100.0},
		{MZ: 100.0, Intensity: 200.0},
		{MZ: 200.0, Intensity: 150.0},
	}

	if ArePeaksSorted(peaks) {
		t.Fatal("Expected unsorted peaks")
	}
	SortPeaks(peaks)

	expected := []float64{100.0, 200.0, 300.0}
	for i, peak := range peaks {
		if peak.MZ != expected[i] {
			t.Errorf("Peak %d: expected m/z %.1f, got %.1f", i, expected[i], peak.MZ)
		}
	}
}

func TestFormatPeakList(t *testing.T) {
	got := FormatPeakList([]Peak{{MZ: 100.5, Intensity: 20}, {MZ: 200.25, Intensity: 3.5}})
	want := "100.5 20\n200.25 3.5"
	if got != want {
		t.Errorf("FormatPeakList() = %q, want %q", got, want)
	}
}

func TestNormalizeTolerance(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10 ppm", "10 ppm", false},
		{"20ppm", "20 ppm", false},
		{"0.02 Da", "0.02 Da", false},
		{" 5.0  Da ", "5 Da", false},
		{"10 mmu", "", true},
		{"ppm", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTolerance(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeTolerance(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeTolerance(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"row", &RowError{Row: 3, Column: "charge", Detail: "not an integer"}, ErrMalformedRow},
		{"duplicate column", &ColumnError{Kind: ErrDuplicateColumn, Name: "scanid"}, ErrDuplicateColumn},
		{"list length", &ListLengthError{Row: 1, FieldA: "protein1", FieldB: "decoy1"}, ErrInconsistentListLengths},
		{"missing file", &FileError{Kind: ErrMissingPeakListFile, Path: "a.mgf"}, ErrMissingPeakListFile},
		{"scan", &ScanError{Path: "a.mgf", Key: "index 3"}, ErrScanNotFound},
		{"spectrum id", &SpectrumIDError{RawID: "abc"}, ErrInvalidSpectrumIDFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
		})
	}
}
