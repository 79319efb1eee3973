// Package filter provides peak filtering applied to retrieved scans before
// their peak lists are stored.
package filter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
}

// Active reports whether any filter would change a peak list.
func (c *Config) Active() bool {
	return c != nil && (c.TopN > 0 || c.IntensityCutoff > 0)
}

// Validate checks the configured limits.
func (c *Config) Validate() error {
	if c.TopN < 0 {
		return fmt.Errorf("top-n must not be negative, got %d", c.TopN)
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return fmt.Errorf("intensity cutoff must be within 0-100%%, got %g", c.IntensityCutoff)
	}
	return nil
}

// Apply applies all configured filters and returns the surviving peaks
// sorted by m/z. The input slice is not modified.
func (c *Config) Apply(peaks []core.Peak) []core.Peak {
	out := make([]core.Peak, len(peaks))
	copy(out, peaks)

	if c != nil {
		// Apply intensity filters
		if c.IntensityCutoff > 0 {
			out = filterByIntensity(out, c.IntensityCutoff)
		}

		// Apply top-N filter
		if c.TopN > 0 {
			out = filterTopN(out, c.TopN)
		}
	}

	if !core.ArePeaksSorted(out) {
		core.SortPeaks(out)
	}
	return out
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func filterByIntensity(peaks []core.Peak, cutoff float64) []core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := (cutoff / 100.0) * maxIntensity

	filtered := peaks[:0]
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks
func filterTopN(peaks []core.Peak, n int) []core.Peak {
	if len(peaks) <= n {
		return peaks
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})
	return peaks[:n]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(peaks []core.Peak) []core.Peak {
	var filtered []core.Peak
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
