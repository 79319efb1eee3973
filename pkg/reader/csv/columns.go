// Package csv reads tabular identification files, one peptide-spectrum
// match or cross-link per row, and validates every field before handing the
// row on.
package csv

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Column names after folding.
const (
	ColScanID             = "scanid"
	ColCharge             = "charge"
	ColPepSeq1            = "pepseq1"
	ColPepSeq2            = "pepseq2"
	ColProtein1           = "protein1"
	ColProtein2           = "protein2"
	ColPepPos1            = "peppos1"
	ColPepPos2            = "peppos2"
	ColPeakListFileName   = "peaklistfilename"
	ColRank               = "rank"
	ColLinkPos1           = "linkpos1"
	ColLinkPos2           = "linkpos2"
	ColCrosslinkerModMass = "crosslinkermodmass"
	ColPassThreshold      = "passthreshold"
	ColFragmentTolerance  = "fragmenttolerance"
	ColIonTypes           = "iontypes"
	ColScore              = "score"
	ColDecoy1             = "decoy1"
	ColDecoy2             = "decoy2"
	ColExpMZ              = "expmz"
	ColCalcMZ             = "calcmz"
	ColCrossLinkID        = "crosslinkid"
)

// ColumnSet describes which columns a tabular variant requires and the
// defaults of the optional ones.
type ColumnSet struct {
	Name       string
	Required   []string
	Defaults   map[string]string
	MetaPrefix string
	MaxMeta    int
}

func baseDefaults() map[string]string {
	return map[string]string{
		ColRank:               "1",
		ColPepSeq2:            "",
		ColLinkPos1:           "-1",
		ColLinkPos2:           "-1",
		ColCrosslinkerModMass: "0",
		ColPassThreshold:      "true",
		ColFragmentTolerance:  "10 ppm",
		ColIonTypes:           "peptide;b;y",
		ColScore:              "0",
		ColDecoy1:             "-1",
		ColDecoy2:             "-1",
		ColProtein2:           "",
		ColPepPos2:            "-1",
		ColExpMZ:              "-1",
		ColCalcMZ:             "-1",
		ColCrossLinkID:        "",
	}
}

// DefaultColumns is the full variant with peak-list references.
func DefaultColumns() ColumnSet {
	return ColumnSet{
		Name:       "default",
		Required:   []string{ColScanID, ColCharge, ColPepSeq1, ColProtein1, ColPepPos1, ColPeakListFileName},
		Defaults:   baseDefaults(),
		MetaPrefix: "meta",
		MaxMeta:    3,
	}
}

// NoPeakListColumns is the variant for uploads without peak lists; scan id
// and peak-list file name become optional.
func NoPeakListColumns() ColumnSet {
	defaults := baseDefaults()
	defaults[ColScanID] = "-1"
	defaults[ColPeakListFileName] = ""
	return ColumnSet{
		Name:       "no_peak_lists",
		Required:   []string{ColCharge, ColPepSeq1, ColProtein1, ColPepPos1},
		Defaults:   defaults,
		MetaPrefix: "meta",
		MaxMeta:    3,
	}
}

// ColumnSetByName returns a preset by name.
func ColumnSetByName(name string) (ColumnSet, error) {
	switch FoldColumn(name) {
	case "", "default":
		return DefaultColumns(), nil
	case "no_peak_lists", "nopeaklists":
		return NoPeakListColumns(), nil
	}
	return ColumnSet{}, fmt.Errorf("unknown column set %q (want default or no_peak_lists)", name)
}

// Known reports whether name is a required or optional column of the set.
func (cs ColumnSet) Known(name string) bool {
	if _, ok := cs.Defaults[name]; ok {
		return true
	}
	return cs.IsRequired(name)
}

// IsRequired reports whether name must be present with a value in every row.
func (cs ColumnSet) IsRequired(name string) bool {
	return slices.Contains(cs.Required, name)
}

// Columns lists every column of the set, required first.
func (cs ColumnSet) Columns() []string {
	out := append([]string(nil), cs.Required...)
	var optional []string
	for name := range cs.Defaults {
		optional = append(optional, name)
	}
	sort.Strings(optional)
	return append(out, optional...)
}

// FoldColumn case-folds a header name and removes all spaces.
func FoldColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = cases.Lower(language.Und).String(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "")
}
