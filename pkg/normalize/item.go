// Package normalize turns a stream of identification items into
// deduplicated spectrum, peptide, evidence and identification records and
// hands them to a Sink in batches.
package normalize

import (
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

// Evidence is one protein a peptide side maps to.
type Evidence struct {
	Protein       string
	DBSequenceRef string
	Start         int // 1-based; -1 if unknown
	IsDecoy       bool
}

// Mod is a modification with explicit metadata, as carried by mzIdentML.
type Mod struct {
	Name      string
	Mass      float64
	Residue   string // empty for terminal modifications
	Accession string
	// Resolved is false when no mass could be determined; such
	// modifications are skipped with a warning.
	Resolved bool
}

// Side is one peptide of an item.
type Side struct {
	Sequence        string // residues with inline modification tokens
	LinkSite        int    // 1-based; -1 if none
	CrosslinkerMass float64
	Evidence        []Evidence
	Mods            []Mod
}

// Item is one identification from either input kind.
type Item struct {
	Source            int // 1-based row or item number, for messages
	PeakListFile      string
	SpectrumID        string
	Format            peaklist.Format
	IDFormat          peaklist.IDFormat
	FragmentTolerance string

	// PairKey is the declared cross-link grouping value. Two items in the
	// same spectrum with the same key are the two sides of one cross-link.
	PairKey  string
	Peptide1 Side
	Peptide2 *Side

	// ExplicitMods marks items whose sides list their modifications in
	// Mods. Otherwise the inline tokens of the sequences are looked up in
	// the mass table.
	ExplicitMods bool

	Charge        int
	Rank          int
	PassThreshold bool
	IonTypes      []string
	Scores        map[string]float64
	ExpMZ         float64
	CalcMZ        float64
	Meta          []string
}

// IsCrossLink reports whether the item is, or is half of, a cross-link.
func (it *Item) IsCrossLink() bool {
	return it.Peptide2 != nil || it.PairKey != ""
}
