package core

import (
	"regexp"
	"strings"
)

var toleranceRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*(ppm|Da)$`)

// LinearPairID is the pair id carried by peptides that are not cross-linked.
const LinearPairID int64 = -1

// Peptide is one peptide side. Identity is (Sequence, PairID).
type Peptide struct {
	ID                 int64
	Sequence           string // residues with inline modification tokens
	PairID             int64
	LinkSite           int     // 1-based; -1 if none
	CrosslinkerModMass float64 // full mass on the donor side, 0 on the acceptor
	UploadID           string
}

// PeptideKey is the identity of a Peptide record. Link site and
// crosslinker mass tell apart the two sides of a homodimeric cross-link,
// which share sequence and pair id.
type PeptideKey struct {
	Sequence           string
	PairID             int64
	LinkSite           int
	CrosslinkerModMass float64
}

// Key returns the identity of the peptide. Linear peptides are keyed by
// sequence alone.
func (p *Peptide) Key() PeptideKey {
	if p.PairID == LinearPairID {
		return PeptideKey{Sequence: p.Sequence, PairID: LinearPairID}
	}
	return PeptideKey{
		Sequence:           p.Sequence,
		PairID:             p.PairID,
		LinkSite:           p.LinkSite,
		CrosslinkerModMass: p.CrosslinkerModMass,
	}
}

// PeptideEvidence associates a peptide with one protein.
type PeptideEvidence struct {
	PeptideID        int64
	ProteinAccession string
	DBSequenceRef    string
	Start            int // 1-based; -1 if unknown
	IsDecoy          bool
}

// SpectrumIdentification is a linear PSM or the unified pair of a cross-link.
type SpectrumIdentification struct {
	ID            int64
	SpectrumID    int64
	Peptide1ID    int64
	Peptide2ID    *int64
	Charge        int
	Rank          int
	PassThreshold bool
	IonTypes      string // ";"-joined
	Scores        map[string]float64
	ExpMZ         float64
	CalcMZ        float64
	Meta          []string
}

// IsCrossLink reports whether both peptide slots are filled.
func (si *SpectrumIdentification) IsCrossLink() bool {
	return si.Peptide2ID != nil
}

// JoinIonTypes joins ion type names with ";".
func JoinIonTypes(types []string) string {
	return strings.Join(types, ";")
}

// RunMeta summarizes one upload.
type RunMeta struct {
	UploadID           string
	MetaColumns        []string
	ContainsCrosslinks bool
}
