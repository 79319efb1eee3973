package core

import (
	"math"
	"strings"
	"unicode"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// AminoAcidMasses maps amino acid one-letter codes to elemental composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a bare
// residue sequence plus the given modification masses. Letters without a
// composition (X, B, Z, U, O) contribute nothing.
func CalculateNeutralMass(sequence string, modMasses ...float64) float64 {
	comp := AminoAcidComposition{H: 2, O: 1} // water

	for _, aa := range sequence {
		if aaComp, ok := AminoAcidMasses[aa]; ok {
			comp.C += aaComp.C
			comp.H += aaComp.H
			comp.N += aaComp.N
			comp.O += aaComp.O
			comp.S += aaComp.S
		}
	}

	mass := float64(comp.C)*MassC +
		float64(comp.H)*MassH +
		float64(comp.N)*MassN +
		float64(comp.O)*MassO +
		float64(comp.S)*MassS

	for _, m := range modMasses {
		mass += m
	}
	return mass
}

// CalculatePeptideMZ returns the m/z of a bare residue sequence at charge.
func CalculatePeptideMZ(sequence string, charge int, modMasses ...float64) float64 {
	if charge <= 0 {
		return 0
	}
	mass := CalculateNeutralMass(sequence, modMasses...)
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// NeutralMassToMZ converts a mass reported alongside a charge into m/z as
// mass/charge + proton.
func NeutralMassToMZ(mass float64, charge int) float64 {
	if charge <= 0 {
		return mass
	}
	return mass/float64(charge) + ProtonMass
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// IsResidue reports whether r is an upper-case residue letter.
func IsResidue(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// ModToken is an inline modification token and the residue it follows.
// Residue is empty for an N-terminal token.
type ModToken struct {
	Token   string
	Residue string
}

// SplitModifiedSequence separates an inline-modified sequence such as
// "KMoxPEPcmTIDE" into its residues ("KMPEPTIDE") and its modification
// tokens in order of appearance. Terminal markers '-' and '.' are dropped.
func SplitModifiedSequence(seq string) (string, []ModToken) {
	var residues strings.Builder
	var tokens []ModToken
	var tok strings.Builder
	last := ""

	flush := func() {
		if tok.Len() == 0 {
			return
		}
		tokens = append(tokens, ModToken{Token: tok.String(), Residue: last})
		tok.Reset()
	}

	depth := 0
	for _, r := range seq {
		switch {
		case r == '(' || r == '[':
			depth++
			tok.WriteRune(r)
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
			tok.WriteRune(r)
		case depth > 0:
			tok.WriteRune(r)
		case IsResidue(r):
			flush()
			residues.WriteRune(r)
			last = string(r)
		case r == '-' || r == '.':
			flush()
		case unicode.IsSpace(r):
			// ignored
		default:
			tok.WriteRune(r)
		}
	}
	flush()
	return residues.String(), tokens
}
