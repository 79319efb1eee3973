package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCalculatePeptideMZ(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		charge    int
		modMasses []float64
		wantMZ    float64
		tolerance float64
	}{
		{
			name:      "simple peptide charge 1",
			sequence:  "AAA",
			charge:    1,
			wantMZ:    232.129, // Approximate
			tolerance: 0.1,
		},
		{
			name:      "simple peptide charge 2",
			sequence:  "AAA",
			charge:    2,
			wantMZ:    116.569, // Approximate
			tolerance: 0.1,
		},
		{
			name:      "peptide with modification",
			sequence:  "PEPTIDE",
			charge:    2,
			modMasses: []float64{57.021464},
			wantMZ:    429.2, // Approximate
			tolerance: 1.0,
		},
		{
			name:     "zero charge",
			sequence: "PEPTIDE",
			charge:   0,
			wantMZ:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMZ(tt.sequence, tt.charge, tt.modMasses...)
			if math.Abs(got-tt.wantMZ) > tt.tolerance {
				t.Errorf("CalculatePeptideMZ() = %.3f, want %.3f (within %.3f)", got, tt.wantMZ, tt.tolerance)
			}
		})
	}
}

func TestCalculateNeutralMass(t *testing.T) {
	tests := []struct {
		name      string
		sequence  string
		modMasses []float64
		wantMass  float64
		tolerance float64
	}{
		{"simple tripeptide", "AAA", nil, 231.121, 0.1},
		{"with modification", "AAA", []float64{57.021464}, 288.143, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNeutralMass(tt.sequence, tt.modMasses...)
			if math.Abs(got-tt.wantMass) > tt.tolerance {
				t.Errorf("CalculateNeutralMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMass, tt.tolerance)
			}
		})
	}
}

func TestNeutralMassToMZ(t *testing.T) {
	got := NeutralMassToMZ(1000, 2)
	want := 500 + ProtonMass
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("NeutralMassToMZ() = %v, want %v", got, want)
	}
	if got := NeutralMassToMZ(1000, 0); got != 1000 {
		t.Errorf("NeutralMassToMZ() with zero charge = %v, want 1000", got)
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		name      string
		val       float64
		precision int
		want      float64
	}{
		{"round to 2 decimals", 3.14159, 2, 3.14},
		{"round to 4 decimals", 3.14159, 4, 3.1416},
		{"round to 0 decimals", 3.6, 0, 4.0},
		{"round negative", -3.14159, 2, -3.14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundFloat(tt.val, tt.precision)
			if got != tt.want {
				t.Errorf("RoundFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitModifiedSequence(t *testing.T) {
	tests := []struct {
		name         string
		seq          string
		wantResidues string
		wantTokens   []ModToken
	}{
		{"plain", "PEPTIDE", "PEPTIDE", nil},
		{
			name:         "inline tokens",
			seq:          "KMoxPEPCcmTIDE",
			wantResidues: "KMPEPCTIDE",
			wantTokens:   []ModToken{{Token: "ox", Residue: "M"}, {Token: "cm", Residue: "C"}},
		},
		{
			name:         "n-terminal token",
			seq:          "acKPEP",
			wantResidues: "KPEP",
			wantTokens:   []ModToken{{Token: "ac", Residue: ""}},
		},
		{
			name:         "bracketed mass keeps sign",
			seq:          "PEPM(-18.01)K",
			wantResidues: "PEPMK",
			wantTokens:   []ModToken{{Token: "(-18.01)", Residue: "M"}},
		},
		{"terminal markers dropped", "-.PEPK.-", "PEPK", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			residues, tokens := SplitModifiedSequence(tt.seq)
			if residues != tt.wantResidues {
				t.Errorf("residues = %q, want %q", residues, tt.wantResidues)
			}
			if diff := cmp.Diff(tt.wantTokens, tokens); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
