package normalize

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// DefaultMassTolerance is the m/z difference MassCheck accepts, in Th.
const DefaultMassTolerance = 0.01

// MassCheck wraps a Source and compares the reported calculated m/z of
// linear items with the m/z computed from their sequence. Items whose
// modifications cannot all be resolved are skipped.
type MassCheck struct {
	Source

	modDB     *core.ModDatabase
	tolerance float64
	logger    *slog.Logger

	checked    int
	mismatches int
}

// NewMassCheck wraps src. A non-positive tolerance selects
// DefaultMassTolerance.
func NewMassCheck(src Source, modDB *core.ModDatabase, tolerance float64, logger *slog.Logger) *MassCheck {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	if tolerance <= 0 {
		tolerance = DefaultMassTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MassCheck{Source: src, modDB: modDB, tolerance: tolerance, logger: logger}
}

func (m *MassCheck) Next() bool {
	if !m.Source.Next() {
		return false
	}
	m.check(m.Source.Item())
	return true
}

// Warnings includes the mismatches found.
func (m *MassCheck) Warnings() int { return m.Source.Warnings() + m.mismatches }

// Checked returns the number of items whose mass was compared.
func (m *MassCheck) Checked() int { return m.checked }

// Mismatches returns the number of items outside the tolerance.
func (m *MassCheck) Mismatches() int { return m.mismatches }

func (m *MassCheck) check(it *Item) {
	if it == nil || it.IsCrossLink() || it.CalcMZ <= 0 || it.Charge <= 0 {
		return
	}
	mz, ok := m.peptideMZ(it.Peptide1.Sequence, it.Charge)
	if !ok {
		return
	}
	m.checked++
	if math.Abs(mz-it.CalcMZ) <= m.tolerance {
		return
	}
	m.mismatches++
	m.logger.Warn("calculated m/z does not match sequence",
		"item", it.Source,
		"sequence", it.Peptide1.Sequence,
		"charge", it.Charge,
		"reported", it.CalcMZ,
		"computed", core.RoundFloat(mz, 6),
	)
}

func (m *MassCheck) peptideMZ(seq string, charge int) (float64, bool) {
	bare, tokens := core.SplitModifiedSequence(seq)
	masses := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		if lm := massLabelRe.FindStringSubmatch(tok.Token); lm != nil {
			v, err := strconv.ParseFloat(lm[1], 64)
			if err != nil {
				return 0, false
			}
			masses = append(masses, v)
			continue
		}
		e, ok := m.modDB.Lookup("", tok.Token)
		if !ok {
			return 0, false
		}
		masses = append(masses, e.Mass)
	}
	return core.CalculatePeptideMZ(bare, charge, masses...), true
}
