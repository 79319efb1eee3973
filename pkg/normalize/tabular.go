package normalize

import (
	"strconv"

	"github.com/ChrisMcGann/psmload/pkg/peaklist"
	"github.com/ChrisMcGann/psmload/pkg/reader/csv"
)

// FromRow converts a validated tabular row. Scan ids of tabular input are
// addressed with idFormat; the file format follows the file extension.
func FromRow(row *csv.Row, idFormat peaklist.IDFormat) *Item {
	it := &Item{
		Source:            row.Number,
		PeakListFile:      row.PeakListFile,
		SpectrumID:        spectrumID(row),
		IDFormat:          idFormat,
		FragmentTolerance: row.FragmentTolerance,
		PairKey:           row.CrossLinkID,
		Peptide1:          sideFromRow(&row.Peptide1, row.CrosslinkerModMass),
		Charge:            row.Charge,
		Rank:              row.Rank,
		PassThreshold:     row.PassThreshold,
		IonTypes:          row.IonTypes,
		Scores:            map[string]float64{"score": row.Score},
		ExpMZ:             row.ExpMZ,
		CalcMZ:            row.CalcMZ,
		Meta:              row.Meta,
	}
	if row.Peptide2 != nil {
		// Both sides on one row: the first is the donor and carries the
		// crosslinker mass.
		side := sideFromRow(row.Peptide2, 0)
		it.Peptide2 = &side
		it.PairKey = ""
	}
	return it
}

// spectrumID returns the scan id of a row. Rows without one, as in uploads
// without peak lists, get a spectrum of their own that only the other side
// of a declared cross-link shares.
func spectrumID(row *csv.Row) string {
	switch {
	case row.ScanID >= 0:
		return strconv.Itoa(row.ScanID)
	case row.CrossLinkID != "":
		return "crosslinkid=" + row.CrossLinkID
	default:
		return "row=" + strconv.Itoa(row.Number)
	}
}

func sideFromRow(s *csv.Side, crosslinkerMass float64) Side {
	side := Side{
		Sequence:        s.Sequence,
		LinkSite:        s.LinkPos,
		CrosslinkerMass: crosslinkerMass,
		Evidence:        make([]Evidence, len(s.Proteins)),
	}
	for i, protein := range s.Proteins {
		side.Evidence[i] = Evidence{
			Protein:       protein,
			DBSequenceRef: protein,
			Start:         s.Positions[i],
			IsDecoy:       s.Decoys[i],
		}
	}
	return side
}

// Rows adapts a tabular reader to a Source.
type Rows struct {
	r        *csv.Reader
	idFormat peaklist.IDFormat
	cur      *Item
}

// NewRows wraps r; scan ids are addressed with idFormat.
func NewRows(r *csv.Reader, idFormat peaklist.IDFormat) *Rows {
	return &Rows{r: r, idFormat: idFormat}
}

func (s *Rows) Next() bool {
	s.cur = nil
	if !s.r.Next() {
		return false
	}
	s.cur = FromRow(s.r.Row(), s.idFormat)
	return true
}

func (s *Rows) Item() *Item   { return s.cur }
func (s *Rows) Err() error    { return s.r.Err() }
func (s *Rows) Warnings() int { return s.r.Warnings() }
