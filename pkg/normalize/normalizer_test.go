package normalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
	"github.com/ChrisMcGann/psmload/pkg/reader/csv"
)

func linearItem(source int, file, scan, seq string, proteins ...string) *Item {
	side := Side{Sequence: seq, LinkSite: -1}
	for _, p := range proteins {
		side.Evidence = append(side.Evidence, Evidence{Protein: p, DBSequenceRef: p, Start: -1})
	}
	return &Item{
		Source:            source,
		PeakListFile:      file,
		SpectrumID:        scan,
		FragmentTolerance: "10 ppm",
		Peptide1:          side,
		Charge:            2,
		PassThreshold:     true,
		IonTypes:          []string{"b", "y"},
		Scores:            map[string]float64{"score": float64(source)},
	}
}

func halfLink(source int, scan, key, seq string, site int, mass float64) *Item {
	it := linearItem(source, "a.mgf", scan, seq, "P"+seq)
	it.PairKey = key
	it.Peptide1.LinkSite = site
	it.Peptide1.CrosslinkerMass = mass
	return it
}

func TestDedupIdempotence(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{UploadID: "u1"}, sink)

	const k = 4
	for i := 1; i <= k; i++ {
		require.NoError(t, n.Process(ctx, linearItem(i, "a.mgf", "7", "PEPTIDE", "P1")))
	}
	require.NoError(t, n.Finish(ctx))

	require.Len(t, sink.Spectra, 1)
	require.Len(t, sink.Identifications, k)
	for _, si := range sink.Identifications {
		assert.Equal(t, sink.Spectra[0].ID, si.SpectrumID)
		assert.Nil(t, si.Peptide2ID)
	}
	require.Len(t, sink.Peptides, 1)
	assert.Equal(t, core.LinearPairID, sink.Peptides[0].PairID)
	assert.Equal(t, "u1", sink.Peptides[0].UploadID)
	assert.Len(t, sink.Evidence, k)
	require.NotNil(t, sink.Meta)
	assert.False(t, sink.Meta.ContainsCrosslinks)
}

func TestCrossLinkPairing(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{}, sink)

	require.NoError(t, n.Process(ctx, halfLink(1, "3", "xl-1", "PEPKTIDE", 4, 138.068)))
	require.NoError(t, n.Process(ctx, halfLink(2, "3", "xl-1", "KLMN", 1, 0)))
	require.NoError(t, n.Finish(ctx))

	require.Len(t, sink.Identifications, 1)
	si := sink.Identifications[0]
	require.NotNil(t, si.Peptide2ID)

	byID := map[int64]core.Peptide{}
	for _, p := range sink.Peptides {
		byID[p.ID] = p
	}
	assert.Equal(t, "PEPKTIDE", byID[si.Peptide1ID].Sequence)
	assert.Equal(t, "KLMN", byID[*si.Peptide2ID].Sequence)
	assert.Equal(t, byID[si.Peptide1ID].PairID, byID[*si.Peptide2ID].PairID)
	assert.NotEqual(t, core.LinearPairID, byID[si.Peptide1ID].PairID)
	assert.Equal(t, 138.068, byID[si.Peptide1ID].CrosslinkerModMass)
	assert.Equal(t, 4, byID[si.Peptide1ID].LinkSite)
	assert.True(t, sink.Meta.ContainsCrosslinks)
	assert.Equal(t, 1, n.Stats().CrossLinks)
}

func TestSameKeyInOtherSpectrumIsSeparate(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{}, sink)

	require.NoError(t, n.Process(ctx, halfLink(1, "3", "xl-1", "PEPKTIDE", 4, 138.068)))
	require.NoError(t, n.Process(ctx, halfLink(2, "4", "xl-1", "PEPKTIDE", 4, 138.068)))
	err := n.Finish(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnpairedCrossLink))
}

func TestBothSidesInOneItem(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{}, sink)

	it := linearItem(1, "a.mgf", "1", "PEPKTIDE", "P1")
	it.Peptide2 = &Side{Sequence: "KPEPR", LinkSite: 1, Evidence: []Evidence{{Protein: "P2", Start: 5}}}
	require.NoError(t, n.Process(ctx, it))
	require.NoError(t, n.Process(ctx, linearItem(2, "a.mgf", "1", "PEPKTIDE", "P1")))
	require.NoError(t, n.Finish(ctx))

	// PEPKTIDE in the pair and PEPKTIDE as a linear peptide are distinct.
	assert.Len(t, sink.Peptides, 3)
	assert.Len(t, sink.Identifications, 2)
	assert.Len(t, sink.Evidence, 3)
}

func TestFlushHoldsBackOpenPairs(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{BatchSize: 1}, sink)

	require.NoError(t, n.Process(ctx, halfLink(1, "3", "xl-1", "PEPKTIDE", 4, 138.068)))
	require.NoError(t, n.Process(ctx, linearItem(2, "a.mgf", "4", "LINEAR")))

	// The linear identification completed a batch but waits behind the
	// open pair; its spectrum and peptide are already out.
	assert.Equal(t, 1, sink.Batches)
	assert.Empty(t, sink.Identifications)
	assert.Len(t, sink.Spectra, 2)

	require.NoError(t, n.Process(ctx, halfLink(3, "3", "xl-1", "KLMN", 1, 0)))
	require.Len(t, sink.Identifications, 2)
	assert.Equal(t, int64(0), sink.Identifications[0].ID)
	assert.NotNil(t, sink.Identifications[0].Peptide2ID)
	assert.Equal(t, int64(1), sink.Identifications[1].ID)

	require.NoError(t, n.Finish(ctx))
	assert.Len(t, sink.Identifications, 2)
}

func TestModificationsRegistered(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{}, sink)

	require.NoError(t, n.Process(ctx, linearItem(1, "a.mgf", "1", "PEPMoxTIDE(+15.99)Kzz", "P1")))

	explicit := linearItem(2, "a.mgf", "2", "PEPTIDEK", "P1")
	explicit.ExplicitMods = true
	explicit.Peptide1.Mods = []Mod{
		{Name: "ox", Mass: 42.01, Residue: "K", Resolved: true},
		{Name: "mystery", Accession: "UNIMOD:99999"},
	}
	require.NoError(t, n.Process(ctx, explicit))
	require.NoError(t, n.Finish(ctx))

	mods := map[string]core.Modification{}
	for _, m := range sink.Modifications {
		mods[m.Name] = m
	}
	require.Contains(t, mods, "ox")
	assert.Equal(t, []string{"M"}, mods["ox"].Residues)
	require.Contains(t, mods, "ox*")
	assert.Equal(t, 42.01, mods["ox*"].Mass)
	require.Contains(t, mods, "(+15.99)")
	assert.Equal(t, []string{"E"}, mods["(+15.99)"].Residues)
	require.Contains(t, mods, "zz")
	assert.Equal(t, 0.0, mods["zz"].Mass)
	assert.NotContains(t, mods, "mystery")

	// One unknown token and one unresolved explicit modification.
	assert.Equal(t, 2, n.Stats().Warnings)
}

const e2eMGF = "BEGIN IONS\nTITLE=s0\nPEPMASS=500.5\nCHARGE=3+\n100 1\n200 2\nEND IONS\n" +
	"BEGIN IONS\nTITLE=s1\nPEPMASS=600.5\nCHARGE=2+\n150 3\nEND IONS\n"

func TestEndToEndTabular(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.mgf"), []byte(e2eMGF), 0o644))

	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename,linkpos1,crosslinkermodmass,crosslinkid\n" +
		"0,3,PEPKTIDE,P1;P2,1;9,run.mgf,4,138.068,xl-1\n" +
		"0,3,KLMN,P3,20,run.mgf,1,0,xl-1\n" +
		"1,2,LINEARK,P4;P5;P6,1;2;3,run.mgf,-1,0,\n"

	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	pool := peaklist.NewPool(dir, nil)
	defer pool.Close()

	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{UploadID: "u1", Peaks: pool, MetaColumns: r.MetaColumns()}, sink)
	for r.Next() {
		require.NoError(t, n.Process(ctx, FromRow(r.Row(), peaklist.IDFormatMultiplePeakList)))
	}
	require.NoError(t, r.Err())
	require.NoError(t, n.Finish(ctx))

	assert.Len(t, sink.Spectra, 2)
	assert.Len(t, sink.Peptides, 3)
	assert.Len(t, sink.Identifications, 2)
	assert.Len(t, sink.Evidence, 6)

	require.NotNil(t, sink.Spectra[0].PeakList)
	assert.Equal(t, "100 1\n200 2", *sink.Spectra[0].PeakList)
	assert.Equal(t, 600.5, sink.Spectra[1].PrecursorMZ)
	assert.Equal(t, 2, sink.Spectra[1].PrecursorCharge)

	assert.NotNil(t, sink.Identifications[0].Peptide2ID)
	assert.Nil(t, sink.Identifications[1].Peptide2ID)
	assert.Equal(t, 1, pool.Len())
	assert.True(t, sink.Meta.ContainsCrosslinks)
}

func TestFailFastStopsOutput(t *testing.T) {
	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename,passthreshold\n" +
		"1,2,PEPTIDE,P1,1,a.mgf,true\n" +
		"2,2,PEPTIDE,P1,1,a.mgf,maybe\n" +
		"3,2,PEPTIDE,P1,1,a.mgf,true\n"

	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	ctx := context.Background()
	sink := NewMemorySink()
	n := New(Config{BatchSize: 1}, sink)
	for r.Next() {
		require.NoError(t, n.Process(ctx, FromRow(r.Row(), peaklist.IDFormatMultiplePeakList)))
	}

	var rowErr *core.RowError
	require.ErrorAs(t, r.Err(), &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Len(t, sink.Identifications, 1)
	assert.Nil(t, sink.Meta)
}

func TestMissingPeakListIsFatal(t *testing.T) {
	pool := peaklist.NewPool(t.TempDir(), nil)
	defer pool.Close()

	n := New(Config{Peaks: pool}, NewMemorySink())
	err := n.Process(context.Background(), linearItem(1, "gone.mgf", "0", "PEPTIDE"))
	assert.ErrorIs(t, err, core.ErrMissingPeakListFile)
}

func TestRunCountsSourceWarnings(t *testing.T) {
	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename,iontypes\n" +
		"1,2,PEPTIDE,P1,1,a.mgf,b;q\n" +
		"2,2,PEPMoxTIDE,P1,1,a.mgf,y\n"
	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	sink := NewMemorySink()
	n := New(Config{}, sink)
	require.NoError(t, n.Run(context.Background(), NewRows(r, peaklist.IDFormatMultiplePeakList)))

	assert.Equal(t, 1, n.Stats().Warnings)
	assert.Len(t, sink.Identifications, 2)
	require.NotNil(t, sink.Meta)
	require.Len(t, sink.Modifications, 1)
	assert.Equal(t, "ox", sink.Modifications[0].Name)
}

func TestRunStopsOnReadError(t *testing.T) {
	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename\n" +
		"x,2,PEPTIDE,P1,1,a.mgf\n"
	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	sink := NewMemorySink()
	err = New(Config{}, sink).Run(context.Background(), NewRows(r, peaklist.IDFormatMultiplePeakList))
	assert.ErrorIs(t, err, core.ErrMalformedRow)
	assert.Nil(t, sink.Meta)
}

func TestHomodimerKeepsBothSides(t *testing.T) {
	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename,pepseq2,protein2,peppos2,linkpos1,linkpos2,crosslinkermodmass\n" +
		"0,3,PEPKTIDEK,P1,1,a.mgf,PEPKTIDEK,P1,1,4,9,138.068\n"
	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	sink := NewMemorySink()
	require.NoError(t, New(Config{}, sink).Run(context.Background(), NewRows(r, peaklist.IDFormatMultiplePeakList)))

	require.Len(t, sink.Identifications, 1)
	si := sink.Identifications[0]
	require.NotNil(t, si.Peptide2ID)
	assert.NotEqual(t, si.Peptide1ID, *si.Peptide2ID)

	require.Len(t, sink.Peptides, 2)
	byID := map[int64]core.Peptide{}
	for _, p := range sink.Peptides {
		byID[p.ID] = p
	}
	donor, acceptor := byID[si.Peptide1ID], byID[*si.Peptide2ID]
	assert.Equal(t, donor.PairID, acceptor.PairID)
	assert.Equal(t, 4, donor.LinkSite)
	assert.Equal(t, 138.068, donor.CrosslinkerModMass)
	assert.Equal(t, 9, acceptor.LinkSite)
	assert.Equal(t, 0.0, acceptor.CrosslinkerModMass)
	assert.Len(t, sink.Evidence, 2)
}

func TestEmptyRequiredCellIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.mgf"), []byte(e2eMGF), 0o644))
	pool := peaklist.NewPool(dir, nil)
	defer pool.Close()

	data := "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename\n" +
		"0,2,PEPTIDE,P1,1,\n"
	r, err := csv.NewReader(strings.NewReader(data), csv.Options{})
	require.NoError(t, err)

	sink := NewMemorySink()
	err = New(Config{Peaks: pool}, sink).Run(context.Background(), NewRows(r, peaklist.IDFormatMultiplePeakList))
	var rowErr *core.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, csv.ColPeakListFileName, rowErr.Column)
	assert.Empty(t, sink.Spectra)
	assert.Nil(t, sink.Meta)
}

func TestNoPeakListRowsGetOwnSpectra(t *testing.T) {
	cs, err := csv.ColumnSetByName("no_peak_lists")
	require.NoError(t, err)

	data := "charge,pepseq1,protein1,peppos1,fragmenttolerance,linkpos1,crosslinkid\n" +
		"2,PEPTIDE,P1,1,10 ppm,,\n" +
		"2,PEPTIDE,P1,1,0.5 Da,,\n" +
		"3,PEPKTIDE,P2,1,10 ppm,4,xl-1\n" +
		"3,KLMN,P3,1,10 ppm,1,xl-1\n"
	r, err := csv.NewReader(strings.NewReader(data), csv.Options{Columns: cs})
	require.NoError(t, err)

	sink := NewMemorySink()
	n := New(Config{}, sink)
	require.NoError(t, n.Run(context.Background(), NewRows(r, peaklist.IDFormatMultiplePeakList)))

	require.Len(t, sink.Spectra, 3)
	assert.Equal(t, "10 ppm", sink.Spectra[0].FragmentTolerance)
	assert.Equal(t, "0.5 Da", sink.Spectra[1].FragmentTolerance)
	for _, s := range sink.Spectra {
		assert.Nil(t, s.PeakList)
		assert.Empty(t, s.PeakListFile)
	}

	require.Len(t, sink.Identifications, 3)
	assert.NotEqual(t, sink.Identifications[0].SpectrumID, sink.Identifications[1].SpectrumID)
	assert.NotNil(t, sink.Identifications[2].Peptide2ID)
	assert.Equal(t, 1, n.Stats().CrossLinks)
}
