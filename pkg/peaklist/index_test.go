package peaklist

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

var mgfBlocks = []string{
	"TITLE=run1.1.1.2 scan=5\nPEPMASS=500.25 1000\nCHARGE=2+\n100.1 10\n200.2 20\n",
	"TITLE=run1.2.2.3\nSCANS=9\nPEPMASS=612.3\nCHARGE=3+\n110.5 1.5\n",
	"TITLE=no scan\r\nPEPMASS=700.1\r\n150 0.5\r\n250 1e3\r\n",
}

func buildMGF(blocks []string) string {
	var b strings.Builder
	b.WriteString("MASS=Monoisotopic\n\n")
	for _, block := range blocks {
		b.WriteString("BEGIN IONS\n")
		b.WriteString(block)
		b.WriteString("END IONS\n\n")
	}
	return b.String()
}

func TestBuildBoundaryIndexExactSpans(t *testing.T) {
	data := []byte(buildMGF(mgfBlocks))

	ix, err := BuildBoundaryIndex(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, len(mgfBlocks), ix.Len())

	for i, want := range mgfBlocks {
		span, ok := ix.Span(i)
		require.True(t, ok)
		assert.Equal(t, want, string(data[span.Start:span.End]), "span %d", i)
	}

	span, ok := ix.SpanForScan(5)
	require.True(t, ok)
	assert.Equal(t, ix.Spans[0], span)
	span, ok = ix.SpanForScan(9)
	require.True(t, ok)
	assert.Equal(t, ix.Spans[1], span)
	_, ok = ix.SpanForScan(3)
	assert.False(t, ok)
}

func TestBuildBoundaryIndexUnterminatedBlock(t *testing.T) {
	data := buildMGF(mgfBlocks[:1]) + "BEGIN IONS\n300 1\n"
	ix, err := BuildBoundaryIndex(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
}

func TestBuildBoundaryIndexEmpty(t *testing.T) {
	_, err := BuildBoundaryIndex(strings.NewReader("no spectra here\n"))
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

const ms2File = "H\tCreationDate\ttoday\n" +
	"H\tExtractor\ttest\n" +
	"S\t000001\t000001\t500.5\n" +
	"Z\t2\t999.0\n" +
	"100.0 5.0\n" +
	"150.0 6.0\n" +
	"S\t000002\t000002\t600.5\n" +
	"Z\t3\t1797.0\n" +
	"110.0 1.0\n"

func TestBuildHeaderIndex(t *testing.T) {
	ix, err := BuildHeaderIndex(strings.NewReader(ms2File))
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())

	first := ms2File[ix.Spans[0].Start:ix.Spans[0].End]
	assert.True(t, strings.HasPrefix(first, "S\t000001"))
	assert.True(t, strings.HasSuffix(first, "150.0 6.0\n"))

	last := ms2File[ix.Spans[1].Start:ix.Spans[1].End]
	assert.Equal(t, "S\t000002\t000002\t600.5\nZ\t3\t1797.0\n110.0 1.0\n", last)
	assert.Equal(t, int64(len(ms2File)), ix.Spans[1].End)

	span, ok := ix.Lookup(ScanKey{Kind: KeyScanNumber, Number: 2})
	require.True(t, ok)
	assert.Equal(t, ix.Spans[1], span)
}

func TestBuildHeaderIndexFallsBackToNumericBlocks(t *testing.T) {
	data := "100 1\n200 2\n\n300 3\n"
	ix, err := BuildHeaderIndex(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []Span{{Start: 0, End: 12}, {Start: 13, End: 19}}, ix.Spans)
}

func TestBuildNumericIndex(t *testing.T) {
	data := "# comment\n1 2\n3 4\nsep\n5 6\n"
	ix, err := BuildNumericIndex(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, ix.Len())
	assert.Equal(t, "1 2\n3 4\n", data[ix.Spans[0].Start:ix.Spans[0].End])
	assert.Equal(t, "5 6\n", data[ix.Spans[1].Start:ix.Spans[1].End])

	_, err = BuildNumericIndex(strings.NewReader("only text\n"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestIndexLookupNativeID(t *testing.T) {
	ix, err := BuildBoundaryIndex(strings.NewReader(buildMGF(mgfBlocks)))
	require.NoError(t, err)
	_, ok := ix.Lookup(ScanKey{Kind: KeyNativeID, NativeID: "scan=5"})
	assert.False(t, ok)
	_, ok = ix.Lookup(ScanKey{Kind: KeyIndex, Number: 3})
	assert.False(t, ok)
}
