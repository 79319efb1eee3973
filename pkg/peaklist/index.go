package peaklist

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// Span is a half-open byte range [Start, End) holding one spectrum.
type Span struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in the span.
func (s Span) Len() int64 { return s.End - s.Start }

// Index lists the spectra of one text peak-list file in discovery order and
// maps declared scan numbers to their position.
type Index struct {
	Spans  []Span
	byScan map[int]int
}

func newIndex() *Index {
	return &Index{byScan: make(map[int]int)}
}

// Len returns the number of indexed spectra.
func (ix *Index) Len() int { return len(ix.Spans) }

// Span returns the span at zero-based position i.
func (ix *Index) Span(i int) (Span, bool) {
	if i < 0 || i >= len(ix.Spans) {
		return Span{}, false
	}
	return ix.Spans[i], true
}

// SpanForScan returns the span of a declared scan number.
func (ix *Index) SpanForScan(scan int) (Span, bool) {
	i, ok := ix.byScan[scan]
	if !ok {
		return Span{}, false
	}
	return ix.Spans[i], true
}

// Lookup resolves a key to a span. Native ids are not addressable in text
// formats.
func (ix *Index) Lookup(key ScanKey) (Span, bool) {
	switch key.Kind {
	case KeyIndex:
		return ix.Span(key.Number)
	case KeyScanNumber:
		return ix.SpanForScan(key.Number)
	}
	return Span{}, false
}

func (ix *Index) add(span Span, scan int) {
	if scan >= 0 {
		if _, dup := ix.byScan[scan]; !dup {
			ix.byScan[scan] = len(ix.Spans)
		}
	}
	ix.Spans = append(ix.Spans, span)
}

var (
	beginIons  = []byte("BEGIN IONS")
	endIons    = []byte("END IONS")
	scansParam = []byte("SCANS=")
	titleParam = []byte("TITLE=")
)

// eachLine calls fn with every line of r (terminator included) and the byte
// offset where it starts. It returns the total number of bytes read.
func eachLine(r io.Reader, fn func(line []byte, offset int64)) (int64, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var offset int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			fn(line, offset)
			offset += int64(len(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, err
		}
	}
}

// BuildBoundaryIndex scans a BEGIN IONS / END IONS delimited file. Each span
// starts right after the BEGIN line and ends where the END line starts.
func BuildBoundaryIndex(r io.Reader) (*Index, error) {
	ix := newIndex()
	open := false
	var start int64
	scan := -1

	_, err := eachLine(r, func(line []byte, offset int64) {
		trimmed := bytes.TrimSpace(line)
		switch {
		case bytes.EqualFold(trimmed, beginIons):
			open = true
			start = offset + int64(len(line))
			scan = -1
		case bytes.EqualFold(trimmed, endIons):
			if open {
				ix.add(Span{Start: start, End: offset}, scan)
				open = false
			}
		case open && hasPrefixFold(trimmed, scansParam):
			if m := digitsRe.Find(trimmed[len(scansParam):]); m != nil {
				scan = atoiOr(m, scan)
			}
		case open && scan < 0 && hasPrefixFold(trimmed, titleParam):
			if m := scanMarkerRe.FindSubmatch(trimmed); m != nil {
				scan = atoiOr(m[1], scan)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if ix.Len() == 0 {
		return nil, core.ErrUnsupportedFormat
	}
	return ix, nil
}

// BuildHeaderIndex scans a file where each spectrum starts with an 'S'
// line. Lines before the first S line (H headers) belong to no spectrum;
// the last span closes at end of file. When no S line exists the file is
// indexed as unlabeled numeric blocks instead, in the same pass.
func BuildHeaderIndex(r io.Reader) (*Index, error) {
	ix := newIndex()
	open := false
	var start int64
	scan := -1
	numeric := numericRuns{ix: newIndex()}

	end, err := eachLine(r, func(line []byte, offset int64) {
		numeric.feed(line, offset)
		if line[0] != 'S' {
			return
		}
		if open {
			ix.add(Span{Start: start, End: offset}, scan)
		}
		open = true
		start = offset
		scan = -1
		if fields := bytes.Fields(line); len(fields) > 1 {
			scan = atoiOr(fields[1], -1)
		}
	})
	if err != nil {
		return nil, err
	}
	if open {
		ix.add(Span{Start: start, End: end}, scan)
	}
	numeric.finish(end)

	if ix.Len() > 0 {
		return ix, nil
	}
	if numeric.ix.Len() > 0 {
		return numeric.ix, nil
	}
	return nil, core.ErrUnsupportedFormat
}

// BuildNumericIndex treats every maximal run of lines starting with a digit
// as one spectrum.
func BuildNumericIndex(r io.Reader) (*Index, error) {
	numeric := numericRuns{ix: newIndex()}
	end, err := eachLine(r, numeric.feed)
	if err != nil {
		return nil, err
	}
	numeric.finish(end)
	if numeric.ix.Len() == 0 {
		return nil, core.ErrUnsupportedFormat
	}
	return numeric.ix, nil
}

type numericRuns struct {
	ix    *Index
	inRun bool
	start int64
}

func (n *numericRuns) feed(line []byte, offset int64) {
	if isDigit(line[0]) {
		if !n.inRun {
			n.inRun = true
			n.start = offset
		}
		return
	}
	if n.inRun {
		n.ix.add(Span{Start: n.start, End: offset}, -1)
		n.inRun = false
	}
}

func (n *numericRuns) finish(end int64) {
	if n.inRun {
		n.ix.add(Span{Start: n.start, End: end}, -1)
		n.inRun = false
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func hasPrefixFold(s, prefix []byte) bool {
	return len(s) >= len(prefix) && bytes.EqualFold(s[:len(prefix)], prefix)
}

func atoiOr(b []byte, fallback int) int {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fallback
	}
	return n
}
