package csv

import (
	encsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

var sequenceRe = regexp.MustCompile(`^[A-Za-z0-9()\[\]+\-.:_]+$`)

var knownIonTypes = map[string]bool{
	"peptide": true,
	"a":       true,
	"b":       true,
	"c":       true,
	"x":       true,
	"y":       true,
	"z":       true,
	"":        true,
}

// Side is one peptide of a row with its protein fan-out.
type Side struct {
	Sequence  string
	LinkPos   int      // 1-based; -1 if none
	Proteins  []string // accessions
	Positions []int    // 1-based start per protein; -1 if unknown
	Decoys    []bool
}

// Row is one validated input row.
type Row struct {
	Number             int // 1-based
	ScanID             int
	PeakListFile       string
	Charge             int
	Rank               int
	Peptide1           Side
	Peptide2           *Side // nil for a linear row
	CrosslinkerModMass float64
	PassThreshold      bool
	FragmentTolerance  string
	IonTypes           []string
	Score              float64
	ExpMZ              float64
	CalcMZ             float64
	CrossLinkID        string
	Meta               []string
}

// IsCrossLink reports whether the row belongs to a cross-link, either
// carrying both sides or declaring a pairing key.
func (r *Row) IsCrossLink() bool {
	return r.Peptide2 != nil || r.CrossLinkID != ""
}

// Options configures row validation.
type Options struct {
	Columns ColumnSet
	// ZeroBasedPositions reads the peppos columns as 0-based. They are
	// 1-based otherwise.
	ZeroBasedPositions bool
	// StrictLinkPositions also requires linkpos2 on cross-link rows.
	StrictLinkPositions bool
	Logger              *slog.Logger
}

// Reader streams validated rows from a tabular identification file. It
// stops at the first invalid row.
type Reader struct {
	csv      *encsv.Reader
	opts     Options
	logger   *slog.Logger
	columns  map[string]int
	meta     []string
	metaIdx  []int
	row      int
	current  *Row
	err      error
	warnings int
}

// NewReader reads and validates the header line.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	if opts.Columns.Name == "" {
		opts.Columns = DefaultColumns()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cr := encsv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.ColumnError{Kind: core.ErrMissingColumn, Name: opts.Columns.Required[0]}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	rd := &Reader{
		csv:     cr,
		opts:    opts,
		logger:  logger,
		columns: make(map[string]int, len(header)),
	}
	if err := rd.readHeader(header); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *Reader) readHeader(header []string) error {
	cs := r.opts.Columns
	for i, raw := range header {
		name := FoldColumn(raw)
		if _, dup := r.columns[name]; dup {
			return &core.ColumnError{Kind: core.ErrDuplicateColumn, Name: name}
		}
		r.columns[name] = i

		switch {
		case cs.MetaPrefix != "" && strings.HasPrefix(name, cs.MetaPrefix):
			r.meta = append(r.meta, name)
			r.metaIdx = append(r.metaIdx, i)
		case !cs.Known(name):
			r.logger.Debug("ignoring unknown column", "column", name)
		}
	}
	if len(r.meta) > cs.MaxMeta {
		return &core.RowError{
			Row:    0,
			Column: r.meta[cs.MaxMeta],
			Detail: fmt.Sprintf("at most %d %s* columns are allowed, found %d", cs.MaxMeta, cs.MetaPrefix, len(r.meta)),
		}
	}
	for _, req := range cs.Required {
		if _, ok := r.columns[req]; !ok {
			return &core.ColumnError{Kind: core.ErrMissingColumn, Name: req}
		}
	}
	return nil
}

// MetaColumns returns the passed-through meta column names in file order.
func (r *Reader) MetaColumns() []string { return r.meta }

// HasColumn reports whether the file carries the folded column name.
func (r *Reader) HasColumn(name string) bool {
	_, ok := r.columns[name]
	return ok
}

// Next advances to the next row. It returns false at end of input or on
// the first invalid row; check Err.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	for {
		record, err := r.csv.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = fmt.Errorf("row %d: %w", r.row+1, err)
			}
			return false
		}
		if blank(record) {
			continue
		}
		r.row++

		row, err := r.parse(record)
		if err != nil {
			r.err = err
			return false
		}
		r.current = row
		return true
	}
}

// Row returns the current row.
func (r *Reader) Row() *Row { return r.current }

// Err returns the error that stopped iteration, if any.
func (r *Reader) Err() error { return r.err }

// Warnings returns the number of non-fatal problems seen so far.
func (r *Reader) Warnings() int { return r.warnings }

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// rowParser collects typed values from one record, keeping the first error.
type rowParser struct {
	r      *Reader
	record []string
	num    int
	err    error
}

func (p *rowParser) fail(column, format string, args ...any) {
	if p.err == nil {
		p.err = &core.RowError{Row: p.num, Column: column, Detail: fmt.Sprintf(format, args...)}
	}
}

// value returns the trimmed cell, or the column default when the column
// is absent or the cell empty. An empty required cell fails the row.
func (p *rowParser) value(column string) string {
	if i, ok := p.r.columns[column]; ok && i < len(p.record) {
		if v := strings.TrimSpace(p.record[i]); v != "" {
			return v
		}
	}
	if p.r.opts.Columns.IsRequired(column) {
		p.fail(column, "required value is empty")
		return ""
	}
	return p.r.opts.Columns.Defaults[column]
}

func (p *rowParser) intValue(column string) int {
	v := p.value(column)
	n, err := parseInt(v)
	if err != nil {
		p.fail(column, "invalid integer %q", v)
	}
	return n
}

func (p *rowParser) floatValue(column string) float64 {
	v := p.value(column)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(column, "invalid number %q", v)
	}
	return f
}

func (p *rowParser) boolValue(column string) bool {
	v := p.value(column)
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(column, "invalid boolean %q", v)
	}
	return b
}

func (r *Reader) parse(record []string) (*Row, error) {
	if len(record) > len(r.columns) {
		return nil, &core.RowError{Row: r.row, Detail: fmt.Sprintf("expected at most %d fields, got %d", len(r.columns), len(record))}
	}
	p := &rowParser{r: r, record: record, num: r.row}

	row := &Row{
		Number:             r.row,
		ScanID:             p.intValue(ColScanID),
		PeakListFile:       p.value(ColPeakListFileName),
		Charge:             p.intValue(ColCharge),
		Rank:               p.intValue(ColRank),
		CrosslinkerModMass: p.floatValue(ColCrosslinkerModMass),
		PassThreshold:      p.boolValue(ColPassThreshold),
		Score:              p.floatValue(ColScore),
		ExpMZ:              p.floatValue(ColExpMZ),
		CalcMZ:             p.floatValue(ColCalcMZ),
		CrossLinkID:        p.value(ColCrossLinkID),
	}
	if row.Rank == 0 {
		row.Rank = 1
	}

	tol, err := core.NormalizeTolerance(p.value(ColFragmentTolerance))
	if err != nil {
		p.fail(ColFragmentTolerance, "%v", err)
	}
	row.FragmentTolerance = tol
	row.IonTypes = r.ionTypes(p.value(ColIonTypes), r.row)

	row.Peptide1 = p.side(ColPepSeq1, ColLinkPos1, ColProtein1, ColPepPos1, ColDecoy1, true)
	if p.value(ColPepSeq2) != "" {
		side := p.side(ColPepSeq2, ColLinkPos2, ColProtein2, ColPepPos2, ColDecoy2, false)
		row.Peptide2 = &side
	}

	for _, i := range r.metaIdx {
		v := ""
		if i < len(record) {
			v = record[i]
		}
		row.Meta = append(row.Meta, v)
	}

	if p.err != nil {
		return nil, p.err
	}

	if row.IsCrossLink() {
		if row.Peptide1.LinkPos == -1 {
			return nil, &core.RowError{Row: r.row, Column: ColLinkPos1, Detail: "cross-link row requires a link position"}
		}
		if r.opts.StrictLinkPositions && row.Peptide2 != nil && row.Peptide2.LinkPos == -1 {
			return nil, &core.RowError{Row: r.row, Column: ColLinkPos2, Detail: "cross-link row requires a link position"}
		}
	}
	return row, nil
}

func (p *rowParser) side(seqCol, linkCol, protCol, posCol, decoyCol string, required bool) Side {
	s := Side{
		Sequence: p.value(seqCol),
		LinkPos:  p.intValue(linkCol),
	}
	switch {
	case s.Sequence == "":
		if required {
			p.fail(seqCol, "peptide sequence must not be empty")
		}
	case !sequenceRe.MatchString(s.Sequence):
		p.fail(seqCol, "invalid characters in sequence %q", s.Sequence)
	case !strings.ContainsFunc(s.Sequence, core.IsResidue):
		p.fail(seqCol, "sequence %q contains no residues", s.Sequence)
	}

	s.Proteins = splitList(p.value(protCol))
	if required && len(s.Proteins) == 0 {
		p.fail(protCol, "protein list must not be empty")
	}

	n := len(s.Proteins)
	s.Positions = make([]int, n)
	s.Decoys = make([]bool, n)
	for i := range s.Positions {
		s.Positions[i] = -1
	}

	if v := p.value(posCol); !p.isDefault(posCol, v) {
		positions := splitList(v)
		if len(positions) != n {
			p.listMismatch(protCol, posCol, n, len(positions))
		} else {
			for i, pos := range positions {
				start, err := parseInt(pos)
				if err != nil {
					p.fail(posCol, "invalid integer %q", pos)
					break
				}
				s.Positions[i] = p.r.toOneBased(start)
			}
		}
	}

	if v := p.value(decoyCol); !p.isDefault(decoyCol, v) {
		decoys := splitList(v)
		if len(decoys) != n {
			p.listMismatch(protCol, decoyCol, n, len(decoys))
		} else {
			for i, d := range decoys {
				b, err := strconv.ParseBool(d)
				if err != nil {
					p.fail(decoyCol, "invalid boolean %q", d)
					break
				}
				s.Decoys[i] = b
			}
		}
	}
	return s
}

func (p *rowParser) isDefault(column, v string) bool {
	if v == "" {
		return true
	}
	def, ok := p.r.opts.Columns.Defaults[column]
	return ok && v == def
}

func (p *rowParser) listMismatch(fieldA, fieldB string, lenA, lenB int) {
	if p.err == nil {
		p.err = &core.ListLengthError{Row: p.num, FieldA: fieldA, FieldB: fieldB, LenA: lenA, LenB: lenB}
	}
}

func (r *Reader) toOneBased(pos int) int {
	if pos < 0 {
		return -1
	}
	if r.opts.ZeroBasedPositions {
		return pos + 1
	}
	return pos
}

func (r *Reader) ionTypes(v string, row int) []string {
	var out []string
	for _, t := range strings.Split(v, ";") {
		t = strings.ToLower(strings.TrimSpace(t))
		if !knownIonTypes[t] {
			r.warnings++
			r.logger.Warn("dropping unknown ion type", "row", row, "ion_type", t)
			continue
		}
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseInt accepts integers and integral floats such as "3.0".
func parseInt(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	return int(f), nil
}
