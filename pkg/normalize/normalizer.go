package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

// DefaultBatchSize is the number of completed identifications per flush.
const DefaultBatchSize = 500

// PeakSource retrieves peaks for a spectrum reference. *peaklist.Pool
// implements it.
type PeakSource interface {
	Scan(file string, format peaklist.Format, idFormat peaklist.IDFormat, rawID string) (*peaklist.Scan, error)
}

// Config controls a normalization run.
type Config struct {
	UploadID    string
	BatchSize   int
	MetaColumns []string
	Logger      *slog.Logger
	// Peaks materializes peak lists when set. Spectra get a nil peak list
	// otherwise.
	Peaks PeakSource
	// Registry and ModDB default to a fresh registry and the built-in mass
	// table.
	Registry *core.Registry
	ModDB    *core.ModDatabase
}

// Stats counts what a run produced.
type Stats struct {
	Items           int
	Spectra         int
	Peptides        int
	Evidence        int
	Identifications int
	CrossLinks      int
	Batches         int
	Warnings        int
}

type declaredKey struct {
	spectrumID int64
	key        string
}

type slotKey struct {
	spectrumID int64
	pairing    int64
}

// pendingSI is an identification waiting in the emission buffer.
type pendingSI struct {
	si      core.SpectrumIdentification
	pairing int64
	open    bool
	source  int
}

// Normalizer is the single owner of the identity maps and counters for one
// run. It is not safe for concurrent use.
type Normalizer struct {
	cfg      Config
	sink     Sink
	logger   *slog.Logger
	registry *core.Registry
	modDB    *core.ModDatabase

	spectra  map[core.SpectrumKey]int64
	peptides map[core.PeptideKey]int64
	declared map[declaredKey]int64
	slots    map[slotKey]*pendingSI

	nextSpectrumID int64
	nextPeptideID  int64
	nextSIID       int64
	nextPairID     int64
	nextLinear     int64

	buffer     []*pendingSI
	batch      Batch
	sinceFlush int
	crossLinks bool
	finished   bool
	stats      Stats
}

// New creates a Normalizer writing to sink.
func New(cfg Config, sink Sink) *Normalizer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = core.NewRegistry()
	}
	if cfg.ModDB == nil {
		cfg.ModDB = core.DefaultModDatabase()
	}
	return &Normalizer{
		cfg:        cfg,
		sink:       sink,
		logger:     cfg.Logger,
		registry:   cfg.Registry,
		modDB:      cfg.ModDB,
		spectra:    make(map[core.SpectrumKey]int64),
		peptides:   make(map[core.PeptideKey]int64),
		declared:   make(map[declaredKey]int64),
		slots:      make(map[slotKey]*pendingSI),
		nextLinear: -1,
	}
}

// Registry returns the modification registry of the run.
func (n *Normalizer) Registry() *core.Registry { return n.registry }

// Stats returns counters for the records produced so far.
func (n *Normalizer) Stats() Stats { return n.stats }

// Process normalizes one item. Any error is fatal for the run.
func (n *Normalizer) Process(ctx context.Context, it *Item) error {
	if n.finished {
		return fmt.Errorf("normalizer already finished")
	}
	n.stats.Items++

	spectrumID, err := n.spectrum(it)
	if err != nil {
		return err
	}

	if it.IsCrossLink() {
		n.crossLinks = true
	}

	switch {
	case it.Peptide2 != nil:
		pairing := n.nextPairID
		n.nextPairID++
		p1 := n.peptide(&it.Peptide1, pairing)
		p2 := n.peptide(it.Peptide2, pairing)
		n.evidence(p1, &it.Peptide1)
		n.evidence(p2, it.Peptide2)
		n.emit(it, spectrumID, pairing, p1, &p2, false)
		n.stats.CrossLinks++

	case it.PairKey != "":
		dk := declaredKey{spectrumID: spectrumID, key: it.PairKey}
		if pairing, ok := n.declared[dk]; ok {
			slot := n.slots[slotKey{spectrumID: spectrumID, pairing: pairing}]
			p2 := n.peptide(&it.Peptide1, pairing)
			n.evidence(p2, &it.Peptide1)
			slot.si.Peptide2ID = &p2
			slot.open = false
			delete(n.declared, dk)
			delete(n.slots, slotKey{spectrumID: spectrumID, pairing: pairing})
			n.stats.CrossLinks++
			n.complete()
			break
		}
		pairing := n.nextPairID
		n.nextPairID++
		p1 := n.peptide(&it.Peptide1, pairing)
		n.evidence(p1, &it.Peptide1)
		n.declared[dk] = pairing
		n.slots[slotKey{spectrumID: spectrumID, pairing: pairing}] = n.emit(it, spectrumID, pairing, p1, nil, true)

	default:
		pairing := n.nextLinear
		n.nextLinear--
		p1 := n.peptide(&it.Peptide1, core.LinearPairID)
		n.evidence(p1, &it.Peptide1)
		n.emit(it, spectrumID, pairing, p1, nil, false)
	}

	if err := n.modifications(it); err != nil {
		return fmt.Errorf("item %d: %w", it.Source, err)
	}

	if n.sinceFlush >= n.cfg.BatchSize {
		return n.flush(ctx, false)
	}
	return nil
}

func (n *Normalizer) spectrum(it *Item) (int64, error) {
	s := core.Spectrum{
		PeakListFile:      it.PeakListFile,
		ScanID:            it.SpectrumID,
		FragmentTolerance: it.FragmentTolerance,
	}
	key := s.Key()
	if id, ok := n.spectra[key]; ok {
		return id, nil
	}
	s.ID = n.nextSpectrumID
	if n.cfg.Peaks != nil && it.PeakListFile != "" {
		scan, err := n.cfg.Peaks.Scan(it.PeakListFile, it.Format, it.IDFormat, it.SpectrumID)
		if err != nil {
			return 0, fmt.Errorf("item %d: %w", it.Source, err)
		}
		peakList := scan.PeakList
		s.PeakList = &peakList
		s.PrecursorMZ = scan.PrecursorMZ
		s.PrecursorCharge = scan.PrecursorCharge
	}
	if err := s.Validate(); err != nil {
		return 0, fmt.Errorf("item %d: %w", it.Source, err)
	}

	n.nextSpectrumID++
	n.spectra[key] = s.ID
	n.batch.Spectra = append(n.batch.Spectra, s)
	n.stats.Spectra++
	return s.ID, nil
}

// peptide resolves or creates the peptide of side under pairID. Linear
// sides pass core.LinearPairID.
func (n *Normalizer) peptide(side *Side, pairID int64) int64 {
	p := core.Peptide{
		Sequence:           side.Sequence,
		PairID:             pairID,
		LinkSite:           side.LinkSite,
		CrosslinkerModMass: side.CrosslinkerMass,
		UploadID:           n.cfg.UploadID,
	}
	key := p.Key()
	if id, ok := n.peptides[key]; ok {
		return id
	}
	p.ID = n.nextPeptideID
	n.nextPeptideID++
	n.peptides[key] = p.ID
	n.batch.Peptides = append(n.batch.Peptides, p)
	n.stats.Peptides++
	return p.ID
}

func (n *Normalizer) evidence(peptideID int64, side *Side) {
	for _, ev := range side.Evidence {
		n.batch.Evidence = append(n.batch.Evidence, core.PeptideEvidence{
			PeptideID:        peptideID,
			ProteinAccession: ev.Protein,
			DBSequenceRef:    ev.DBSequenceRef,
			Start:            ev.Start,
			IsDecoy:          ev.IsDecoy,
		})
	}
	n.stats.Evidence += len(side.Evidence)
}

func (n *Normalizer) emit(it *Item, spectrumID, pairing, p1 int64, p2 *int64, open bool) *pendingSI {
	rank := it.Rank
	if rank == 0 {
		rank = 1
	}
	p := &pendingSI{
		si: core.SpectrumIdentification{
			ID:            n.nextSIID,
			SpectrumID:    spectrumID,
			Peptide1ID:    p1,
			Peptide2ID:    p2,
			Charge:        it.Charge,
			Rank:          rank,
			PassThreshold: it.PassThreshold,
			IonTypes:      core.JoinIonTypes(it.IonTypes),
			Scores:        maps.Clone(it.Scores),
			ExpMZ:         it.ExpMZ,
			CalcMZ:        it.CalcMZ,
			Meta:          it.Meta,
		},
		pairing: pairing,
		open:    open,
		source:  it.Source,
	}
	n.nextSIID++
	n.buffer = append(n.buffer, p)
	n.stats.Identifications++
	if !open {
		n.complete()
	}
	return p
}

func (n *Normalizer) complete() {
	n.sinceFlush++
}

var massLabelRe = regexp.MustCompile(`^[(\[]([+-]?\d*\.?\d+)[)\]]$`)

func (n *Normalizer) modifications(it *Item) error {
	sides := []*Side{&it.Peptide1}
	if it.Peptide2 != nil {
		sides = append(sides, it.Peptide2)
	}
	for _, side := range sides {
		if it.ExplicitMods {
			for _, m := range side.Mods {
				if !m.Resolved {
					n.warn("skipping modification without mass", "item", it.Source, "modification", m.Name, "accession", m.Accession)
					continue
				}
				if _, err := n.registry.Register(m.Name, m.Mass, residues(m.Residue), m.Accession); err != nil {
					return err
				}
			}
			continue
		}

		_, tokens := core.SplitModifiedSequence(side.Sequence)
		for _, tok := range tokens {
			name, mass, accession := tok.Token, 0.0, ""
			if m := massLabelRe.FindStringSubmatch(tok.Token); m != nil {
				mass, _ = strconv.ParseFloat(m[1], 64)
				name = core.UnknownModification
			} else if e, ok := n.modDB.Lookup("", tok.Token); ok {
				mass, accession = e.Mass, e.Accession
			} else {
				n.warn("unknown modification token", "item", it.Source, "token", tok.Token)
			}
			if _, err := n.registry.Register(name, mass, residues(tok.Residue), accession); err != nil {
				return err
			}
		}
	}
	return nil
}

func residues(r string) []string {
	if r == "" {
		return nil
	}
	return []string{r}
}

func (n *Normalizer) warn(msg string, args ...any) {
	n.stats.Warnings++
	n.logger.Warn(msg, args...)
}

// flush hands the current batch to the sink. Identifications are released
// in first-sighting order up to the first open pair; with all set every
// buffered identification must be complete.
func (n *Normalizer) flush(ctx context.Context, all bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cut := len(n.buffer)
	if !all {
		for i, p := range n.buffer {
			if p.open {
				cut = i
				break
			}
		}
	}
	for _, p := range n.buffer[:cut] {
		n.batch.Identifications = append(n.batch.Identifications, p.si)
	}
	n.buffer = append([]*pendingSI(nil), n.buffer[cut:]...)
	n.sinceFlush = 0

	if n.batch.Len() == 0 {
		return nil
	}
	size := n.batch.Len()
	if err := n.sink.WriteBatch(ctx, &n.batch); err != nil {
		return fmt.Errorf("write batch %d: %w", n.stats.Batches+1, err)
	}
	n.stats.Batches++
	n.logger.Debug("batch flushed",
		"batch", n.stats.Batches,
		"records", size,
		"held_back", len(n.buffer),
	)
	n.batch.reset()
	return nil
}

// Finish flushes everything left, emits the modification table and the run
// meta record. It fails if a declared cross-link never received its second
// side.
func (n *Normalizer) Finish(ctx context.Context) error {
	if n.finished {
		return nil
	}
	n.finished = true

	for _, p := range n.buffer {
		if p.open {
			return fmt.Errorf("%w: pair %d from item %d has only one side",
				core.ErrUnpairedCrossLink, p.pairing, p.source)
		}
	}

	n.batch.Modifications = n.registry.Modifications()
	if err := n.flush(ctx, true); err != nil {
		return err
	}

	meta := core.RunMeta{
		UploadID:           n.cfg.UploadID,
		MetaColumns:        n.cfg.MetaColumns,
		ContainsCrosslinks: n.crossLinks,
	}
	if err := n.sink.WriteMeta(ctx, meta); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	n.logger.Info("normalization finished",
		"items", n.stats.Items,
		"spectra", n.stats.Spectra,
		"peptides", n.stats.Peptides,
		"identifications", n.stats.Identifications,
		"cross_links", n.stats.CrossLinks,
		"modifications", n.registry.Len(),
		"warnings", n.stats.Warnings,
	)
	return nil
}

// Source is a stream of items from one identification file.
type Source interface {
	Next() bool
	Item() *Item
	Err() error
	Warnings() int
}

// Run processes every item of src and finishes the run. A read error stops
// the run before Finish; records already flushed stay with the sink.
func (n *Normalizer) Run(ctx context.Context, src Source) error {
	for src.Next() {
		if err := n.Process(ctx, src.Item()); err != nil {
			return err
		}
	}
	n.stats.Warnings += src.Warnings()
	if err := src.Err(); err != nil {
		return err
	}
	return n.Finish(ctx)
}
