package mzid

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/normalize"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

var fragIonRe = regexp.MustCompile(`^frag:\s*([a-z])\s+ion$`)

var knownIonLetters = map[string]bool{"a": true, "b": true, "c": true, "x": true, "y": true, "z": true}

// DefaultFragmentTolerance is used when a protocol declares none.
const DefaultFragmentTolerance = "10 ppm"

// Options configures a Reader.
type Options struct {
	ModDB  *core.ModDatabase
	Logger *slog.Logger
}

type source struct {
	file     string
	format   peaklist.Format
	idFormat peaklist.IDFormat
}

type protocolInfo struct {
	ionTypes  []string
	tolerance string
}

// Reader yields one normalize.Item per SpectrumIdentificationItem.
type Reader struct {
	dec    *xml.Decoder
	modDB  *core.ModDatabase
	logger *slog.Logger

	dbSeqs    map[string]dbSequence
	peptides  map[string]*peptide
	evidences map[string]peptideEvidence
	sides     map[string]normalize.Side
	listProto map[string]string
	protocols map[string]*protocolInfo
	sources   map[string]source

	list     string
	queue    []*normalize.Item
	current  *normalize.Item
	count    int
	err      error
	warnings int
}

// NewReader prepares a streaming reader over an mzIdentML document.
func NewReader(r io.Reader, opts Options) *Reader {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	if opts.ModDB == nil {
		opts.ModDB = core.DefaultModDatabase()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reader{
		dec:       dec,
		modDB:     opts.ModDB,
		logger:    opts.Logger,
		dbSeqs:    make(map[string]dbSequence),
		peptides:  make(map[string]*peptide),
		evidences: make(map[string]peptideEvidence),
		sides:     make(map[string]normalize.Side),
		listProto: make(map[string]string),
		protocols: make(map[string]*protocolInfo),
		sources:   make(map[string]source),
	}
}

// Next advances to the next item.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	for len(r.queue) == 0 {
		more, err := r.advance()
		if err != nil {
			r.err = err
			return false
		}
		if !more {
			return false
		}
	}
	r.current = r.queue[0]
	r.queue = r.queue[1:]
	return true
}

// Item returns the current item.
func (r *Reader) Item() *normalize.Item { return r.current }

// Err returns the error that stopped iteration, if any.
func (r *Reader) Err() error { return r.err }

// Warnings returns the number of non-fatal problems seen so far.
func (r *Reader) Warnings() int { return r.warnings }

// advance decodes elements until at least one item is queued or the
// document ends.
func (r *Reader) advance() (bool, error) {
	for {
		t, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, fmt.Errorf("mzIdentML: %w", err)
		}
		start, ok := t.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "SequenceCollection":
			var sc sequenceCollection
			if err := r.dec.DecodeElement(&sc, &start); err != nil {
				return false, fmt.Errorf("mzIdentML SequenceCollection: %w", err)
			}
			r.indexSequences(&sc)

		case "AnalysisCollection":
			var ac analysisCollection
			if err := r.dec.DecodeElement(&ac, &start); err != nil {
				return false, fmt.Errorf("mzIdentML AnalysisCollection: %w", err)
			}
			for _, si := range ac.SpectrumIdentifications {
				r.listProto[si.ListRef] = si.ProtocolRef
			}

		case "AnalysisProtocolCollection":
			var apc analysisProtocolCollection
			if err := r.dec.DecodeElement(&apc, &start); err != nil {
				return false, fmt.Errorf("mzIdentML AnalysisProtocolCollection: %w", err)
			}
			for i := range apc.Protocols {
				info, err := r.protocolInfo(&apc.Protocols[i])
				if err != nil {
					return false, err
				}
				r.protocols[apc.Protocols[i].ID] = info
			}

		case "Inputs":
			var in inputs
			if err := r.dec.DecodeElement(&in, &start); err != nil {
				return false, fmt.Errorf("mzIdentML Inputs: %w", err)
			}
			for _, sd := range in.SpectraData {
				r.sources[sd.ID] = r.source(&sd)
			}

		case "SpectrumIdentificationList":
			for _, a := range start.Attr {
				if a.Name.Local == "id" {
					r.list = a.Value
				}
			}

		case "SpectrumIdentificationResult":
			var sir spectrumIdentificationResult
			if err := r.dec.DecodeElement(&sir, &start); err != nil {
				return false, fmt.Errorf("mzIdentML SpectrumIdentificationResult: %w", err)
			}
			if err := r.queueResult(&sir); err != nil {
				return false, err
			}
			if len(r.queue) > 0 {
				return true, nil
			}
		}
	}
}

func (r *Reader) indexSequences(sc *sequenceCollection) {
	for _, db := range sc.DBSequences {
		r.dbSeqs[db.ID] = db
	}
	for i := range sc.Peptides {
		r.peptides[sc.Peptides[i].ID] = &sc.Peptides[i]
	}
	for _, pe := range sc.PeptideEvidences {
		r.evidences[pe.ID] = pe
	}
}

func (r *Reader) protocolInfo(p *protocol) (*protocolInfo, error) {
	info := &protocolInfo{tolerance: DefaultFragmentTolerance}

	names := make([]string, 0, len(p.AdditionalCvParams)+len(p.AdditionalUserParams))
	for _, cv := range p.AdditionalCvParams {
		names = append(names, cv.Name)
	}
	for _, up := range p.AdditionalUserParams {
		names = append(names, up.Name)
	}
	for _, name := range names {
		m := fragIonRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(name)))
		if m == nil {
			continue
		}
		if !knownIonLetters[m[1]] {
			r.warn("dropping unknown ion type", "protocol", p.ID, "ion_type", name)
			continue
		}
		info.ionTypes = append(info.ionTypes, m[1])
	}

	for _, cv := range p.FragmentToleranceTerms {
		name := strings.ToLower(cv.Name)
		if !strings.Contains(name, "plus") && cv.Accession != "MS:1001412" {
			continue
		}
		unit := toleranceUnit(cv.UnitName, cv.UnitAccession)
		tol, err := core.NormalizeTolerance(cv.Value + " " + unit)
		if err != nil {
			return nil, fmt.Errorf("protocol %s fragment tolerance: %w", p.ID, err)
		}
		info.tolerance = tol
		break
	}
	return info, nil
}

func toleranceUnit(name, accession string) string {
	switch {
	case accession == "UO:0000169" || strings.EqualFold(name, "parts per million") || strings.EqualFold(name, "ppm"):
		return "ppm"
	case accession == "UO:0000221" || strings.EqualFold(name, "dalton") || strings.EqualFold(name, "da"):
		return "Da"
	}
	return name
}

func (r *Reader) source(sd *spectraData) source {
	s := source{file: locationFile(sd.Location)}
	for _, cv := range sd.FileFormat {
		if f, err := peaklist.ParseFormat(cv.Accession); err == nil {
			s.format = f
			break
		}
	}
	for _, cv := range sd.SpectrumIDFormat {
		if f := peaklist.ParseIDFormat(cv.Accession); f != peaklist.IDFormatUnknown {
			s.idFormat = f
			break
		}
	}
	return s
}

// locationFile reduces a SpectraData location (path or file URL) to its
// file name.
func locationFile(loc string) string {
	if u, err := url.Parse(loc); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		loc = u.Path
	}
	loc = strings.ReplaceAll(loc, `\`, "/")
	return path.Base(loc)
}

func (r *Reader) queueResult(sir *spectrumIdentificationResult) error {
	src := r.sources[sir.SpectraDataRef]
	proto := r.protocols[r.listProto[r.list]]
	if proto == nil {
		proto = &protocolInfo{tolerance: DefaultFragmentTolerance}
	}

	for i := range sir.Items {
		sii := &sir.Items[i]
		r.count++

		side, err := r.side(sii.PeptideRef)
		if err != nil {
			return fmt.Errorf("item %d (%s): %w", r.count, sii.ID, err)
		}
		side.Evidence = r.evidence(sii)

		it := &normalize.Item{
			Source:            r.count,
			PeakListFile:      src.file,
			SpectrumID:        sir.SpectrumID,
			Format:            src.format,
			IDFormat:          src.idFormat,
			FragmentTolerance: proto.tolerance,
			Peptide1:          side,
			ExplicitMods:      true,
			Charge:            sii.ChargeState,
			Rank:              sii.Rank,
			PassThreshold:     sii.PassThreshold,
			IonTypes:          proto.ionTypes,
			Scores:            make(map[string]float64),
			ExpMZ:             attrFloat(sii.ExperimentalMassToCharge, -1),
			CalcMZ:            attrFloat(sii.CalculatedMassToCharge, -1),
		}
		for _, cv := range sii.CvPar {
			if cv.Accession == cvCrossLinkSII {
				it.PairKey = cv.Value
				continue
			}
			if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
				it.Scores[cv.Name] = v
			}
		}
		for _, up := range sii.UserPar {
			if v, err := strconv.ParseFloat(up.Value, 64); err == nil {
				it.Scores[up.Name] = v
			}
		}
		r.queue = append(r.queue, it)
	}
	return nil
}

func (r *Reader) evidence(sii *spectrumIdentificationItem) []normalize.Evidence {
	out := make([]normalize.Evidence, 0, len(sii.PeptideEvidenceRefs))
	for _, ref := range sii.PeptideEvidenceRefs {
		pe, ok := r.evidences[ref.Ref]
		if !ok {
			r.warn("unknown peptide evidence reference", "ref", ref.Ref, "item", sii.ID)
			continue
		}
		accession := pe.DBSequenceRef
		if db, ok := r.dbSeqs[pe.DBSequenceRef]; ok && db.Accession != "" {
			accession = db.Accession
		}
		start := -1
		if n, err := strconv.Atoi(strings.TrimSpace(pe.Start)); err == nil {
			start = n
		}
		out = append(out, normalize.Evidence{
			Protein:       accession,
			DBSequenceRef: pe.DBSequenceRef,
			Start:         start,
			IsDecoy:       pe.IsDecoy,
		})
	}
	return out
}

// side builds the modified sequence, modification list and cross-link
// fields of a peptide. Results are cached per peptide id.
func (r *Reader) side(ref string) (normalize.Side, error) {
	if s, ok := r.sides[ref]; ok {
		return s, nil
	}
	p, ok := r.peptides[ref]
	if !ok {
		return normalize.Side{}, fmt.Errorf("unknown peptide reference %q", ref)
	}

	seq := strings.TrimSpace(p.PeptideSequence)
	side := normalize.Side{LinkSite: -1}
	inserts := make(map[int][]string)

	for _, mod := range p.Modifications {
		loc := min(max(mod.Location, 0), len(seq)+1)
		mass, hasMass := 0.0, mod.MonoisotopicMassDelta != ""
		if hasMass {
			mass = attrFloat(mod.MonoisotopicMassDelta, 0)
		}

		switch crossLinkRole(mod.CvPar) {
		case "donor":
			side.LinkSite = loc
			side.CrosslinkerMass = mass
			continue
		case "acceptor":
			side.LinkSite = loc
			continue
		}

		name, accession := modName(mod.CvPar)
		if !hasMass {
			if e, ok := r.modDB.Lookup(accession, name); ok {
				mass, hasMass = e.Mass, true
			}
		}

		residue := ""
		if loc >= 1 && loc <= len(seq) {
			residue = seq[loc-1 : loc]
		}
		side.Mods = append(side.Mods, normalize.Mod{
			Name:      name,
			Mass:      mass,
			Residue:   residue,
			Accession: accession,
			Resolved:  hasMass,
		})

		token := name
		if name == core.UnknownModification {
			token = core.MassLabel(mass)
		}
		inserts[loc] = append(inserts[loc], token)
	}

	var b strings.Builder
	b.WriteString(strings.Join(inserts[0], ""))
	for i := 1; i <= len(seq); i++ {
		b.WriteByte(seq[i-1])
		b.WriteString(strings.Join(inserts[i], ""))
	}
	b.WriteString(strings.Join(inserts[len(seq)+1], ""))
	side.Sequence = b.String()

	r.sides[ref] = side
	return side, nil
}

// modName picks the display name and accession of a modification from its
// cvParams, lowercased and without spaces.
func modName(params []cvParam) (string, string) {
	for _, cv := range params {
		if cv.Accession == cvUnknownModification || strings.EqualFold(cv.Name, "unknown modification") {
			return core.UnknownModification, ""
		}
	}
	for _, cv := range params {
		if cv.Name == "" {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cv.Name), " ", "_"))
		return name, cv.Accession
	}
	return core.UnknownModification, ""
}

func (r *Reader) warn(msg string, args ...any) {
	r.warnings++
	r.logger.Warn(msg, args...)
}
