package peaklist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/filter"
)

// Scan is the data retrieved for one spectrum.
type Scan struct {
	PeakList        string
	Peaks           []core.Peak
	PrecursorMZ     float64
	PrecursorCharge int
}

// Reader provides random access to the spectra of one peak-list file. It
// owns the open file and its index until Close.
type Reader struct {
	path     string
	format   Format
	idFormat IDFormat
	filter   *filter.Config

	src    io.ReaderAt
	size   int64
	closer io.Closer

	index      *Index
	structured *mzmlFile
}

// Option configures a Reader.
type Option func(*Reader)

// WithFilter applies peak post-filters to every retrieved scan.
func WithFilter(cfg *filter.Config) Option {
	return func(r *Reader) { r.filter = cfg }
}

// Open opens path, or path+".gz" when path does not exist, and indexes it
// according to format.
func Open(path string, format Format, idFormat IDFormat, opts ...Option) (*Reader, error) {
	if format == FormatUnknown {
		return nil, &core.FileError{Kind: core.ErrUnsupportedFormat, Path: path}
	}

	src, size, closer, err := openSource(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		path:     path,
		format:   format,
		idFormat: idFormat,
		src:      src,
		size:     size,
		closer:   closer,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.buildIndex(); err != nil {
		_ = r.Close()
		if errors.Is(err, core.ErrUnsupportedFormat) {
			return nil, &core.FileError{Kind: core.ErrUnsupportedFormat, Path: path, Err: err}
		}
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return r, nil
}

func openSource(path string) (io.ReaderAt, int64, io.Closer, error) {
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return openGzip(path, path)
	}

	f, err := os.Open(path)
	if err == nil {
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, 0, nil, fmt.Errorf("stat %s: %w", path, statErr)
		}
		return f, info.Size(), f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return openGzip(path, path+".gz")
}

// openGzip decompresses a gzip file fully into memory so spans can be read
// at arbitrary offsets.
func openGzip(path, gzPath string) (io.ReaderAt, int64, io.Closer, error) {
	f, err := os.Open(gzPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil, &core.FileError{Kind: core.ErrMissingPeakListFile, Path: path}
		}
		return nil, 0, nil, fmt.Errorf("open %s: %w", gzPath, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("gzip %s: %w", gzPath, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("gzip %s: %w", gzPath, err)
	}
	return bytes.NewReader(data), int64(len(data)), nil, nil
}

func (r *Reader) buildIndex() error {
	section := io.NewSectionReader(r.src, 0, r.size)
	var err error
	switch r.format {
	case FormatBoundary:
		r.index, err = BuildBoundaryIndex(section)
	case FormatHeaderLine:
		r.index, err = BuildHeaderIndex(section)
	case FormatStructured:
		r.structured, err = readMzML(section)
	default:
		err = core.ErrUnsupportedFormat
	}
	return err
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Format returns the container format.
func (r *Reader) Format() Format { return r.format }

// Len returns the number of spectra in the file.
func (r *Reader) Len() int {
	if r.structured != nil {
		return len(r.structured.spectra)
	}
	if r.index != nil {
		return r.index.Len()
	}
	return 0
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Scan retrieves the peaks and precursor of the spectrum addressed by rawID.
func (r *Reader) Scan(rawID string) (*Scan, error) {
	key, err := ResolveSpectrumID(rawID, r.idFormat, r.format == FormatStructured)
	if err != nil {
		return nil, err
	}
	return r.ScanByKey(key)
}

// ScanByKey retrieves a spectrum by an already resolved key.
func (r *Reader) ScanByKey(key ScanKey) (*Scan, error) {
	if r.structured != nil {
		return r.structuredScan(key)
	}

	span, ok := r.index.Lookup(key)
	if !ok {
		return nil, &core.ScanError{Path: r.path, Key: key.String()}
	}
	buf := make([]byte, span.Len())
	if _, err := r.src.ReadAt(buf, span.Start); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s at %d: %w", r.path, span.Start, err)
	}

	scan := parseTextSpectrum(buf, r.format)
	if r.filter.Active() {
		scan.Peaks = r.filter.Apply(scan.Peaks)
		scan.PeakList = core.FormatPeakList(scan.Peaks)
	}
	return scan, nil
}

// Raw returns the exact bytes of the span at zero-based position i.
func (r *Reader) Raw(i int) ([]byte, error) {
	if r.index == nil {
		return nil, fmt.Errorf("%w: raw spans are only available for text formats", core.ErrUnsupportedFormat)
	}
	span, ok := r.index.Span(i)
	if !ok {
		return nil, &core.ScanError{Path: r.path, Key: ScanKey{Kind: KeyIndex, Number: i}.String()}
	}
	buf := make([]byte, span.Len())
	if _, err := r.src.ReadAt(buf, span.Start); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) structuredScan(key ScanKey) (*Scan, error) {
	i, ok := r.structured.lookup(key)
	if !ok {
		return nil, &core.ScanError{Path: r.path, Key: key.String()}
	}
	peaks, err := r.structured.peaks(i)
	if err != nil {
		return nil, err
	}
	peaks = filter.RemoveZeroIntensityPeaks(peaks)
	if r.filter.Active() {
		peaks = r.filter.Apply(peaks)
	}
	mz, charge := r.structured.precursor(i)
	return &Scan{
		PeakList:        core.FormatPeakList(peaks),
		Peaks:           peaks,
		PrecursorMZ:     mz,
		PrecursorCharge: charge,
	}, nil
}

var (
	peakLineRe = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s+([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)(?:\s|$)`)
	chargeRe   = regexp.MustCompile(`(\d+)\s*([+-]?)`)
)

// parseTextSpectrum extracts the peak lines and precursor of one MGF or MS2
// spectrum block. Peak lines are kept verbatim.
func parseTextSpectrum(block []byte, format Format) *Scan {
	scan := &Scan{}
	var lines []string
	var ms2MZ float64

	for _, raw := range strings.Split(string(block), "\n") {
		line := strings.TrimRight(raw, "\r")
		if m := peakLineRe.FindStringSubmatch(line); m != nil {
			mz, errMZ := strconv.ParseFloat(m[1], 64)
			intensity, errInt := strconv.ParseFloat(m[2], 64)
			if errMZ == nil && errInt == nil {
				lines = append(lines, strings.TrimSpace(line))
				scan.Peaks = append(scan.Peaks, core.Peak{MZ: mz, Intensity: intensity})
				continue
			}
		}

		switch format {
		case FormatBoundary:
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "PEPMASS="):
				if f := strings.Fields(line[len("PEPMASS="):]); len(f) > 0 {
					scan.PrecursorMZ, _ = strconv.ParseFloat(f[0], 64)
				}
			case strings.HasPrefix(upper, "CHARGE="):
				scan.PrecursorCharge = parseCharge(line[len("CHARGE="):])
			}
		case FormatHeaderLine:
			f := strings.Fields(line)
			if len(f) == 0 {
				continue
			}
			switch f[0] {
			case "S":
				if len(f) > 3 {
					ms2MZ, _ = strconv.ParseFloat(f[3], 64)
				}
			case "Z":
				if scan.PrecursorCharge == 0 && len(f) > 2 {
					charge, errC := strconv.Atoi(f[1])
					mass, errM := strconv.ParseFloat(f[2], 64)
					if errC == nil && errM == nil {
						scan.PrecursorCharge = charge
						scan.PrecursorMZ = core.NeutralMassToMZ(mass, charge)
					}
				}
			}
		}
	}

	if scan.PrecursorMZ == 0 && ms2MZ != 0 {
		scan.PrecursorMZ = ms2MZ
	}
	scan.PeakList = strings.Join(lines, "\n")
	return scan
}

// parseCharge reads the first charge of an MGF CHARGE value such as "2+",
// "3-" or "2+ and 3+".
func parseCharge(v string) int {
	m := chargeRe.FindStringSubmatch(v)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if m[2] == "-" {
		return -n
	}
	return n
}
