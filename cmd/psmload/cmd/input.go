package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/normalize"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
	"github.com/ChrisMcGann/psmload/pkg/reader/csv"
	"github.com/ChrisMcGann/psmload/pkg/reader/mzid"
)

// inputFlags are shared by convert and validate and override the config.
type inputFlags struct {
	peakListDir  string
	columnSet    string
	idFormat     string
	positionBase int
	strictLinks  bool
	noPeaks      bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.peakListDir, "peak-lists", "", "Directory holding the referenced peak lists (default: next to the input)")
	cmd.Flags().StringVar(&f.columnSet, "column-set", "", "Tabular column set: default or no_peak_lists")
	cmd.Flags().StringVar(&f.idFormat, "id-format", "", "Spectrum id format of tabular scan ids (index, scan, thermo, native, single)")
	cmd.Flags().IntVar(&f.positionBase, "peptide-position-base", 1, "Base of the peppos columns, 0 or 1")
	cmd.Flags().BoolVar(&f.strictLinks, "strict-link-positions", false, "Also require linkpos2 on cross-link rows")
	cmd.Flags().BoolVar(&f.noPeaks, "no-peaks", false, "Do not read peak lists; spectra are stored without peaks")
}

func (f *inputFlags) apply(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("peak-lists") {
		cfg.Input.PeakListDir = f.peakListDir
	}
	if flags.Changed("column-set") {
		cfg.Input.ColumnSet = strings.ToLower(strings.TrimSpace(f.columnSet))
	}
	if flags.Changed("id-format") {
		cfg.Input.IDFormat = f.idFormat
	}
	if flags.Changed("peptide-position-base") {
		cfg.Input.PeptidePositionBase = f.positionBase
	}
	if flags.Changed("strict-link-positions") {
		cfg.Input.StrictLinkPositions = f.strictLinks
	}
	if f.noPeaks {
		cfg.Input.MaterializePeaks = false
	}
	return cfg.Validate()
}

// input is an opened identification file.
type input struct {
	source      normalize.Source
	metaColumns []string
	closers     []io.Closer
}

func (in *input) Close() error {
	var first error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func isMzIdentML(path string) bool {
	name := strings.TrimSuffix(strings.ToLower(path), ".gz")
	return strings.HasSuffix(name, ".mzid") || strings.HasSuffix(name, ".mzidentml")
}

// openInput opens path as mzIdentML or tabular results depending on its
// extension. A .gz suffix is decompressed transparently.
func openInput(path string, modDB *core.ModDatabase) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	in := &input{closers: []io.Closer{f}}

	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("failed to open gzip input: %w", err)
		}
		in.closers = append(in.closers, zr)
		r = zr
	}

	if isMzIdentML(path) {
		in.source = mzid.NewReader(r, mzid.Options{ModDB: modDB, Logger: logger})
		return in, nil
	}

	columns, err := csv.ColumnSetByName(cfg.Input.ColumnSet)
	if err != nil {
		in.Close()
		return nil, err
	}
	cr, err := csv.NewReader(r, csv.Options{
		Columns:             columns,
		ZeroBasedPositions:  cfg.Input.PeptidePositionBase == 0,
		StrictLinkPositions: cfg.Input.StrictLinkPositions,
		Logger:              logger,
	})
	if err != nil {
		in.Close()
		return nil, err
	}
	in.metaColumns = cr.MetaColumns()
	in.source = normalize.NewRows(cr, cfg.SpectrumIDFormat())
	return in, nil
}

// peakPool returns the peak-list pool for inputPath, or nil when peaks are
// not materialized.
func peakPool(inputPath string) *peaklist.Pool {
	if !cfg.Input.MaterializePeaks || cfg.Input.ColumnSet == "no_peak_lists" {
		return nil
	}
	dir := cfg.Input.PeakListDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return peaklist.NewPool(dir, logger, peaklist.WithFilter(cfg.FilterConfig()))
}

// normalizerConfig assembles the run configuration. pool may be nil.
func normalizerConfig(uploadID string, in *input, pool *peaklist.Pool, modDB *core.ModDatabase) normalize.Config {
	nc := normalize.Config{
		UploadID:    uploadID,
		BatchSize:   cfg.Output.BatchSize,
		MetaColumns: in.metaColumns,
		Logger:      logger,
		Registry:    cfg.Registry(),
		ModDB:       modDB,
	}
	if pool != nil {
		nc.Peaks = pool
	}
	return nc
}
