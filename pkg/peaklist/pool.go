package peaklist

import (
	"errors"
	"log/slog"
	"path/filepath"
)

// Pool opens each distinct peak-list file once and keeps it open for the
// rest of the run.
type Pool struct {
	dir     string
	opts    []Option
	logger  *slog.Logger
	readers map[string]*Reader
}

// NewPool creates a pool resolving relative file names against dir.
func NewPool(dir string, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		dir:     dir,
		opts:    opts,
		logger:  logger,
		readers: make(map[string]*Reader),
	}
}

// Get returns the reader for name, opening and indexing it on first use.
func (p *Pool) Get(name string, format Format, idFormat IDFormat) (*Reader, error) {
	path := name
	if p.dir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(p.dir, name)
	}
	if r, ok := p.readers[path]; ok {
		return r, nil
	}

	r, err := Open(path, format, idFormat, p.opts...)
	if err != nil {
		return nil, err
	}
	p.logger.Info("peak list indexed",
		"path", path,
		"format", format.String(),
		"id_format", idFormat.String(),
		"spectra", r.Len(),
	)
	p.readers[path] = r
	return r, nil
}

// Scan retrieves one spectrum from the named file. An unknown format is
// derived from the file extension.
func (p *Pool) Scan(name string, format Format, idFormat IDFormat, rawID string) (*Scan, error) {
	if format == FormatUnknown {
		f, err := FormatForFile(name)
		if err != nil {
			return nil, err
		}
		format = f
	}
	r, err := p.Get(name, format, idFormat)
	if err != nil {
		return nil, err
	}
	return r.Scan(rawID)
}

// Len returns the number of open readers.
func (p *Pool) Len() int { return len(p.readers) }

// Close closes every reader in the pool.
func (p *Pool) Close() error {
	var errs []error
	for path, r := range p.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.readers, path)
	}
	return errors.Join(errs...)
}
