package normalize

import (
	"context"

	"github.com/ChrisMcGann/psmload/pkg/core"
)

// Batch holds the records produced since the previous flush.
type Batch struct {
	Spectra         []core.Spectrum
	Peptides        []core.Peptide
	Evidence        []core.PeptideEvidence
	Identifications []core.SpectrumIdentification
	Modifications   []core.Modification
}

// Len returns the total number of records in the batch.
func (b *Batch) Len() int {
	return len(b.Spectra) + len(b.Peptides) + len(b.Evidence) +
		len(b.Identifications) + len(b.Modifications)
}

func (b *Batch) reset() {
	*b = Batch{}
}

// Sink persists normalized records. Batches arrive in emission order; a
// record only references records delivered in the same or an earlier batch.
type Sink interface {
	WriteBatch(ctx context.Context, b *Batch) error
	WriteMeta(ctx context.Context, meta core.RunMeta) error
}

// MemorySink keeps everything it receives. It backs dry runs and tests.
type MemorySink struct {
	Batches         int
	Spectra         []core.Spectrum
	Peptides        []core.Peptide
	Evidence        []core.PeptideEvidence
	Identifications []core.SpectrumIdentification
	Modifications   []core.Modification
	Meta            *core.RunMeta
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) WriteBatch(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Batches++
	m.Spectra = append(m.Spectra, b.Spectra...)
	m.Peptides = append(m.Peptides, b.Peptides...)
	m.Evidence = append(m.Evidence, b.Evidence...)
	m.Identifications = append(m.Identifications, b.Identifications...)
	m.Modifications = append(m.Modifications, b.Modifications...)
	return nil
}

func (m *MemorySink) WriteMeta(ctx context.Context, meta core.RunMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Meta = &meta
	return nil
}
