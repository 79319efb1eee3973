// Package sqlite persists normalized identification records to a SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/normalize"
)

// ErrLocked is returned when another process holds the output database.
var ErrLocked = errors.New("output database is locked by another process")

const createdAtFormat = "2006-01-02T15:04:05Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS spectra (
	id INTEGER NOT NULL,
	upload_id TEXT NOT NULL,
	peak_list_file_name TEXT,
	scan_id TEXT,
	peak_list TEXT,
	frag_tol TEXT,
	precursor_mz DOUBLE,
	precursor_charge INTEGER,
	PRIMARY KEY (id, upload_id)
);

CREATE TABLE IF NOT EXISTS peptides (
	id INTEGER NOT NULL,
	upload_id TEXT NOT NULL,
	seq_mods TEXT,
	link_site INTEGER,
	crosslinker_modmass DOUBLE,
	crosslinker_pair_id INTEGER,
	PRIMARY KEY (id, upload_id)
);

CREATE TABLE IF NOT EXISTS peptide_evidences (
	upload_id TEXT NOT NULL,
	peptide_ref INTEGER,
	dbsequence_ref TEXT,
	protein_accession TEXT,
	pep_start INTEGER,
	is_decoy BOOL
);

CREATE TABLE IF NOT EXISTS spectrum_identifications (
	id INTEGER NOT NULL,
	upload_id TEXT NOT NULL,
	spectrum_id INTEGER,
	pep1_id INTEGER,
	pep2_id INTEGER,
	charge_state INTEGER,
	rank INTEGER,
	pass_threshold BOOL,
	ion_types TEXT,
	scores TEXT,
	exp_mz DOUBLE,
	calc_mz DOUBLE,
	meta TEXT,
	PRIMARY KEY (id, upload_id)
);

CREATE TABLE IF NOT EXISTS modifications (
	upload_id TEXT NOT NULL,
	mod_name TEXT,
	mass DOUBLE,
	residues TEXT,
	accession TEXT
);

CREATE TABLE IF NOT EXISTS upload_meta (
	upload_id TEXT PRIMARY KEY,
	meta_columns TEXT,
	contains_crosslinks BOOL,
	created_at TEXT
);
`

// Writer is a normalize.Sink backed by a SQLite file. Each batch is written
// in its own transaction.
type Writer struct {
	db         *sql.DB
	outputPath string
	uploadID   string
	lock       *flock.Flock

	spectrumStmt *sql.Stmt
	peptideStmt  *sql.Stmt
	evidenceStmt *sql.Stmt
	identStmt    *sql.Stmt
	modStmt      *sql.Stmt
	metaStmt     *sql.Stmt
}

var _ normalize.Sink = (*Writer)(nil)

// NewWriter opens (or creates) the database at outputPath and takes an
// exclusive lock next to it. Records are tagged with uploadID.
func NewWriter(outputPath, uploadID string) (*Writer, error) {
	lock := flock.New(outputPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, outputPath)
	}

	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		uploadID:   uploadID,
		lock:       lock,
	}

	if err := w.createTables(); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.prepareStatements(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) createTables() error {
	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (w *Writer) prepareStatements() error {
	statements := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&w.spectrumStmt, "spectrum", `INSERT INTO spectra (
			id, upload_id, peak_list_file_name, scan_id, peak_list, frag_tol,
			precursor_mz, precursor_charge
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.peptideStmt, "peptide", `INSERT INTO peptides (
			id, upload_id, seq_mods, link_site, crosslinker_modmass, crosslinker_pair_id
		) VALUES (?, ?, ?, ?, ?, ?)`},
		{&w.evidenceStmt, "evidence", `INSERT INTO peptide_evidences (
			upload_id, peptide_ref, dbsequence_ref, protein_accession, pep_start, is_decoy
		) VALUES (?, ?, ?, ?, ?, ?)`},
		{&w.identStmt, "identification", `INSERT INTO spectrum_identifications (
			id, upload_id, spectrum_id, pep1_id, pep2_id, charge_state, rank,
			pass_threshold, ion_types, scores, exp_mz, calc_mz, meta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.modStmt, "modification", `INSERT INTO modifications (
			upload_id, mod_name, mass, residues, accession
		) VALUES (?, ?, ?, ?, ?)`},
		{&w.metaStmt, "meta", `INSERT OR REPLACE INTO upload_meta (
			upload_id, meta_columns, contains_crosslinks, created_at
		) VALUES (?, ?, ?, ?)`},
	}
	for _, s := range statements {
		stmt, err := w.db.Prepare(s.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", s.name, err)
		}
		*s.dst = stmt
	}
	return nil
}

// WriteBatch inserts one batch atomically.
func (w *Writer) WriteBatch(ctx context.Context, b *normalize.Batch) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt := tx.StmtContext(ctx, w.spectrumStmt)
	for _, s := range b.Spectra {
		var peaks any
		if s.PeakList != nil {
			peaks = *s.PeakList
		}
		if _, err = stmt.ExecContext(ctx,
			s.ID, w.uploadID, s.PeakListFile, s.ScanID, peaks, s.FragmentTolerance,
			s.PrecursorMZ, s.PrecursorCharge,
		); err != nil {
			return fmt.Errorf("failed to insert spectrum %d: %w", s.ID, err)
		}
	}

	stmt = tx.StmtContext(ctx, w.peptideStmt)
	for _, p := range b.Peptides {
		if _, err = stmt.ExecContext(ctx,
			p.ID, w.uploadID, p.Sequence, p.LinkSite, p.CrosslinkerModMass, p.PairID,
		); err != nil {
			return fmt.Errorf("failed to insert peptide %d: %w", p.ID, err)
		}
	}

	stmt = tx.StmtContext(ctx, w.evidenceStmt)
	for _, e := range b.Evidence {
		if _, err = stmt.ExecContext(ctx,
			w.uploadID, e.PeptideID, e.DBSequenceRef, e.ProteinAccession, e.Start, e.IsDecoy,
		); err != nil {
			return fmt.Errorf("failed to insert evidence for peptide %d: %w", e.PeptideID, err)
		}
	}

	stmt = tx.StmtContext(ctx, w.identStmt)
	for _, si := range b.Identifications {
		var scores, meta []byte
		if scores, err = json.Marshal(si.Scores); err != nil {
			return fmt.Errorf("encode scores of identification %d: %w", si.ID, err)
		}
		if meta, err = json.Marshal(si.Meta); err != nil {
			return fmt.Errorf("encode meta of identification %d: %w", si.ID, err)
		}
		var pep2 any
		if si.Peptide2ID != nil {
			pep2 = *si.Peptide2ID
		}
		if _, err = stmt.ExecContext(ctx,
			si.ID, w.uploadID, si.SpectrumID, si.Peptide1ID, pep2, si.Charge, si.Rank,
			si.PassThreshold, si.IonTypes, string(scores), si.ExpMZ, si.CalcMZ, string(meta),
		); err != nil {
			return fmt.Errorf("failed to insert identification %d: %w", si.ID, err)
		}
	}

	stmt = tx.StmtContext(ctx, w.modStmt)
	for _, m := range b.Modifications {
		if _, err = stmt.ExecContext(ctx,
			w.uploadID, m.Name, m.Mass, strings.Join(m.Residues, ""), m.Accession,
		); err != nil {
			return fmt.Errorf("failed to insert modification %s: %w", m.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// WriteMeta records the upload summary.
func (w *Writer) WriteMeta(ctx context.Context, meta core.RunMeta) error {
	cols, err := json.Marshal(meta.MetaColumns)
	if err != nil {
		return fmt.Errorf("encode meta columns: %w", err)
	}
	uploadID := meta.UploadID
	if uploadID == "" {
		uploadID = w.uploadID
	}
	if _, err := w.metaStmt.ExecContext(ctx,
		uploadID, string(cols), meta.ContainsCrosslinks, time.Now().UTC().Format(createdAtFormat),
	); err != nil {
		return fmt.Errorf("failed to insert upload meta: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (w *Writer) Path() string { return w.outputPath }

// Close releases the statements, the database and the lock.
func (w *Writer) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{
		w.spectrumStmt, w.peptideStmt, w.evidenceStmt, w.identStmt, w.modStmt, w.metaStmt,
	} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	if err := w.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	return errors.Join(errs...)
}
