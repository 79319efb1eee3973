package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// UploadSummary counts the records stored for one upload.
type UploadSummary struct {
	UploadID           string
	CreatedAt          string
	ContainsCrosslinks bool
	Spectra            int
	Peptides           int
	Evidence           int
	Identifications    int
	CrossLinks         int
	Modifications      int
}

var summaryCounts = []struct {
	query string
	dst   func(*UploadSummary) *int
}{
	{"SELECT COUNT(*) FROM spectra WHERE upload_id = ?", func(s *UploadSummary) *int { return &s.Spectra }},
	{"SELECT COUNT(*) FROM peptides WHERE upload_id = ?", func(s *UploadSummary) *int { return &s.Peptides }},
	{"SELECT COUNT(*) FROM peptide_evidences WHERE upload_id = ?", func(s *UploadSummary) *int { return &s.Evidence }},
	{"SELECT COUNT(*) FROM spectrum_identifications WHERE upload_id = ?", func(s *UploadSummary) *int { return &s.Identifications }},
	{"SELECT COUNT(*) FROM spectrum_identifications WHERE upload_id = ? AND pep2_id IS NOT NULL", func(s *UploadSummary) *int { return &s.CrossLinks }},
	{"SELECT COUNT(*) FROM modifications WHERE upload_id = ?", func(s *UploadSummary) *int { return &s.Modifications }},
}

// Summarize opens the database at path read-only and counts the records of
// every finished upload, oldest first.
func Summarize(ctx context.Context, path string) ([]UploadSummary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT upload_id, created_at, contains_crosslinks FROM upload_meta ORDER BY created_at, upload_id")
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	var out []UploadSummary
	for rows.Next() {
		var s UploadSummary
		if err := rows.Scan(&s.UploadID, &s.CreatedAt, &s.ContainsCrosslinks); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}

	for i := range out {
		for _, c := range summaryCounts {
			if err := db.QueryRowContext(ctx, c.query, out[i].UploadID).Scan(c.dst(&out[i])); err != nil {
				return nil, fmt.Errorf("count upload %s: %w", out[i].UploadID, err)
			}
		}
	}
	return out, nil
}
