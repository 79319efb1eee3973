package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MassEntry is one row of the modification mass table.
type MassEntry struct {
	Name      string
	Mass      float64
	Accession string
}

// ModDatabase is the external modification mass table. Lookups work by
// display name (case-insensitive) or by controlled-vocabulary accession.
type ModDatabase struct {
	byName      map[string]MassEntry
	byAccession map[string]MassEntry
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		byName:      make(map[string]MassEntry),
		byAccession: make(map[string]MassEntry),
	}
}

// LoadFromCSV loads modifications from a CSV file
// (format: mod,massshift,aa[,accession]). The first line is a header.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		accession := ""
		if len(parts) >= 4 {
			accession = strings.TrimSpace(parts[3])
		}
		db.AddEntry(MassEntry{Name: modName, Mass: mass, Accession: accession})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Lookup resolves a modification by accession first, then by name.
func (db *ModDatabase) Lookup(accession, name string) (MassEntry, bool) {
	if accession != "" {
		if e, ok := db.byAccession[strings.ToUpper(accession)]; ok {
			return e, true
		}
	}
	if name != "" {
		if e, ok := db.byName[strings.ToLower(name)]; ok {
			return e, true
		}
	}
	return MassEntry{}, false
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.AddEntry(MassEntry{Name: name, Mass: mass})
}

// AddEntry adds or updates a modification with an optional accession.
func (db *ModDatabase) AddEntry(e MassEntry) {
	db.byName[strings.ToLower(e.Name)] = e
	if e.Accession != "" {
		db.byAccession[strings.ToUpper(e.Accession)] = e
	}
}

// Len returns the number of named entries.
func (db *ModDatabase) Len() int {
	return len(db.byName)
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	for _, e := range []MassEntry{
		{"Acetyl", 42.010565, "UNIMOD:1"},
		{"Amidated", -0.984016, "UNIMOD:2"},
		{"Biotin", 226.077598, "UNIMOD:3"},
		{"Carbamidomethyl", 57.021464, "UNIMOD:4"},
		{"Carbamyl", 43.005814, "UNIMOD:5"},
		{"Carboxymethyl", 58.005479, "UNIMOD:6"},
		{"Deamidated", 0.984016, "UNIMOD:7"},
		{"Met->Hse", -29.992806, "UNIMOD:10"},
		{"Met->Hsl", -48.003371, "UNIMOD:11"},
		{"NIPCAM", 99.068414, "UNIMOD:17"},
		{"Phospho", 79.966331, "UNIMOD:21"},
		{"Dehydrated", -18.010565, "UNIMOD:23"},
		{"Propionamide", 71.037114, "UNIMOD:24"},
		{"Pyro-carbamidomethyl", 39.994915, "UNIMOD:26"},
		{"Glu->pyro-Glu", -18.010565, "UNIMOD:27"},
		{"Gln->pyro-Glu", -17.026549, "UNIMOD:28"},
		{"Cation:Na", 21.981943, "UNIMOD:30"},
		{"Methyl", 14.01565, "UNIMOD:34"},
		{"Oxidation", 15.994915, "UNIMOD:35"},
		{"Dimethyl", 28.0313, "UNIMOD:36"},
		{"Trimethyl", 42.04695, "UNIMOD:37"},
		{"Methylthio", 45.987721, "UNIMOD:39"},
		{"Sulfo", 79.956815, "UNIMOD:40"},
		{"Hex", 162.052824, "UNIMOD:41"},
		{"Lipoyl", 188.032956, "UNIMOD:42"},
		{"HexNAc", 203.079373, "UNIMOD:43"},
		{"Farnesyl", 204.187801, "UNIMOD:44"},
		{"Myristoyl", 210.198366, "UNIMOD:45"},
		{"PyridoxalPhosphate", 229.014009, "UNIMOD:46"},
		{"Palmitoyl", 238.229666, "UNIMOD:47"},
		{"GeranylGeranyl", 272.250401, "UNIMOD:48"},
		{"Phosphopantetheine", 340.085794, "UNIMOD:49"},
		{"FAD", 783.141486, "UNIMOD:50"},
		{"Guanidinyl", 42.021798, "UNIMOD:52"},
		{"HNE", 156.11503, "UNIMOD:53"},
		{"Glucuronyl", 176.032088, "UNIMOD:54"},
		{"Glutathione", 305.068156, "UNIMOD:55"},
		{"Propionyl", 56.026215, "UNIMOD:58"},
		{"iTRAQ4plex", 144.102063, "UNIMOD:214"},
		{"TMT6plex", 229.162932, "UNIMOD:737"},
		{"iTRAQ8plex", 304.205360, "UNIMOD:730"},
		{"TMTPro", 304.207146, "UNIMOD:2016"},
		{"TMT", 229.162932, ""},
		{"TMT10plex", 229.162932, ""},
		{"TMT11plex", 229.162932, ""},
		{"TMT16plex", 304.207146, ""},
	} {
		db.AddEntry(e)
	}

	// Short inline tokens used in tabular cross-link results
	db.Add("ox", 15.994915)
	db.Add("cm", 57.021464)
	db.Add("ph", 79.966331)
	db.Add("ac", 42.010565)
	db.Add("me", 14.01565)
	db.Add("dm", 28.0313)
	db.Add("deam", 0.984016)
	db.Add("bs3nh2", 155.094629)
	db.Add("bs3oh", 156.078644)
	db.Add("bs3loop", 138.068080)
	db.Add("dssnh2", 155.094629)
	db.Add("dssoh", 156.078644)

	return db
}
