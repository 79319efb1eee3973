// Package config loads psmload settings from TOML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/filter"
	"github.com/ChrisMcGann/psmload/pkg/normalize"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

// ProjectConfigName is picked up from the working directory when no path
// is given.
const ProjectConfigName = "psmload.toml"

// Input controls how identification files and peak lists are read.
type Input struct {
	ColumnSet           string `toml:"column_set"`
	PeptidePositionBase int    `toml:"peptide_position_base"`
	StrictLinkPositions bool   `toml:"strict_link_positions"`
	IDFormat            string `toml:"id_format"`
	PeakListDir         string `toml:"peak_list_dir"`
	MaterializePeaks    bool   `toml:"materialize_peaks"`
}

// Output controls the sink.
type Output struct {
	Path      string `toml:"path"`
	BatchSize int    `toml:"batch_size"`
}

// Filter mirrors filter.Config.
type Filter struct {
	TopN            int     `toml:"top_n"`
	IntensityCutoff float64 `toml:"intensity_cutoff"`
}

// Modifications controls the registry and the external mass table.
type Modifications struct {
	MassTable  string `toml:"mass_table"`
	Precision  int    `toml:"precision"`
	MaxRenames int    `toml:"max_renames"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Input         Input         `toml:"input"`
	Output        Output        `toml:"output"`
	Filter        Filter        `toml:"filter"`
	Modifications Modifications `toml:"modifications"`
	Logging       Logging       `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input: Input{
			ColumnSet:           "default",
			PeptidePositionBase: 1,
			IDFormat:            "index",
			MaterializePeaks:    true,
		},
		Output: Output{
			BatchSize: normalize.DefaultBatchSize,
		},
		Modifications: Modifications{
			Precision:  core.DefaultPrecision,
			MaxRenames: core.DefaultMaxRenames,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads path over the defaults, then normalizes and validates. An
// empty path falls back to psmload.toml in the working directory if one
// exists. The second return value reports which file was read, if any.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, "", err
	}

	if resolved != "" {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("stat config: %w", err)
		}
		return path, nil
	}
	info, err := os.Stat(ProjectConfigName)
	switch {
	case err == nil && !info.IsDir():
		return ProjectConfigName, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", fmt.Errorf("stat config: %w", err)
	}
}

// normalize trims and lowercases enumerations and expands a leading ~ in
// paths.
func (c *Config) normalize() error {
	c.Input.ColumnSet = strings.ToLower(strings.TrimSpace(c.Input.ColumnSet))
	c.Input.IDFormat = strings.TrimSpace(c.Input.IDFormat)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	var err error
	if c.Input.PeakListDir, err = expandPath(c.Input.PeakListDir); err != nil {
		return err
	}
	if c.Output.Path, err = expandPath(c.Output.Path); err != nil {
		return err
	}
	if c.Modifications.MassTable, err = expandPath(c.Modifications.MassTable); err != nil {
		return err
	}
	return nil
}

func expandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// FilterConfig returns the peak filter, or nil when no filtering applies.
func (c *Config) FilterConfig() *filter.Config {
	f := &filter.Config{TopN: c.Filter.TopN, IntensityCutoff: c.Filter.IntensityCutoff}
	if !f.Active() {
		return nil
	}
	return f
}

// SpectrumIDFormat is the scan-id addressing used for tabular input.
func (c *Config) SpectrumIDFormat() peaklist.IDFormat {
	return peaklist.ParseIDFormat(c.Input.IDFormat)
}

// ModDatabase returns the built-in mass table, extended by the configured
// mass table file if any.
func (c *Config) ModDatabase() (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()
	if c.Modifications.MassTable == "" {
		return db, nil
	}
	f, err := os.Open(c.Modifications.MassTable)
	if err != nil {
		return nil, fmt.Errorf("open mass table: %w", err)
	}
	defer f.Close()
	if err := db.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("load mass table %s: %w", c.Modifications.MassTable, err)
	}
	return db, nil
}

// Registry returns a modification registry configured from c.
func (c *Config) Registry() *core.Registry {
	return core.NewRegistry(
		core.WithPrecision(c.Modifications.Precision),
		core.WithMaxRenames(c.Modifications.MaxRenames),
	)
}
