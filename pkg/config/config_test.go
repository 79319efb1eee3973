package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/psmload/pkg/config"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "psmload.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, resolved, err := config.Load("")
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, 500, cfg.Output.BatchSize)
	assert.Equal(t, peaklist.IDFormatMultiplePeakList, cfg.SpectrumIDFormat())
	assert.Nil(t, cfg.FilterConfig())
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigName), []byte("[output]\nbatch_size = 7\n"), 0o644))

	cfg, resolved, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.ProjectConfigName, resolved)
	assert.Equal(t, 7, cfg.Output.BatchSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, `
[input]
column_set = " No_Peak_Lists "
peptide_position_base = 0
strict_link_positions = true
id_format = "MS:1000768"
peak_list_dir = "~/runs"

[output]
batch_size = 50

[filter]
top_n = 100

[modifications]
precision = 4
max_renames = 3

[logging]
level = "DEBUG"
format = "json"
`)

	cfg, resolved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, "no_peak_lists", cfg.Input.ColumnSet)
	assert.Equal(t, 0, cfg.Input.PeptidePositionBase)
	assert.True(t, cfg.Input.StrictLinkPositions)
	assert.Equal(t, peaklist.IDFormatThermo, cfg.SpectrumIDFormat())
	assert.Equal(t, "/home/tester/runs", cfg.Input.PeakListDir)
	assert.Equal(t, 50, cfg.Output.BatchSize)
	require.NotNil(t, cfg.FilterConfig())
	assert.Equal(t, 100, cfg.FilterConfig().TopN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "[output]\nbatchsize = 3\n"},
		{"bad batch size", "[output]\nbatch_size = 0\n"},
		{"bad column set", "[input]\ncolumn_set = \"wide\"\n"},
		{"bad position base", "[input]\npeptide_position_base = 2\n"},
		{"bad id format", "[input]\nid_format = \"MS:0000000\"\n"},
		{"bad filter", "[filter]\nintensity_cutoff = 120.0\n"},
		{"bad renames", "[modifications]\nmax_renames = 0\n"},
		{"bad level", "[logging]\nlevel = \"loud\"\n"},
		{"bad format", "[logging]\nformat = \"xml\"\n"},
		{"bad toml", "[output\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultRoundTripsThroughTOML(t *testing.T) {
	data, err := toml.Marshal(config.Default())
	require.NoError(t, err)

	cfg, _, err := config.Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestModDatabaseFromMassTable(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "mods.csv")
	require.NoError(t, os.WriteFile(table, []byte("mod,massshift,aa,accession\nbs3x,999.5,K,XL:1\n"), 0o644))

	cfg := config.Default()
	cfg.Modifications.MassTable = table
	db, err := cfg.ModDatabase()
	require.NoError(t, err)

	e, ok := db.Lookup("", "bs3x")
	require.True(t, ok)
	assert.Equal(t, 999.5, e.Mass)
	_, ok = db.Lookup("", "ox")
	assert.True(t, ok)
}
