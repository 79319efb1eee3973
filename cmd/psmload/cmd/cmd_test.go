package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMGF = "BEGIN IONS\nTITLE=s0\nPEPMASS=500.5\nCHARGE=3+\n100 1\n200 2\nEND IONS\n" +
	"BEGIN IONS\nTITLE=s1\nPEPMASS=600.5\nCHARGE=2+\n150 3\nEND IONS\n"

const testCSV = "scanid,charge,pepseq1,protein1,peppos1,peaklistfilename,linkpos1,crosslinkermodmass,crosslinkid\n" +
	"0,3,PEPKTIDE,P1,1,run.mgf,4,138.068,xl-1\n" +
	"0,3,KLMN,P3,20,run.mgf,1,0,xl-1\n" +
	"1,2,LINEARMoxK,P4,1,run.mgf,-1,0,\n"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.mgf"), []byte(testMGF), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.csv"), []byte(testCSV), 0o644))
	return dir
}

func TestConvertThenSummarize(t *testing.T) {
	dir := writeInputs(t)
	db := filepath.Join(dir, "upload.db")

	out, err := runCLI(t, "convert", "--in", filepath.Join(dir, "results.csv"), "--out", db, "--upload-id", "cli-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Upload: cli-1")
	assert.Contains(t, out, "identifications")

	out, err = runCLI(t, "summarize", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cli-1")
}

func TestValidate(t *testing.T) {
	dir := writeInputs(t)

	out, err := runCLI(t, "validate", filepath.Join(dir, "results.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("scanid,charge\n1,2\n"), 0o644))
	_, err = runCLI(t, "validate", bad)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := writeInputs(t)

	out, err := runCLI(t, "resolve", filepath.Join(dir, "run.mgf"), "1", "--id-format", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "600.5")
	assert.Contains(t, out, "index 1")
}
