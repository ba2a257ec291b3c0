package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(base, "elsewhere", "periods.csv")

	paths, err := PathsConfig{
		Input:     "data/input",
		PeriodMap: abs,
		OutputDir: "out",
	}.Resolve(base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data", "input"), paths.Input)
	assert.Equal(t, abs, paths.PeriodMap)
	assert.Equal(t, filepath.Join(base, "out"), paths.OutputDir)
	assert.Equal(t, filepath.Join(base, "out", "bundles"), paths.BundlesDir)
	assert.Equal(t, filepath.Join(base, "out", "bundles", "manifest.json"), paths.ManifestFile)
	assert.Equal(t, filepath.Join(base, "out", "bundles", "samples.csv"), paths.SamplesCSV)
	assert.Equal(t, filepath.Join(base, "out", "padded.csv"), paths.PaddedCSV)
	assert.Equal(t, filepath.Join(base, "out", "summary.json"), paths.SummaryJSON)
	assert.Equal(t, filepath.Join(base, "out", "summary.xlsx"), paths.SummaryXLSX)
	assert.Equal(t, filepath.Join(base, "out", "bundles", "train_history.bin"), paths.GetBundlePath("train", "history"))
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := Default().Paths.Resolve(base)
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.OutputDir)
	assert.DirExists(t, paths.BundlesDir)

	// idempotent
	require.NoError(t, paths.EnsureDirectories())
}

func TestEnsureDirectoriesBlockedByFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	paths, err := PathsConfig{Input: "in", PeriodMap: "p.csv", OutputDir: "out"}.Resolve(base)
	require.NoError(t, err)
	assert.Error(t, paths.EnsureDirectories())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.csv")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "absent.csv")))
}
